// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"sync"

	"github.com/devblok/paphos/gfx"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Framebuffers binds one framebuffer to every swapchain image view.
type Framebuffers struct {
	dev     *Device
	Handles []gfx.Framebuffer
}

// CreateFramebuffers creates a framebuffer per swapchain image view.
func CreateFramebuffers(dev *Device, sc *SwapchainState, views *ImageViews, ps *PipelineState) (*Framebuffers, error) {
	fbs := &Framebuffers{dev: dev}
	for idx, view := range views.Handles {
		fb, err := dev.driver.CreateFramebuffer(dev.Handle, gfx.FramebufferInfo{
			RenderPass: ps.RenderPass,
			Attachment: view,
			Extent:     sc.Extent,
		})
		if err != nil {
			fbs.Release()
			return nil, &CreationError{Stage: StageFramebuffer, Err: errors.Wrapf(err, "vk.CreateFramebuffer()[%d]", idx)}
		}
		fbs.Handles = append(fbs.Handles, fb)
	}
	return fbs, nil
}

// Release destroys the framebuffers, last created first.
func (f *Framebuffers) Release() {
	for i := len(f.Handles) - 1; i >= 0; i-- {
		f.dev.driver.DestroyFramebuffer(f.dev.Handle, f.Handles[i])
	}
	f.Handles = nil
}

// CommandResources is a command pool on the graphics family and the one
// command buffer re-recorded every frame.
type CommandResources struct {
	dev    *Device
	Pool   gfx.CommandPool
	Buffer gfx.CommandBuffer
}

// CreateCommandResources creates the pool and allocates the buffer.
func CreateCommandResources(dev *Device) (*CommandResources, error) {
	pool, err := dev.driver.CreateCommandPool(dev.Handle, dev.GraphicsFamily)
	if err != nil {
		return nil, &CreationError{Stage: StageCommandPool, Err: errors.Wrap(err, "vk.CreateCommandPool()")}
	}
	cr := &CommandResources{dev: dev, Pool: pool}
	buffer, err := dev.driver.AllocateCommandBuffer(dev.Handle, pool)
	if err != nil {
		cr.Release()
		return nil, &CreationError{Stage: StageCommandBuffer, Err: errors.Wrap(err, "vk.AllocateCommandBuffers()")}
	}
	cr.Buffer = buffer
	return cr, nil
}

// Release destroys the pool, which frees the buffer with it.
func (c *CommandResources) Release() {
	if c.Pool != 0 {
		c.dev.driver.DestroyCommandPool(c.dev.Handle, c.Pool)
		c.Pool = 0
		c.Buffer = 0
	}
}

// FrameSync keeps at most one frame in flight.
type FrameSync struct {
	dev            *Device
	ImageAvailable gfx.Semaphore
	RenderFinished gfx.Semaphore
	InFlight       gfx.Fence
}

// CreateFrameSync creates the in-flight fence and then both semaphores.
// The fence starts signaled so the first frame does not wait.
func CreateFrameSync(dev *Device) (*FrameSync, error) {
	fs := &FrameSync{dev: dev}
	var err error
	if fs.InFlight, err = dev.driver.CreateFence(dev.Handle, true); err != nil {
		return nil, &CreationError{Stage: StageFence, Err: errors.Wrap(err, "vk.CreateFence()")}
	}
	if fs.ImageAvailable, err = dev.driver.CreateSemaphore(dev.Handle); err != nil {
		fs.Release()
		return nil, &CreationError{Stage: StageSemaphore, Err: errors.Wrap(err, "vk.CreateSemaphore()")}
	}
	if fs.RenderFinished, err = dev.driver.CreateSemaphore(dev.Handle); err != nil {
		fs.Release()
		return nil, &CreationError{Stage: StageSemaphore, Err: errors.Wrap(err, "vk.CreateSemaphore()")}
	}
	return fs, nil
}

// Release destroys both semaphores and then the fence.
func (f *FrameSync) Release() {
	driver := f.dev.driver
	if f.RenderFinished != 0 {
		driver.DestroySemaphore(f.dev.Handle, f.RenderFinished)
		f.RenderFinished = 0
	}
	if f.ImageAvailable != 0 {
		driver.DestroySemaphore(f.dev.Handle, f.ImageAvailable)
		f.ImageAvailable = 0
	}
	if f.InFlight != 0 {
		driver.DestroyFence(f.dev.Handle, f.InFlight)
		f.InFlight = 0
	}
}

// FrameState is the position of a window in its frame cycle.
type FrameState int

// Frame cycle states
const (
	FrameIdle FrameState = iota
	FrameAcquiring
	FrameRecording
	FrameSubmitted
	FramePresenting
)

func (s FrameState) String() string {
	switch s {
	case FrameAcquiring:
		return "acquiring"
	case FrameRecording:
		return "recording"
	case FrameSubmitted:
		return "submitted"
	case FramePresenting:
		return "presenting"
	}
	return "idle"
}

// FrameScheduler runs the acquire, record, submit and present cycle of
// one window.
type FrameScheduler struct {
	mu sync.Mutex

	dev       *Device
	swapchain *SwapchainState
	pipeline  *PipelineState
	fbs       *Framebuffers
	commands  *CommandResources
	sync      *FrameSync

	clearColor  mgl32.Vec4
	vertexCount uint32

	state  FrameState
	frames uint64

	// observe is called on every state change
	observe func(FrameState)
}

// NewFrameScheduler creates a scheduler over the window resources.
func NewFrameScheduler(dev *Device, sc *SwapchainState, ps *PipelineState, fbs *Framebuffers, cr *CommandResources, fs *FrameSync, cfg RendererConfiguration) *FrameScheduler {
	return &FrameScheduler{
		dev:         dev,
		swapchain:   sc,
		pipeline:    ps,
		fbs:         fbs,
		commands:    cr,
		sync:        fs,
		clearColor:  cfg.ClearColor,
		vertexCount: cfg.VertexCount,
	}
}

// State returns the current frame state.
func (f *FrameScheduler) State() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Frames is the number of frames presented.
func (f *FrameScheduler) Frames() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func (f *FrameScheduler) enter(s FrameState) {
	f.state = s
	if f.observe != nil {
		f.observe(s)
	}
}

// Tick draws one frame. Every wait is unbounded. A swapchain that no
// longer matches its surface is reported as a FrameError wrapping
// gfx.ErrOutOfDate; the caller is expected to rebuild.
func (f *FrameScheduler) Tick() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	driver := f.dev.driver
	device := f.dev.Handle
	defer f.enter(FrameIdle)

	if err := driver.WaitForFence(device, f.sync.InFlight, gfx.Forever); err != nil {
		return &FrameError{Step: StepFenceWait, Err: errors.Wrap(err, "vk.WaitForFences()")}
	}
	if err := driver.ResetFence(device, f.sync.InFlight); err != nil {
		return &FrameError{Step: StepFenceReset, Err: errors.Wrap(err, "vk.ResetFences()")}
	}

	f.enter(FrameAcquiring)
	idx, err := driver.AcquireNextImage(device, f.swapchain.Handle, gfx.Forever, f.sync.ImageAvailable)
	if err != nil {
		return &FrameError{Step: StepAcquire, Err: errors.Wrap(err, "vk.AcquireNextImage()")}
	}
	if int(idx) >= len(f.fbs.Handles) {
		return &FrameError{Step: StepAcquire, Err: errors.Errorf("image index %d out of range", idx)}
	}

	f.enter(FrameRecording)
	if err := driver.RecordDraw(f.commands.Buffer, gfx.DrawInfo{
		RenderPass:  f.pipeline.RenderPass,
		Framebuffer: f.fbs.Handles[idx],
		Pipeline:    f.pipeline.Pipeline,
		Extent:      f.swapchain.Extent,
		ClearColor:  f.clearColor,
		VertexCount: f.vertexCount,
	}); err != nil {
		return &FrameError{Step: StepRecord, Err: err}
	}

	if err := f.dev.Submit(gfx.SubmitInfo{
		CommandBuffer: f.commands.Buffer,
		Wait:          f.sync.ImageAvailable,
		Signal:        f.sync.RenderFinished,
		Fence:         f.sync.InFlight,
	}); err != nil {
		return &FrameError{Step: StepSubmit, Err: errors.Wrap(err, "vk.QueueSubmit()")}
	}
	f.enter(FrameSubmitted)

	f.enter(FramePresenting)
	if err := f.dev.Present(gfx.PresentInfo{
		Wait:       f.sync.RenderFinished,
		Swapchain:  f.swapchain.Handle,
		ImageIndex: idx,
	}); err != nil {
		return &FrameError{Step: StepPresent, Err: errors.Wrap(err, "vk.QueuePresent()")}
	}
	f.frames++
	return nil
}
