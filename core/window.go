// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"sync"

	"github.com/devblok/paphos/gfx"
	"github.com/devblok/paphos/window"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Window is the rendering state of one native window. Everything after the
// surface is built by an ordered list of stages and released in reverse.
type Window struct {
	mu sync.Mutex

	fw     *Framework
	dev    *Device
	native window.Window
	cfg    RendererConfiguration
	log    log.FieldLogger

	vertex   []byte
	fragment []byte

	Surface   gfx.Surface
	Swapchain *SwapchainState
	Pipeline  *PipelineState
	Views     *ImageViews
	Framebuf  *Framebuffers
	Commands  *CommandResources
	Sync      *FrameSync
	Frames    *FrameScheduler

	stages    ReleaseStack
	err       error
	rebuilt   int
	presented uint64
	closed    bool
}

// windowStage creates one tier of window state and returns its release.
type windowStage struct {
	name  string
	build func(w *Window) (gfx.Releasable, error)
}

var windowStages = []windowStage{
	{StageSwapchain, func(w *Window) (gfx.Releasable, error) {
		width, height := w.native.DrawableSize()
		sc, err := CreateSwapchain(w.dev, w.Surface, gfx.Extent2D{Width: width, Height: height}, w.log)
		w.Swapchain = sc
		return sc, err
	}},
	{StagePipeline, func(w *Window) (gfx.Releasable, error) {
		ps, err := CreatePipeline(w.dev, w.Swapchain, w.vertex, w.fragment, w.log)
		w.Pipeline = ps
		return ps, err
	}},
	{StageImageView, func(w *Window) (gfx.Releasable, error) {
		views, err := CreateImageViews(w.dev, w.Swapchain)
		w.Views = views
		return views, err
	}},
	{StageFramebuffer, func(w *Window) (gfx.Releasable, error) {
		fbs, err := CreateFramebuffers(w.dev, w.Swapchain, w.Views, w.Pipeline)
		w.Framebuf = fbs
		return fbs, err
	}},
	{StageCommandPool, func(w *Window) (gfx.Releasable, error) {
		cr, err := CreateCommandResources(w.dev)
		w.Commands = cr
		return cr, err
	}},
	{StageFence, func(w *Window) (gfx.Releasable, error) {
		fs, err := CreateFrameSync(w.dev)
		w.Sync = fs
		return fs, err
	}},
}

// CreateSurface creates the presentation surface of a native window.
func CreateSurface(fw *Framework, native window.Window) (gfx.Surface, error) {
	raw, err := native.CreateSurface(fw.Inner())
	if err != nil {
		return 0, &CreationError{Stage: StageSurface, Err: errors.Wrap(err, "window.CreateSurface()")}
	}
	surface, err := fw.driver.WrapSurface(fw.Instance, raw)
	if err != nil {
		return 0, &CreationError{Stage: StageSurface, Err: errors.Wrap(err, "vk.SurfaceFromPointer()")}
	}
	return surface, nil
}

// NewWindow brings up every window stage on an existing surface. On
// failure the stages already built are released; the surface is not.
func NewWindow(fw *Framework, dev *Device, native window.Window, surface gfx.Surface, shaders ShaderSource, cfg RendererConfiguration, logger log.FieldLogger) (*Window, error) {
	vertex, fragment, err := LoadShaders(shaders)
	if err != nil {
		return nil, &CreationError{Stage: StageShaderModule, Err: err}
	}
	w := &Window{
		fw:       fw,
		dev:      dev,
		native:   native,
		cfg:      cfg,
		log:      logger.WithField("window", native.ID()),
		vertex:   vertex,
		fragment: fragment,
		Surface:  surface,
	}
	if err := w.build(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Window) build() error {
	for _, s := range windowStages {
		r, err := s.build(w)
		if err != nil {
			w.log.WithError(err).WithField("stage", s.name).Debug("window stage failed")
			w.stages.Release()
			return err
		}
		w.stages.Push(r)
	}
	w.Frames = NewFrameScheduler(w.dev, w.Swapchain, w.Pipeline, w.Framebuf, w.Commands, w.Sync, w.cfg)
	w.log.WithFields(log.Fields{
		"extent": w.Swapchain.Extent,
		"images": len(w.Swapchain.Images),
	}).Info("window ready")
	return nil
}

// ID returns the native window id.
func (w *Window) ID() uint32 {
	return w.native.ID()
}

// Native returns the native window.
func (w *Window) Native() window.Window {
	return w.native
}

// Err returns the error that stopped the window, if any.
func (w *Window) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Rebuilds is the number of times the swapchain was rebuilt.
func (w *Window) Rebuilds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rebuilt
}

// FramesPresented is the number of frames presented over the lifetime of
// the window, across rebuilds.
func (w *Window) FramesPresented() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Frames == nil {
		return w.presented
	}
	return w.presented + w.Frames.Frames()
}

// Draw renders one frame, first rebuilding the window stages if the
// window was resized. An out-of-date swapchain is rebuilt instead of
// failing. Any other error stops the window.
func (w *Window) Draw() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.err != nil {
		return w.err
	}

	if w.native.Resized() {
		if err := w.rebuild(); err != nil {
			return w.fail(err)
		}
	}

	err := w.Frames.Tick()
	if errors.Is(err, gfx.ErrOutOfDate) {
		w.log.WithError(err).Debug("swapchain out of date")
		err = w.rebuild()
	}
	if err != nil {
		return w.fail(err)
	}
	return nil
}

func (w *Window) fail(err error) error {
	w.err = err
	w.log.WithError(err).Error("window stopped")
	return err
}

// rebuild waits for the device and rebuilds every stage after the surface.
func (w *Window) rebuild() error {
	if err := w.dev.WaitIdle(); err != nil {
		return err
	}
	w.presented += w.Frames.Frames()
	w.stages.Release()
	w.Frames = nil
	w.rebuilt++
	return w.build()
}

// Release waits for the device to go idle, releases every window stage in
// reverse order and finally destroys the surface. The native window is
// left to its owner. The wait error is returned after teardown completes.
func (w *Window) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.dev.WaitIdle()
	w.stages.Release()
	if w.Surface != 0 {
		w.fw.driver.DestroySurface(w.fw.Instance, w.Surface)
		w.Surface = 0
	}
	w.log.Debug("window released")
	return err
}
