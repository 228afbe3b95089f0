// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sim_test

import (
	"strconv"
	"testing"

	"github.com/devblok/paphos/gfx"
	"github.com/devblok/paphos/gfx/sim"
	"github.com/devblok/paphos/window"
	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
)

type fixture struct {
	driver    *sim.Driver
	instance  gfx.Instance
	surface   gfx.Surface
	device    gfx.Device
	swapchain gfx.Swapchain
	draw      gfx.DrawInfo
	view      gfx.ImageView
	layout    gfx.PipelineLayout
}

func newFixture(c *qt.C) *fixture {
	f := &fixture{driver: sim.New(sim.DefaultConfig())}
	var err error
	f.instance, err = f.driver.CreateInstance(gfx.InstanceInfo{})
	c.Assert(err, qt.IsNil)
	f.surface, err = f.driver.WrapSurface(f.instance, 1)
	c.Assert(err, qt.IsNil)
	pds, err := f.driver.EnumeratePhysicalDevices(f.instance)
	c.Assert(err, qt.IsNil)
	c.Assert(pds, qt.HasLen, 1)
	f.device, err = f.driver.CreateDevice(pds[0], gfx.DeviceInfo{Queues: []gfx.QueueInfo{{Family: 0}}})
	c.Assert(err, qt.IsNil)
	f.swapchain, err = f.driver.CreateSwapchain(f.device, gfx.SwapchainInfo{
		Surface:       f.surface,
		MinImageCount: 3,
		Extent:        gfx.Extent2D{Width: 640, Height: 480},
	})
	c.Assert(err, qt.IsNil)
	return f
}

// prepareDraw creates the objects a recorded draw references.
func (f *fixture) prepareDraw(c *qt.C) {
	var err error
	f.view, err = f.driver.CreateImageView(f.device, gfx.ImageViewInfo{})
	c.Assert(err, qt.IsNil)
	f.draw.RenderPass, err = f.driver.CreateRenderPass(f.device, gfx.RenderPassInfo{})
	c.Assert(err, qt.IsNil)
	f.layout, err = f.driver.CreatePipelineLayout(f.device)
	c.Assert(err, qt.IsNil)
	f.draw.Pipeline, err = f.driver.CreateGraphicsPipeline(f.device, gfx.GraphicsPipelineInfo{
		Layout:     f.layout,
		RenderPass: f.draw.RenderPass,
	})
	c.Assert(err, qt.IsNil)
	f.draw.Framebuffer, err = f.driver.CreateFramebuffer(f.device, gfx.FramebufferInfo{
		RenderPass: f.draw.RenderPass,
		Attachment: f.view,
	})
	c.Assert(err, qt.IsNil)
}

func (f *fixture) releaseDraw() {
	f.driver.DestroyFramebuffer(f.device, f.draw.Framebuffer)
	f.driver.DestroyPipeline(f.device, f.draw.Pipeline)
	f.driver.DestroyPipelineLayout(f.device, f.layout)
	f.driver.DestroyRenderPass(f.device, f.draw.RenderPass)
	f.driver.DestroyImageView(f.device, f.view)
}

func TestSwapchainImages(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	images, err := f.driver.SwapchainImages(f.device, f.swapchain)
	c.Assert(err, qt.IsNil)
	c.Assert(images, qt.HasLen, 3)
}

func TestDestroyParentFirst(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	f.driver.DestroyDevice(f.device)
	c.Assert(f.driver.Violations(), qt.HasLen, 1)
	c.Assert(f.driver.Violations()[0], qt.Matches, `DestroyDevice#\d+ while child swapchain#\d+ is alive`)
}

func TestDestroyTwice(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	f.driver.DestroySwapchain(f.device, f.swapchain)
	f.driver.DestroySwapchain(f.device, f.swapchain)
	c.Assert(f.driver.Violations(), qt.DeepEquals, []string{
		"DestroySwapchain#" + strconv.FormatUint(uint64(f.swapchain), 10) + ": not alive",
	})
}

func TestDestroyNull(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	f.driver.DestroyFence(f.device, 0)
	c.Assert(f.driver.Violations(), qt.DeepEquals, []string{"DestroyFence on a null handle"})
}

func TestFailOn(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	f.driver.FailOn("CreateSemaphore")
	_, err := f.driver.CreateSemaphore(f.device)
	c.Assert(errors.Is(err, sim.ErrInjected), qt.IsTrue)

	f.driver.FailOn("")
	sem, err := f.driver.CreateSemaphore(f.device)
	c.Assert(err, qt.IsNil)
	c.Assert(sem, qt.Not(qt.Equals), gfx.Semaphore(0))
}

func TestFenceNeverSignaled(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	fence, err := f.driver.CreateFence(f.device, false)
	c.Assert(err, qt.IsNil)
	c.Assert(f.driver.WaitForFence(f.device, fence, gfx.Forever), qt.Equals, sim.ErrNeverSignaled)

	signaled, err := f.driver.CreateFence(f.device, true)
	c.Assert(err, qt.IsNil)
	c.Assert(f.driver.WaitForFence(f.device, signaled, gfx.Forever), qt.IsNil)
}

// frame runs one acquire, record, submit and present cycle.
func frame(c *qt.C, f *fixture, cb gfx.CommandBuffer, acquired, finished gfx.Semaphore, fence gfx.Fence) error {
	c.Assert(f.driver.WaitForFence(f.device, fence, gfx.Forever), qt.IsNil)
	c.Assert(f.driver.ResetFence(f.device, fence), qt.IsNil)
	idx, err := f.driver.AcquireNextImage(f.device, f.swapchain, gfx.Forever, acquired)
	if err != nil {
		return err
	}
	c.Assert(f.driver.RecordDraw(cb, f.draw), qt.IsNil)
	c.Assert(f.driver.QueueSubmit(0, gfx.SubmitInfo{CommandBuffer: cb, Wait: acquired, Signal: finished, Fence: fence}), qt.IsNil)
	return f.driver.QueuePresent(0, gfx.PresentInfo{Wait: finished, Swapchain: f.swapchain, ImageIndex: idx})
}

func TestFrameCycle(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	f.prepareDraw(c)
	pool, err := f.driver.CreateCommandPool(f.device, 0)
	c.Assert(err, qt.IsNil)
	cb, err := f.driver.AllocateCommandBuffer(f.device, pool)
	c.Assert(err, qt.IsNil)
	acquired, _ := f.driver.CreateSemaphore(f.device)
	finished, _ := f.driver.CreateSemaphore(f.device)
	fence, _ := f.driver.CreateFence(f.device, true)

	for i := 0; i < 4; i++ {
		c.Assert(frame(c, f, cb, acquired, finished, fence), qt.IsNil)
	}
	c.Assert(f.driver.Presented(), qt.Equals, 4)
	c.Assert(f.driver.MaxPendingAtAcquire(), qt.Equals, 0)

	f.driver.Invalidate(f.surface)
	c.Assert(frame(c, f, cb, acquired, finished, fence), qt.Equals, gfx.ErrOutOfDate)

	c.Assert(f.driver.DeviceWaitIdle(f.device), qt.IsNil)
	f.driver.DestroyFence(f.device, fence)
	f.driver.DestroySemaphore(f.device, finished)
	f.driver.DestroySemaphore(f.device, acquired)
	f.driver.DestroyCommandPool(f.device, pool)
	f.releaseDraw()
	f.driver.DestroySwapchain(f.device, f.swapchain)
	f.driver.DestroyDevice(f.device)
	f.driver.DestroySurface(f.instance, f.surface)
	f.driver.DestroyInstance(f.instance)
	c.Assert(f.driver.Violations(), qt.HasLen, 0)
	c.Assert(f.driver.Live(), qt.HasLen, 0)
}

func TestRecordWhileInFlight(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	f.prepareDraw(c)
	pool, _ := f.driver.CreateCommandPool(f.device, 0)
	cb, _ := f.driver.AllocateCommandBuffer(f.device, pool)
	acquired, _ := f.driver.CreateSemaphore(f.device)
	finished, _ := f.driver.CreateSemaphore(f.device)
	fence, _ := f.driver.CreateFence(f.device, true)
	c.Assert(frame(c, f, cb, acquired, finished, fence), qt.IsNil)

	// Skipping the fence wait re-records a buffer the device still uses.
	_, err := f.driver.AcquireNextImage(f.device, f.swapchain, gfx.Forever, acquired)
	c.Assert(err, qt.IsNil)
	c.Assert(f.driver.MaxPendingAtAcquire(), qt.Equals, 1)
	c.Assert(f.driver.Violations(), qt.HasLen, 0)
	c.Assert(f.driver.RecordDraw(cb, f.draw), qt.IsNil)
	c.Assert(f.driver.Violations(), qt.HasLen, 1)
}

func TestSystem(t *testing.T) {
	c := qt.New(t)
	system := sim.NewSystem()
	system.CloseAfter = 2
	w, err := system.NewWindow(window.Config{Width: 100, Height: 50})
	c.Assert(err, qt.IsNil)
	native := w.(*sim.Window)

	width, height := native.DrawableSize()
	c.Assert([]uint32{width, height}, qt.DeepEquals, []uint32{100, 50})
	raw, err := native.CreateSurface(uint64(1))
	c.Assert(err, qt.IsNil)
	c.Assert(raw, qt.Not(qt.Equals), uintptr(0))

	native.Resize(200, 100)
	c.Assert(native.Resized(), qt.IsTrue)
	c.Assert(native.Resized(), qt.IsFalse)

	system.PollEvents()
	c.Assert(native.ShouldClose(), qt.IsFalse)
	system.PollEvents()
	c.Assert(native.ShouldClose(), qt.IsTrue)

	c.Assert(native.Destroy(), qt.IsNil)
	c.Assert(native.Destroy(), qt.Not(qt.IsNil))
	system.Quit()
	_, err = system.NewWindow(window.Config{Width: 1, Height: 1})
	c.Assert(err, qt.Not(qt.IsNil))
}
