// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	"github.com/devblok/paphos/gfx"
	"github.com/devblok/paphos/gfx/sim"
	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
)

func TestWindowRebuildOnResize(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	w := r.newWindow(c)
	c.Assert(w.Draw(), qt.IsNil)
	old := w.Swapchain.Handle

	r.native.Resize(1024, 768)
	c.Assert(w.Draw(), qt.IsNil)
	c.Assert(w.Rebuilds(), qt.Equals, 1)
	c.Assert(w.Swapchain.Handle, qt.Not(qt.Equals), old)
	c.Assert(w.Swapchain.Extent, qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})
	c.Assert(w.FramesPresented(), qt.Equals, uint64(2))
	c.Assert(countOps(r.driver, "DestroySwapchain"), qt.Equals, 1)

	c.Assert(w.Draw(), qt.IsNil)
	c.Assert(w.Rebuilds(), qt.Equals, 1)

	c.Assert(w.Release(), qt.IsNil)
	r.surface = 0
	r.release()
	c.Assert(r.driver.Violations(), qt.HasLen, 0)
	c.Assert(r.driver.Live(), qt.HasLen, 0)
}

func TestWindowRebuildOnOutOfDate(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	w := r.newWindow(c)
	c.Assert(w.Draw(), qt.IsNil)

	r.driver.Invalidate(w.Surface)
	c.Assert(w.Draw(), qt.IsNil)
	c.Assert(w.Rebuilds(), qt.Equals, 1)
	c.Assert(w.Err(), qt.IsNil)
	c.Assert(w.FramesPresented(), qt.Equals, uint64(1))

	c.Assert(w.Draw(), qt.IsNil)
	c.Assert(w.FramesPresented(), qt.Equals, uint64(2))
	c.Assert(r.driver.MaxPendingAtAcquire(), qt.Equals, 0)

	c.Assert(w.Release(), qt.IsNil)
	r.surface = 0
	r.release()
	c.Assert(r.driver.Violations(), qt.HasLen, 0)
	c.Assert(r.driver.Live(), qt.HasLen, 0)
}

func TestWindowRebuildFailure(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	w := r.newWindow(c)

	r.driver.FailOn("CreateFramebuffer")
	r.native.Resize(640, 480)
	err := w.Draw()
	var creation *CreationError
	c.Assert(errors.As(err, &creation), qt.IsTrue)
	c.Assert(creation.Stage, qt.Equals, StageFramebuffer)
	c.Assert(w.Err(), qt.Equals, err)

	kinds := liveKinds(r.driver)
	c.Assert(kinds["swapchain"], qt.Equals, 0)
	c.Assert(kinds["pipeline"], qt.Equals, 0)

	r.driver.FailOn("")
	c.Assert(w.Release(), qt.IsNil)
	r.surface = 0
	r.release()
	c.Assert(r.driver.Violations(), qt.HasLen, 0)
	c.Assert(r.driver.Live(), qt.HasLen, 0)
}

func TestWindowReleaseOrder(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	w := r.newWindow(c)
	c.Assert(w.Draw(), qt.IsNil)

	n := len(r.driver.Ops())
	c.Assert(w.Release(), qt.IsNil)
	c.Assert(opsSince(r.driver, n, "Destroy"), qt.DeepEquals, []string{
		"DestroySemaphore",
		"DestroySemaphore",
		"DestroyFence",
		"DestroyCommandPool",
		"DestroyFramebuffer",
		"DestroyFramebuffer",
		"DestroyFramebuffer",
		"DestroyImageView",
		"DestroyImageView",
		"DestroyImageView",
		"DestroyPipeline",
		"DestroyPipelineLayout",
		"DestroyRenderPass",
		"DestroySwapchain",
		"DestroySurface",
	})
	c.Assert(opsSince(r.driver, n, "DeviceWaitIdle"), qt.HasLen, 1)

	c.Assert(w.Release(), qt.IsNil)
	c.Assert(len(r.driver.Ops()), qt.Equals, n+16)

	r.surface = 0
	r.release()
	c.Assert(r.driver.Violations(), qt.HasLen, 0)
}

func TestWindowCreationOrder(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	r.selectDevice(c)

	n := len(r.driver.Ops())
	w := r.newWindow(c)
	c.Assert(opsSince(r.driver, n, "Create"), qt.DeepEquals, []string{
		"CreateSwapchain",
		"CreateRenderPass",
		"CreatePipelineLayout",
		"CreateShaderModule",
		"CreateShaderModule",
		"CreateGraphicsPipeline",
		"CreateImageView",
		"CreateImageView",
		"CreateImageView",
		"CreateFramebuffer",
		"CreateFramebuffer",
		"CreateFramebuffer",
		"CreateCommandPool",
		"CreateFence",
		"CreateSemaphore",
		"CreateSemaphore",
	})

	c.Assert(w.Release(), qt.IsNil)
	r.surface = 0
	r.release()
	c.Assert(r.driver.Violations(), qt.HasLen, 0)
}

func TestNewWindowStageFailure(t *testing.T) {
	for _, tc := range []struct {
		op    string
		stage string
	}{
		{"CreateSwapchain", StageSwapchain},
		{"CreateGraphicsPipeline", StagePipeline},
		{"CreateImageView", StageImageView},
		{"CreateFramebuffer", StageFramebuffer},
		{"CreateCommandPool", StageCommandPool},
		{"AllocateCommandBuffer", StageCommandBuffer},
		{"CreateSemaphore", StageSemaphore},
		{"CreateFence", StageFence},
	} {
		t.Run(tc.op, func(t *testing.T) {
			c := qt.New(t)
			r := newRig(c, sim.DefaultConfig())
			r.selectDevice(c)
			r.driver.FailOn(tc.op)

			_, err := NewWindow(r.fw, r.dev, r.native, r.surface, testShaders(), DefaultConfiguration().Renderer, r.logger)
			var creation *CreationError
			c.Assert(errors.As(err, &creation), qt.IsTrue)
			c.Assert(creation.Stage, qt.Equals, tc.stage)

			kinds := liveKinds(r.driver)
			c.Assert(kinds, qt.DeepEquals, map[string]int{"instance": 1, "surface": 1, "device": 1})

			r.release()
			c.Assert(r.driver.Violations(), qt.HasLen, 0)
		})
	}
}

func TestNewWindowMissingShader(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	r.selectDevice(c)
	defer r.release()

	_, err := NewWindow(r.fw, r.dev, r.native, r.surface, MapSource{}, DefaultConfiguration().Renderer, r.logger)
	var creation *CreationError
	c.Assert(errors.As(err, &creation), qt.IsTrue)
	c.Assert(creation.Stage, qt.Equals, StageShaderModule)
	c.Assert(countOps(r.driver, "CreateSwapchain"), qt.Equals, 0)
}
