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

func newSwapchain(c *qt.C, r *rig) *SwapchainState {
	sc, err := CreateSwapchain(r.selectDevice(c), r.surface, gfx.Extent2D{Width: 800, Height: 600}, r.logger)
	c.Assert(err, qt.IsNil)
	return sc
}

func TestCreatePipeline(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	sc := newSwapchain(c, r)

	ps, err := CreatePipeline(r.dev, sc, spirvWord, spirvWord, r.logger)
	c.Assert(err, qt.IsNil)
	c.Assert(ps.Pipeline, qt.Not(qt.Equals), gfx.Pipeline(0))
	c.Assert(liveKinds(r.driver)["shader module"], qt.Equals, 0)
	c.Assert(countOps(r.driver, "CreateShaderModule"), qt.Equals, 2)
	c.Assert(countOps(r.driver, "DestroyShaderModule"), qt.Equals, 2)

	n := len(r.driver.Ops())
	ps.Release()
	c.Assert(opsSince(r.driver, n, "Destroy"), qt.DeepEquals, []string{
		"DestroyPipeline",
		"DestroyPipelineLayout",
		"DestroyRenderPass",
	})

	sc.Release()
	r.release()
	c.Assert(r.driver.Violations(), qt.HasLen, 0)
	c.Assert(r.driver.Live(), qt.HasLen, 0)
}

func TestCreatePipelineFailure(t *testing.T) {
	for _, tc := range []struct {
		op    string
		stage string
	}{
		{"CreateRenderPass", StageRenderPass},
		{"CreatePipelineLayout", StageLayout},
		{"CreateShaderModule", StageShaderModule},
		{"CreateGraphicsPipeline", StagePipeline},
	} {
		t.Run(tc.op, func(t *testing.T) {
			c := qt.New(t)
			r := newRig(c, sim.DefaultConfig())
			sc := newSwapchain(c, r)
			r.driver.FailOn(tc.op)

			_, err := CreatePipeline(r.dev, sc, spirvWord, spirvWord, r.logger)
			var creation *CreationError
			c.Assert(errors.As(err, &creation), qt.IsTrue)
			c.Assert(creation.Stage, qt.Equals, tc.stage)
			c.Assert(errors.Is(err, sim.ErrInjected), qt.IsTrue)

			kinds := liveKinds(r.driver)
			c.Assert(kinds["shader module"], qt.Equals, 0)
			c.Assert(kinds["render pass"], qt.Equals, 0)
			c.Assert(kinds["pipeline layout"], qt.Equals, 0)
			c.Assert(kinds["pipeline"], qt.Equals, 0)

			sc.Release()
			r.release()
			c.Assert(r.driver.Violations(), qt.HasLen, 0)
		})
	}
}

func TestCreatePipelineInvalidCode(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	sc := newSwapchain(c, r)
	defer r.release()
	defer sc.Release()

	_, err := CreatePipeline(r.dev, sc, spirvWord, []byte{1, 2, 3}, r.logger)
	var creation *CreationError
	c.Assert(errors.As(err, &creation), qt.IsTrue)
	c.Assert(creation.Stage, qt.Equals, StageShaderModule)
	c.Assert(liveKinds(r.driver)["shader module"], qt.Equals, 0)
}
