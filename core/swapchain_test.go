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

func TestImageCount(t *testing.T) {
	c := qt.New(t)
	c.Assert(ImageCount(gfx.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 4}), qt.Equals, uint32(3))
	c.Assert(ImageCount(gfx.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}), qt.Equals, uint32(2))
	c.Assert(ImageCount(gfx.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 0}), qt.Equals, uint32(4))
}

func TestChooseExtent(t *testing.T) {
	c := qt.New(t)
	caps := sim.DiscreteGPU("gpu").Capabilities

	c.Assert(ChooseExtent(caps, gfx.Extent2D{Width: 800, Height: 600}), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
	c.Assert(ChooseExtent(caps, gfx.Extent2D{Width: 10000, Height: 0}), qt.Equals, gfx.Extent2D{Width: 4096, Height: 1})

	caps.CurrentExtent = gfx.Extent2D{Width: 640, Height: 480}
	c.Assert(ChooseExtent(caps, gfx.Extent2D{Width: 800, Height: 600}), qt.Equals, gfx.Extent2D{Width: 640, Height: 480})
}

func TestChooseSurfaceFormat(t *testing.T) {
	c := qt.New(t)
	unorm := gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear}
	srgb := gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear}
	srgbOther := gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceOther}

	c.Assert(ChooseSurfaceFormat([]gfx.SurfaceFormat{unorm, srgb}), qt.Equals, srgb)
	c.Assert(ChooseSurfaceFormat([]gfx.SurfaceFormat{srgbOther, unorm}), qt.Equals, srgbOther)
	c.Assert(ChooseSurfaceFormat(nil), qt.Equals, gfx.SurfaceFormat{})
}

func TestChoosePresentMode(t *testing.T) {
	c := qt.New(t)
	c.Assert(ChoosePresentMode([]gfx.PresentMode{gfx.PresentModeFifo, gfx.PresentModeMailbox}), qt.Equals, gfx.PresentModeMailbox)
	c.Assert(ChoosePresentMode([]gfx.PresentMode{gfx.PresentModeImmediate}), qt.Equals, gfx.PresentModeFifo)
	c.Assert(ChoosePresentMode(nil), qt.Equals, gfx.PresentModeFifo)
}

func TestCreateSwapchain(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	dev := r.selectDevice(c)

	sc, err := CreateSwapchain(dev, r.surface, gfx.Extent2D{Width: 800, Height: 600}, r.logger)
	c.Assert(err, qt.IsNil)
	c.Assert(sc.ImageCount, qt.Equals, uint32(3))
	c.Assert(sc.Images, qt.HasLen, 3)
	c.Assert(sc.Format.Format, qt.Equals, gfx.FormatB8G8R8A8Srgb)
	c.Assert(sc.Format.ColorSpace, qt.Equals, gfx.ColorSpaceSrgbNonlinear)
	c.Assert(sc.PresentMode, qt.Equals, gfx.PresentModeFifo)
	c.Assert(sc.Extent, qt.Equals, gfx.Extent2D{Width: 800, Height: 600})

	views, err := CreateImageViews(dev, sc)
	c.Assert(err, qt.IsNil)
	c.Assert(views.Handles, qt.HasLen, 3)
	c.Assert(liveKinds(r.driver)["image view"], qt.Equals, 3)

	views.Release()
	c.Assert(liveKinds(r.driver)["image view"], qt.Equals, 0)
	sc.Release()
	c.Assert(liveKinds(r.driver)["swapchain"], qt.Equals, 0)

	r.release()
	c.Assert(r.driver.Violations(), qt.HasLen, 0)
}

func TestCreateImageViewsFailure(t *testing.T) {
	c := qt.New(t)
	r := newRig(c, sim.DefaultConfig())
	dev := r.selectDevice(c)
	sc, err := CreateSwapchain(dev, r.surface, gfx.Extent2D{Width: 800, Height: 600}, r.logger)
	c.Assert(err, qt.IsNil)
	r.driver.FailOn("CreateImageView")

	_, err = CreateImageViews(dev, sc)
	var creation *CreationError
	c.Assert(errors.As(err, &creation), qt.IsTrue)
	c.Assert(creation.Stage, qt.Equals, StageImageView)
	c.Assert(liveKinds(r.driver)["image view"], qt.Equals, 0)

	r.driver.FailOn("")
	sc.Release()

	r.release()
	c.Assert(r.driver.Live(), qt.HasLen, 0)
	c.Assert(r.driver.Violations(), qt.HasLen, 0)
}
