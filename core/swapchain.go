// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/paphos/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SwapchainState is the negotiated swapchain of one window together with
// its images and their views.
type SwapchainState struct {
	dev *Device

	Surface      gfx.Surface
	Capabilities gfx.SurfaceCapabilities
	Format       gfx.SurfaceFormat
	PresentMode  gfx.PresentMode
	Extent       gfx.Extent2D
	ImageCount   uint32

	Handle gfx.Swapchain
	Images []gfx.Image
}

// ChooseSurfaceFormat prefers BGRA8 sRGB with the non-linear sRGB color
// space and falls back to the first supported format.
func ChooseSurfaceFormat(formats []gfx.SurfaceFormat) gfx.SurfaceFormat {
	for _, f := range formats {
		if f.Format == gfx.FormatB8G8R8A8Srgb && f.ColorSpace == gfx.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(formats) == 0 {
		return gfx.SurfaceFormat{}
	}
	return formats[0]
}

// ChoosePresentMode prefers mailbox and falls back to FIFO, which every
// implementation supports.
func ChoosePresentMode(modes []gfx.PresentMode) gfx.PresentMode {
	for _, m := range modes {
		if m == gfx.PresentModeMailbox {
			return m
		}
	}
	return gfx.PresentModeFifo
}

// ChooseExtent uses the extent fixed by the surface, or else the drawable
// size clamped to the supported range.
func ChooseExtent(caps gfx.SurfaceCapabilities, drawable gfx.Extent2D) gfx.Extent2D {
	if caps.FixedExtent() {
		return caps.CurrentExtent
	}
	return gfx.Extent2D{
		Width:  clamp(drawable.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(drawable.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ImageCount asks for one image more than the minimum, but never more
// than the maximum when the surface has one.
func ImageCount(caps gfx.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// CreateSwapchain negotiates and creates a swapchain for the surface and
// fetches its images. drawable is the window's current drawable size.
func CreateSwapchain(dev *Device, surface gfx.Surface, drawable gfx.Extent2D, logger log.FieldLogger) (*SwapchainState, error) {
	driver := dev.driver
	logger = logger.WithField("component", "swapchain")

	caps, err := driver.SurfaceCapabilities(dev.Physical, surface)
	if err != nil {
		return nil, &CreationError{Stage: StageSwapchain, Err: errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceCapabilities()")}
	}
	formats, err := driver.SurfaceFormats(dev.Physical, surface)
	if err != nil {
		return nil, &CreationError{Stage: StageSwapchain, Err: errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")}
	}
	if len(formats) == 0 {
		return nil, &CreationError{Stage: StageSwapchain, Err: errors.New("surface reports no formats")}
	}
	modes, err := driver.PresentModes(dev.Physical, surface)
	if err != nil {
		return nil, &CreationError{Stage: StageSwapchain, Err: errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")}
	}

	sc := &SwapchainState{
		dev:          dev,
		Surface:      surface,
		Capabilities: caps,
		Format:       ChooseSurfaceFormat(formats),
		PresentMode:  ChoosePresentMode(modes),
		Extent:       ChooseExtent(caps, drawable),
		ImageCount:   ImageCount(caps),
	}

	info := gfx.SwapchainInfo{
		Surface:       surface,
		MinImageCount: sc.ImageCount,
		Format:        sc.Format,
		Extent:        sc.Extent,
		PresentMode:   sc.PresentMode,
		PreTransform:  caps.CurrentTransform,
		Sharing:       gfx.SharingExclusive,
	}
	if shared := dev.SharedFamilies(); shared != nil {
		info.Sharing = gfx.SharingConcurrent
		info.QueueFamilies = shared
	}

	handle, err := driver.CreateSwapchain(dev.Handle, info)
	if err != nil {
		return nil, &CreationError{Stage: StageSwapchain, Err: errors.Wrap(err, "vk.CreateSwapchain()")}
	}
	sc.Handle = handle

	images, err := driver.SwapchainImages(dev.Handle, handle)
	if err != nil {
		sc.Release()
		return nil, &CreationError{Stage: StageSwapchain, Err: errors.Wrap(err, "vk.GetSwapchainImages()")}
	}
	sc.Images = images

	logger.WithFields(log.Fields{
		"format":  sc.Format.Format,
		"mode":    sc.PresentMode,
		"extent":  sc.Extent,
		"images":  len(sc.Images),
		"sharing": info.Sharing == gfx.SharingConcurrent,
	}).Debug("swapchain created")
	return sc, nil
}

// Release destroys the swapchain. Its images go with it.
func (s *SwapchainState) Release() {
	if s.Handle != 0 {
		s.dev.driver.DestroySwapchain(s.dev.Handle, s.Handle)
		s.Handle = 0
	}
	s.Images = nil
}

// ImageViews holds one color view per swapchain image.
type ImageViews struct {
	dev     *Device
	Handles []gfx.ImageView
}

// CreateImageViews creates a view for every image of the swapchain.
func CreateImageViews(dev *Device, sc *SwapchainState) (*ImageViews, error) {
	views := &ImageViews{dev: dev}
	for idx, img := range sc.Images {
		view, err := dev.driver.CreateImageView(dev.Handle, gfx.ImageViewInfo{Image: img, Format: sc.Format})
		if err != nil {
			views.Release()
			return nil, &CreationError{Stage: StageImageView, Err: errors.Wrapf(err, "vk.CreateImageView()[%d]", idx)}
		}
		views.Handles = append(views.Handles, view)
	}
	return views, nil
}

// Release destroys the views, last created first.
func (v *ImageViews) Release() {
	for i := len(v.Handles) - 1; i >= 0; i-- {
		v.dev.driver.DestroyImageView(v.dev.Handle, v.Handles[i])
	}
	v.Handles = nil
}
