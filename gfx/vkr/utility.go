// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	"github.com/devblok/paphos/gfx"
	vk "github.com/devblok/vulkan"
)

// SliceUint32 reslices bytes into a uint32, that is used
// to submit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func safeString(s string) string {
	return s + "\x00"
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

func toFormat(f vk.Format) gfx.Format {
	switch f {
	case vk.FormatB8g8r8a8Srgb:
		return gfx.FormatB8G8R8A8Srgb
	case vk.FormatB8g8r8a8Unorm:
		return gfx.FormatB8G8R8A8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return gfx.FormatR8G8B8A8Srgb
	case vk.FormatR8g8b8a8Unorm:
		return gfx.FormatR8G8B8A8Unorm
	case vk.FormatUndefined:
		return gfx.FormatUndefined
	}
	return gfx.FormatOther
}

func fromFormat(f gfx.SurfaceFormat) vk.Format {
	switch f.Format {
	case gfx.FormatB8G8R8A8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case gfx.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gfx.FormatR8G8B8A8Srgb:
		return vk.FormatR8g8b8a8Srgb
	case gfx.FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gfx.FormatOther:
		return vk.Format(f.Raw)
	}
	return vk.FormatUndefined
}

func toSurfaceFormat(sf vk.SurfaceFormat) gfx.SurfaceFormat {
	out := gfx.SurfaceFormat{
		Format:     toFormat(sf.Format),
		ColorSpace: gfx.ColorSpaceOther,
	}
	if sf.ColorSpace == vk.ColorSpaceSrgbNonlinear {
		out.ColorSpace = gfx.ColorSpaceSrgbNonlinear
	}
	if out.Format == gfx.FormatOther {
		out.Raw = int32(sf.Format)
	}
	return out
}

// sRGB nonlinear is the only color space the swapchain is created with.
func fromColorSpace(gfx.ColorSpace) vk.ColorSpace {
	return vk.ColorSpaceSrgbNonlinear
}

func toPresentMode(m vk.PresentMode) gfx.PresentMode {
	switch m {
	case vk.PresentModeImmediate:
		return gfx.PresentModeImmediate
	case vk.PresentModeMailbox:
		return gfx.PresentModeMailbox
	case vk.PresentModeFifoRelaxed:
		return gfx.PresentModeFifoRelaxed
	}
	return gfx.PresentModeFifo
}

func fromPresentMode(m gfx.PresentMode) vk.PresentMode {
	switch m {
	case gfx.PresentModeImmediate:
		return vk.PresentModeImmediate
	case gfx.PresentModeMailbox:
		return vk.PresentModeMailbox
	case gfx.PresentModeFifoRelaxed:
		return vk.PresentModeFifoRelaxed
	}
	return vk.PresentModeFifo
}

func toDeviceType(t vk.PhysicalDeviceType) gfx.DeviceType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return gfx.DeviceTypeIntegratedGPU
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return gfx.DeviceTypeDiscreteGPU
	case vk.PhysicalDeviceTypeVirtualGpu:
		return gfx.DeviceTypeVirtualGPU
	case vk.PhysicalDeviceTypeCpu:
		return gfx.DeviceTypeCPU
	}
	return gfx.DeviceTypeOther
}

func toQueueFlags(f vk.QueueFlags) gfx.QueueFlags {
	var out gfx.QueueFlags
	if f&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
		out |= gfx.QueueGraphics
	}
	if f&vk.QueueFlags(vk.QueueComputeBit) != 0 {
		out |= gfx.QueueCompute
	}
	if f&vk.QueueFlags(vk.QueueTransferBit) != 0 {
		out |= gfx.QueueTransfer
	}
	return out
}

func toSeverity(flags vk.DebugReportFlags) gfx.Severity {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return gfx.SeverityError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		return gfx.SeverityWarning
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		return gfx.SeverityInfo
	}
	return gfx.SeverityVerbose
}

func toExtent(e vk.Extent2D) gfx.Extent2D {
	e.Deref()
	return gfx.Extent2D{Width: e.Width, Height: e.Height}
}

func fromExtent(e gfx.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}
