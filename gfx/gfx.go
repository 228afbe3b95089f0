// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the graphics API boundary that renderers talk to.
// Handles are opaque values issued by a Driver; the orchestrator never
// sees the underlying API objects.
package gfx

import "math"

// Forever is the unbounded timeout used by every blocking wait.
const Forever uint64 = math.MaxUint64

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// ReleaseFunc adapts a plain function to Releasable.
type ReleaseFunc func()

// Release implements Releasable
func (f ReleaseFunc) Release() {
	f()
}

// Opaque handles issued by a Driver. The zero value of every
// handle type is the null handle.
type (
	Instance       uint64
	Messenger      uint64
	PhysicalDevice uint64
	Device         uint64
	Queue          uint64
	Surface        uint64
	Swapchain      uint64
	Image          uint64
	ImageView      uint64
	ShaderModule   uint64
	RenderPass     uint64
	PipelineLayout uint64
	Pipeline       uint64
	Framebuffer    uint64
	CommandPool    uint64
	CommandBuffer  uint64
	Semaphore      uint64
	Fence          uint64
)

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Format identifies a pixel format.
type Format int

// Pixel formats known to the orchestrator. Anything else a surface
// reports is carried through as FormatOther plus the raw value.
const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Srgb
	FormatB8G8R8A8Unorm
	FormatR8G8B8A8Srgb
	FormatR8G8B8A8Unorm
	FormatOther
)

func (f Format) String() string {
	switch f {
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatOther:
		return "OTHER"
	}
	return "UNDEFINED"
}

// ColorSpace identifies the color space a surface format is paired with.
type ColorSpace int

// Color spaces
const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceOther
)

// SurfaceFormat is a format/color space pair supported by a surface.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
	// Raw carries the driver value when Format is FormatOther.
	Raw int32
}

// PresentMode identifies a presentation engine mode.
type PresentMode int

// Present modes. FIFO is the only mode every implementation supports.
const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "IMMEDIATE"
	case PresentModeMailbox:
		return "MAILBOX"
	case PresentModeFifo:
		return "FIFO"
	case PresentModeFifoRelaxed:
		return "FIFO_RELAXED"
	}
	return "UNKNOWN"
}

// DeviceType describes the kind of physical device.
type DeviceType int

// Physical device types
const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

// QueueFlags is the capability mask of a queue family.
type QueueFlags uint32

// Queue capabilities
const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Flags QueueFlags
	Count uint32
}

// PhysicalDeviceProperties is the subset of device properties and
// features that device selection looks at.
type PhysicalDeviceProperties struct {
	Name           string
	DeviceID       uint32
	VendorID       uint32
	Type           DeviceType
	GeometryShader bool
}

// SurfaceCapabilities is a snapshot of what a surface supports.
type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount of zero means there is no upper bound.
	MaxImageCount uint32
	// CurrentExtent is fixed by the surface unless Width is math.MaxUint32.
	CurrentExtent       Extent2D
	MinImageExtent      Extent2D
	MaxImageExtent      Extent2D
	SupportedTransforms uint32
	CurrentTransform    uint32
}

// UndefinedExtent is the sentinel width reported when the
// application chooses the extent.
const UndefinedExtent = math.MaxUint32

// FixedExtent reports whether the surface dictates its extent.
func (c SurfaceCapabilities) FixedExtent() bool {
	return c.CurrentExtent.Width != UndefinedExtent
}
