// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrOutOfDate is returned by AcquireNextImage and QueuePresent when the
// swapchain no longer matches the surface and has to be rebuilt.
var ErrOutOfDate = errors.New("swapchain out of date")

// Severity classifies a diagnostics message.
type Severity int

// Diagnostics severities in increasing order.
const (
	SeverityVerbose Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "verbose"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	}
	return "error"
}

// MessageHandler receives diagnostics messages from the driver.
type MessageHandler func(Severity, string)

// ApplicationInfo describes the application to the API.
type ApplicationInfo struct {
	Name         string
	EngineName   string
	APIMajor     uint32
	APIMinor     uint32
	VersionMajor uint32
	VersionMinor uint32
	VersionPatch uint32
}

// InstanceInfo is used to create an API instance.
type InstanceInfo struct {
	Application ApplicationInfo
	Extensions  []string
	Layers      []string
}

// QueueInfo requests queues from one family.
type QueueInfo struct {
	Family     uint32
	Priorities []float32
}

// DeviceInfo is used to create a logical device.
type DeviceInfo struct {
	Queues     []QueueInfo
	Extensions []string
}

// SharingMode controls image ownership between queue families.
type SharingMode int

// Sharing modes
const (
	SharingExclusive SharingMode = iota
	SharingConcurrent
)

// SwapchainInfo is used to create a swapchain.
type SwapchainInfo struct {
	Surface       Surface
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
	PreTransform  uint32
	Sharing       SharingMode
	QueueFamilies []uint32
	OldSwapchain  Swapchain
}

// ImageViewInfo describes a 2D color view with identity swizzle,
// one mip level and one array layer.
type ImageViewInfo struct {
	Image  Image
	Format SurfaceFormat
}

// RenderPassInfo describes the single color attachment render pass.
type RenderPassInfo struct {
	ColorFormat SurfaceFormat
}

// ShaderStage identifies a programmable pipeline stage.
type ShaderStage int

// Shader stages
const (
	StageVertex ShaderStage = iota
	StageFragment
)

func (s ShaderStage) String() string {
	if s == StageVertex {
		return "vertex"
	}
	return "fragment"
}

// ShaderStageInfo binds a shader module to a stage.
type ShaderStageInfo struct {
	Stage      ShaderStage
	Module     ShaderModule
	EntryPoint string
}

// GraphicsPipelineInfo describes the fixed-function pipeline: no vertex
// input, triangle lists, back-face culling, one sample and alpha
// blending on the single color attachment.
type GraphicsPipelineInfo struct {
	Stages     []ShaderStageInfo
	Extent     Extent2D
	Layout     PipelineLayout
	RenderPass RenderPass
}

// FramebufferInfo binds one image view to a render pass.
type FramebufferInfo struct {
	RenderPass RenderPass
	Attachment ImageView
	Extent     Extent2D
}

// DrawInfo is everything needed to record one frame.
type DrawInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Pipeline    Pipeline
	Extent      Extent2D
	ClearColor  mgl32.Vec4
	VertexCount uint32
}

// SubmitInfo describes a single command buffer submission.
type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	Signal        Semaphore
	Fence         Fence
}

// PresentInfo describes presentation of one swapchain image.
type PresentInfo struct {
	Wait       Semaphore
	Swapchain  Swapchain
	ImageIndex uint32
}

// Driver is the graphics API as seen by the orchestrator. Every
// method mirrors one API entry point; create methods return a non-nil
// error instead of a null handle on failure.
type Driver interface {
	InstanceExtensions() ([]string, error)
	CreateInstance(InstanceInfo) (Instance, error)
	DestroyInstance(Instance)
	// Inner returns the underlying API instance for collaborators that
	// need it, such as window surface creation.
	Inner(Instance) interface{}
	CreateMessenger(Instance, MessageHandler) (Messenger, error)
	DestroyMessenger(Instance, Messenger)

	// WrapSurface adopts a surface created by the windowing system.
	WrapSurface(Instance, uintptr) (Surface, error)
	DestroySurface(Instance, Surface)

	EnumeratePhysicalDevices(Instance) ([]PhysicalDevice, error)
	Properties(PhysicalDevice) PhysicalDeviceProperties
	QueueFamilies(PhysicalDevice) []QueueFamily
	SurfaceSupport(PhysicalDevice, uint32, Surface) (bool, error)
	DeviceExtensions(PhysicalDevice) ([]string, error)
	SurfaceCapabilities(PhysicalDevice, Surface) (SurfaceCapabilities, error)
	SurfaceFormats(PhysicalDevice, Surface) ([]SurfaceFormat, error)
	PresentModes(PhysicalDevice, Surface) ([]PresentMode, error)

	CreateDevice(PhysicalDevice, DeviceInfo) (Device, error)
	DestroyDevice(Device)
	GetQueue(Device, uint32, uint32) Queue
	DeviceWaitIdle(Device) error

	CreateSwapchain(Device, SwapchainInfo) (Swapchain, error)
	DestroySwapchain(Device, Swapchain)
	SwapchainImages(Device, Swapchain) ([]Image, error)
	CreateImageView(Device, ImageViewInfo) (ImageView, error)
	DestroyImageView(Device, ImageView)

	CreateShaderModule(Device, []byte) (ShaderModule, error)
	DestroyShaderModule(Device, ShaderModule)
	CreateRenderPass(Device, RenderPassInfo) (RenderPass, error)
	DestroyRenderPass(Device, RenderPass)
	CreatePipelineLayout(Device) (PipelineLayout, error)
	DestroyPipelineLayout(Device, PipelineLayout)
	CreateGraphicsPipeline(Device, GraphicsPipelineInfo) (Pipeline, error)
	DestroyPipeline(Device, Pipeline)
	CreateFramebuffer(Device, FramebufferInfo) (Framebuffer, error)
	DestroyFramebuffer(Device, Framebuffer)

	CreateCommandPool(Device, uint32) (CommandPool, error)
	// DestroyCommandPool also frees every command buffer allocated from it.
	DestroyCommandPool(Device, CommandPool)
	AllocateCommandBuffer(Device, CommandPool) (CommandBuffer, error)
	// RecordDraw resets the command buffer and records one render pass
	// instance drawing VertexCount procedural vertices.
	RecordDraw(CommandBuffer, DrawInfo) error

	CreateSemaphore(Device) (Semaphore, error)
	DestroySemaphore(Device, Semaphore)
	CreateFence(Device, bool) (Fence, error)
	DestroyFence(Device, Fence)
	WaitForFence(Device, Fence, uint64) error
	ResetFence(Device, Fence) error

	AcquireNextImage(Device, Swapchain, uint64, Semaphore) (uint32, error)
	QueueSubmit(Queue, SubmitInfo) error
	QueuePresent(Queue, PresentInfo) error
}
