// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/paphos/gfx"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// CreateDevice implements gfx.Driver
func (d *Driver) CreateDevice(h gfx.PhysicalDevice, info gfx.DeviceInfo) (gfx.Device, error) {
	pd, err := d.physicalDevice(h)
	if err != nil {
		return 0, err
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(info.Queues))
	for i, q := range info.Queues {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: q.Family,
			QueueCount:       uint32(len(q.Priorities)),
			PQueuePriorities: q.Priorities,
		}
	}
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
	}
	var device vk.Device
	if err := call("vk.CreateDevice", vk.CreateDevice(pd, &dci, nil, &device)); err != nil {
		return 0, err
	}
	return gfx.Device(d.devices.put(device)), nil
}

// DestroyDevice implements gfx.Driver
func (d *Driver) DestroyDevice(h gfx.Device) {
	device, ok := d.devices.take(uint64(h))
	if !ok {
		return
	}
	d.queueMu.Lock()
	for key := range d.queues {
		if key>>16 == uint64(h) {
			delete(d.queues, key)
		}
	}
	d.queueMu.Unlock()
	vk.DestroyDevice(device, nil)
}

// GetQueue implements gfx.Driver. The handle is derived from the device,
// family and index, so asking twice yields the same handle.
func (d *Driver) GetQueue(h gfx.Device, family, index uint32) gfx.Queue {
	device, err := d.device(h)
	if err != nil {
		return 0
	}
	key := uint64(h)<<16 | uint64(family)<<8 | uint64(index)
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	if _, ok := d.queues[key]; !ok {
		var queue vk.Queue
		vk.GetDeviceQueue(device, family, index, &queue)
		d.queues[key] = queue
	}
	return gfx.Queue(key)
}

func (d *Driver) queue(h gfx.Queue) (vk.Queue, error) {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	queue, ok := d.queues[uint64(h)]
	if !ok {
		return nil, unknown("queue", uint64(h))
	}
	return queue, nil
}

// DeviceWaitIdle implements gfx.Driver
func (d *Driver) DeviceWaitIdle(h gfx.Device) error {
	device, err := d.device(h)
	if err != nil {
		return err
	}
	return call("vk.DeviceWaitIdle", vk.DeviceWaitIdle(device))
}

// CreateSwapchain implements gfx.Driver
func (d *Driver) CreateSwapchain(h gfx.Device, info gfx.SwapchainInfo) (gfx.Swapchain, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	surface, ok := d.surfaces.get(uint64(info.Surface))
	if !ok {
		return 0, unknown("surface", uint64(info.Surface))
	}
	var old vk.Swapchain
	if info.OldSwapchain != 0 {
		if sc, ok := d.swapchains.get(uint64(info.OldSwapchain)); ok {
			old = sc.handle
		}
	}

	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      fromFormat(info.Format),
		ImageColorSpace:  fromColorSpace(info.Format.ColorSpace),
		ImageExtent:      fromExtent(info.Extent),
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformFlagBits(info.PreTransform),
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      fromPresentMode(info.PresentMode),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     old,
	}
	if info.Sharing == gfx.SharingConcurrent {
		scci.ImageSharingMode = vk.SharingModeConcurrent
		scci.QueueFamilyIndexCount = uint32(len(info.QueueFamilies))
		scci.PQueueFamilyIndices = info.QueueFamilies
	}

	var handle vk.Swapchain
	if err := call("vk.CreateSwapchain", vk.CreateSwapchain(device, &scci, nil, &handle)); err != nil {
		return 0, err
	}
	return gfx.Swapchain(d.swapchains.put(&swapchain{handle: handle})), nil
}

// DestroySwapchain implements gfx.Driver. The swapchain images go with it.
func (d *Driver) DestroySwapchain(h gfx.Device, s gfx.Swapchain) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	sc, ok := d.swapchains.take(uint64(s))
	if !ok {
		return
	}
	for _, img := range sc.images {
		d.images.take(img)
	}
	vk.DestroySwapchain(device, sc.handle, nil)
}

// SwapchainImages implements gfx.Driver
func (d *Driver) SwapchainImages(h gfx.Device, s gfx.Swapchain) ([]gfx.Image, error) {
	device, err := d.device(h)
	if err != nil {
		return nil, err
	}
	sc, ok := d.swapchains.get(uint64(s))
	if !ok {
		return nil, unknown("swapchain", uint64(s))
	}
	var numImages uint32
	if err := call("vk.GetSwapchainImages", vk.GetSwapchainImages(device, sc.handle, &numImages, nil)); err != nil {
		return nil, err
	}
	images := make([]vk.Image, numImages)
	if err := call("vk.GetSwapchainImages", vk.GetSwapchainImages(device, sc.handle, &numImages, images)); err != nil {
		return nil, err
	}
	for _, img := range sc.images {
		d.images.take(img)
	}
	sc.images = sc.images[:0]
	out := make([]gfx.Image, 0, numImages)
	for _, img := range images[:numImages] {
		h := d.images.put(img)
		sc.images = append(sc.images, h)
		out = append(out, gfx.Image(h))
	}
	return out, nil
}

// CreateImageView implements gfx.Driver
func (d *Driver) CreateImageView(h gfx.Device, info gfx.ImageViewInfo) (gfx.ImageView, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	image, ok := d.images.get(uint64(info.Image))
	if !ok {
		return 0, unknown("image", uint64(info.Image))
	}
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   fromFormat(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := call("vk.CreateImageView", vk.CreateImageView(device, &ivci, nil, &view)); err != nil {
		return 0, err
	}
	return gfx.ImageView(d.views.put(view)), nil
}

// DestroyImageView implements gfx.Driver
func (d *Driver) DestroyImageView(h gfx.Device, v gfx.ImageView) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	if view, ok := d.views.take(uint64(v)); ok {
		vk.DestroyImageView(device, view, nil)
	}
}

// CreateShaderModule implements gfx.Driver
func (d *Driver) CreateShaderModule(h gfx.Device, code []byte) (gfx.ShaderModule, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Errorf("invalid bytecode size %d", len(code))
	}
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    SliceUint32(code),
	}
	var module vk.ShaderModule
	if err := call("vk.CreateShaderModule", vk.CreateShaderModule(device, &smci, nil, &module)); err != nil {
		return 0, err
	}
	return gfx.ShaderModule(d.shaders.put(module)), nil
}

// DestroyShaderModule implements gfx.Driver
func (d *Driver) DestroyShaderModule(h gfx.Device, m gfx.ShaderModule) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	if module, ok := d.shaders.take(uint64(m)); ok {
		vk.DestroyShaderModule(device, module, nil)
	}
}

// CreateRenderPass creates a single subpass render pass with one color
// attachment that is cleared on load and left ready for presentation.
func (d *Driver) CreateRenderPass(h gfx.Device, info gfx.RenderPassInfo) (gfx.RenderPass, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	attachments := []vk.AttachmentDescription{{
		Format:         fromFormat(info.ColorFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}
	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	subpassDependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorAttachmentRef)),
		PColorAttachments:    colorAttachmentRef,
	}
	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{subpassDependency},
	}
	var renderPass vk.RenderPass
	if err := call("vk.CreateRenderPass", vk.CreateRenderPass(device, &rpci, nil, &renderPass)); err != nil {
		return 0, err
	}
	return gfx.RenderPass(d.renderPasses.put(renderPass)), nil
}

// DestroyRenderPass implements gfx.Driver
func (d *Driver) DestroyRenderPass(h gfx.Device, rp gfx.RenderPass) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	if renderPass, ok := d.renderPasses.take(uint64(rp)); ok {
		vk.DestroyRenderPass(device, renderPass, nil)
	}
}

// CreatePipelineLayout creates an empty layout: no descriptor sets and no
// push constants.
func (d *Driver) CreatePipelineLayout(h gfx.Device) (gfx.PipelineLayout, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	plci := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	var layout vk.PipelineLayout
	if err := call("vk.CreatePipelineLayout", vk.CreatePipelineLayout(device, &plci, nil, &layout)); err != nil {
		return 0, err
	}
	return gfx.PipelineLayout(d.layouts.put(layout)), nil
}

// DestroyPipelineLayout implements gfx.Driver
func (d *Driver) DestroyPipelineLayout(h gfx.Device, l gfx.PipelineLayout) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	if layout, ok := d.layouts.take(uint64(l)); ok {
		vk.DestroyPipelineLayout(device, layout, nil)
	}
}

func shaderStageBit(s gfx.ShaderStage) vk.ShaderStageFlagBits {
	if s == gfx.StageVertex {
		return vk.ShaderStageVertexBit
	}
	return vk.ShaderStageFragmentBit
}

// CreateGraphicsPipeline implements gfx.Driver. Viewport and scissor are
// dynamic and set when recording.
func (d *Driver) CreateGraphicsPipeline(h gfx.Device, info gfx.GraphicsPipelineInfo) (gfx.Pipeline, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	layout, ok := d.layouts.get(uint64(info.Layout))
	if !ok {
		return 0, unknown("pipeline layout", uint64(info.Layout))
	}
	renderPass, ok := d.renderPasses.get(uint64(info.RenderPass))
	if !ok {
		return 0, unknown("render pass", uint64(info.RenderPass))
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for idx, st := range info.Stages {
		module, ok := d.shaders.get(uint64(st.Module))
		if !ok {
			return 0, unknown("shader module", uint64(st.Module))
		}
		stages[idx] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  shaderStageBit(st.Stage),
			Module: module,
			PName:  safeString(st.EntryPoint),
		}
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				BlendEnable:         vk.True,
				SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
				DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
				ColorBlendOp:        vk.BlendOpAdd,
				SrcAlphaBlendFactor: vk.BlendFactorOne,
				DstAlphaBlendFactor: vk.BlendFactorZero,
				AlphaBlendOp:        vk.BlendOpAdd,
				ColorWriteMask:      0xF,
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateViewport,
				vk.DynamicStateScissor,
			},
		},
		Layout:     layout,
		RenderPass: renderPass,
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := call("vk.CreateGraphicsPipelines", vk.CreateGraphicsPipelines(device, nil, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		return 0, err
	}
	return gfx.Pipeline(d.pipelines.put(pipelines[0])), nil
}

// DestroyPipeline implements gfx.Driver
func (d *Driver) DestroyPipeline(h gfx.Device, p gfx.Pipeline) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	if pipeline, ok := d.pipelines.take(uint64(p)); ok {
		vk.DestroyPipeline(device, pipeline, nil)
	}
}

// CreateFramebuffer implements gfx.Driver
func (d *Driver) CreateFramebuffer(h gfx.Device, info gfx.FramebufferInfo) (gfx.Framebuffer, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	renderPass, ok := d.renderPasses.get(uint64(info.RenderPass))
	if !ok {
		return 0, unknown("render pass", uint64(info.RenderPass))
	}
	view, ok := d.views.get(uint64(info.Attachment))
	if !ok {
		return 0, unknown("image view", uint64(info.Attachment))
	}
	fbci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{view},
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          1,
	}
	var framebuffer vk.Framebuffer
	if err := call("vk.CreateFramebuffer", vk.CreateFramebuffer(device, &fbci, nil, &framebuffer)); err != nil {
		return 0, err
	}
	return gfx.Framebuffer(d.framebuffers.put(framebuffer)), nil
}

// DestroyFramebuffer implements gfx.Driver
func (d *Driver) DestroyFramebuffer(h gfx.Device, f gfx.Framebuffer) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	if framebuffer, ok := d.framebuffers.take(uint64(f)); ok {
		vk.DestroyFramebuffer(device, framebuffer, nil)
	}
}
