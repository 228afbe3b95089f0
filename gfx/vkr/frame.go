// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/paphos/gfx"
	vk "github.com/devblok/vulkan"
)

// CreateCommandPool creates a pool whose buffers can be reset one by one.
func (d *Driver) CreateCommandPool(h gfx.Device, family uint32) (gfx.CommandPool, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: family,
	}
	var pool vk.CommandPool
	if err := call("vk.CreateCommandPool", vk.CreateCommandPool(device, &cpci, nil, &pool)); err != nil {
		return 0, err
	}
	return gfx.CommandPool(d.pools.put(&commandPool{handle: pool})), nil
}

// DestroyCommandPool implements gfx.Driver
func (d *Driver) DestroyCommandPool(h gfx.Device, p gfx.CommandPool) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	pool, ok := d.pools.take(uint64(p))
	if !ok {
		return
	}
	for _, cb := range pool.buffers {
		d.commandBuffers.take(cb)
	}
	vk.DestroyCommandPool(device, pool.handle, nil)
}

// AllocateCommandBuffer allocates one primary command buffer.
func (d *Driver) AllocateCommandBuffer(h gfx.Device, p gfx.CommandPool) (gfx.CommandBuffer, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	pool, ok := d.pools.get(uint64(p))
	if !ok {
		return 0, unknown("command pool", uint64(p))
	}
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := call("vk.AllocateCommandBuffers", vk.AllocateCommandBuffers(device, &cbai, buffers)); err != nil {
		return 0, err
	}
	cb := d.commandBuffers.put(commandBuffer{handle: buffers[0], pool: uint64(p)})
	pool.buffers = append(pool.buffers, cb)
	return gfx.CommandBuffer(cb), nil
}

// RecordDraw implements gfx.Driver
func (d *Driver) RecordDraw(h gfx.CommandBuffer, info gfx.DrawInfo) error {
	cb, ok := d.commandBuffers.get(uint64(h))
	if !ok {
		return unknown("command buffer", uint64(h))
	}
	renderPass, ok := d.renderPasses.get(uint64(info.RenderPass))
	if !ok {
		return unknown("render pass", uint64(info.RenderPass))
	}
	framebuffer, ok := d.framebuffers.get(uint64(info.Framebuffer))
	if !ok {
		return unknown("framebuffer", uint64(info.Framebuffer))
	}
	pipeline, ok := d.pipelines.get(uint64(info.Pipeline))
	if !ok {
		return unknown("pipeline", uint64(info.Pipeline))
	}
	commandBuffer := cb.handle

	if err := call("vk.ResetCommandBuffer", vk.ResetCommandBuffer(commandBuffer, 0)); err != nil {
		return err
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if err := call("vk.BeginCommandBuffer", vk.BeginCommandBuffer(commandBuffer, &cbbi)); err != nil {
		return err
	}

	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetColor(info.ClearColor[:])

	extent := fromExtent(info.Extent)
	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: 1,
		PClearValues:    clearValues,
	}
	viewport := vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}

	vk.CmdBeginRenderPass(commandBuffer, &rpbi, vk.SubpassContentsInline)
	vk.CmdBindPipeline(commandBuffer, vk.PipelineBindPointGraphics, pipeline)
	vk.CmdSetViewport(commandBuffer, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer, 0, 1, []vk.Rect2D{scissor})
	vk.CmdDraw(commandBuffer, info.VertexCount, 1, 0, 0)
	vk.CmdEndRenderPass(commandBuffer)

	return call("vk.EndCommandBuffer", vk.EndCommandBuffer(commandBuffer))
}

// CreateSemaphore implements gfx.Driver
func (d *Driver) CreateSemaphore(h gfx.Device) (gfx.Semaphore, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := call("vk.CreateSemaphore", vk.CreateSemaphore(device, &sci, nil, &semaphore)); err != nil {
		return 0, err
	}
	return gfx.Semaphore(d.semaphores.put(semaphore)), nil
}

// DestroySemaphore implements gfx.Driver
func (d *Driver) DestroySemaphore(h gfx.Device, s gfx.Semaphore) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	if semaphore, ok := d.semaphores.take(uint64(s)); ok {
		vk.DestroySemaphore(device, semaphore, nil)
	}
}

// CreateFence implements gfx.Driver
func (d *Driver) CreateFence(h gfx.Device, signaled bool) (gfx.Fence, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := call("vk.CreateFence", vk.CreateFence(device, &fci, nil, &fence)); err != nil {
		return 0, err
	}
	return gfx.Fence(d.fences.put(fence)), nil
}

// DestroyFence implements gfx.Driver
func (d *Driver) DestroyFence(h gfx.Device, f gfx.Fence) {
	device, err := d.device(h)
	if err != nil {
		return
	}
	if fence, ok := d.fences.take(uint64(f)); ok {
		vk.DestroyFence(device, fence, nil)
	}
}

// WaitForFence implements gfx.Driver
func (d *Driver) WaitForFence(h gfx.Device, f gfx.Fence, timeout uint64) error {
	device, err := d.device(h)
	if err != nil {
		return err
	}
	fence, ok := d.fences.get(uint64(f))
	if !ok {
		return unknown("fence", uint64(f))
	}
	return call("vk.WaitForFences", vk.WaitForFences(device, 1, []vk.Fence{fence}, vk.True, timeout))
}

// ResetFence implements gfx.Driver
func (d *Driver) ResetFence(h gfx.Device, f gfx.Fence) error {
	device, err := d.device(h)
	if err != nil {
		return err
	}
	fence, ok := d.fences.get(uint64(f))
	if !ok {
		return unknown("fence", uint64(f))
	}
	return call("vk.ResetFences", vk.ResetFences(device, 1, []vk.Fence{fence}))
}

// AcquireNextImage implements gfx.Driver. A suboptimal swapchain is still
// usable and is not reported.
func (d *Driver) AcquireNextImage(h gfx.Device, s gfx.Swapchain, timeout uint64, signal gfx.Semaphore) (uint32, error) {
	device, err := d.device(h)
	if err != nil {
		return 0, err
	}
	sc, ok := d.swapchains.get(uint64(s))
	if !ok {
		return 0, unknown("swapchain", uint64(s))
	}
	semaphore, ok := d.semaphores.get(uint64(signal))
	if !ok {
		return 0, unknown("semaphore", uint64(signal))
	}
	var idx uint32
	switch res := vk.AcquireNextImage(device, sc.handle, timeout, semaphore, nil, &idx); res {
	case vk.Success, vk.Suboptimal:
		return idx, nil
	case vk.ErrorOutOfDate:
		return 0, gfx.ErrOutOfDate
	default:
		return 0, call("vk.AcquireNextImage", res)
	}
}

// QueueSubmit implements gfx.Driver
func (d *Driver) QueueSubmit(q gfx.Queue, info gfx.SubmitInfo) error {
	queue, err := d.queue(q)
	if err != nil {
		return err
	}
	cb, ok := d.commandBuffers.get(uint64(info.CommandBuffer))
	if !ok {
		return unknown("command buffer", uint64(info.CommandBuffer))
	}
	wait, ok := d.semaphores.get(uint64(info.Wait))
	if !ok {
		return unknown("semaphore", uint64(info.Wait))
	}
	signal, ok := d.semaphores.get(uint64(info.Signal))
	if !ok {
		return unknown("semaphore", uint64(info.Signal))
	}
	fence, ok := d.fences.get(uint64(info.Fence))
	if !ok {
		return unknown("fence", uint64(info.Fence))
	}
	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal},
	}}
	return call("vk.QueueSubmit", vk.QueueSubmit(queue, 1, submit, fence))
}

// QueuePresent implements gfx.Driver
func (d *Driver) QueuePresent(q gfx.Queue, info gfx.PresentInfo) error {
	queue, err := d.queue(q)
	if err != nil {
		return err
	}
	sc, ok := d.swapchains.get(uint64(info.Swapchain))
	if !ok {
		return unknown("swapchain", uint64(info.Swapchain))
	}
	wait, ok := d.semaphores.get(uint64(info.Wait))
	if !ok {
		return unknown("semaphore", uint64(info.Wait))
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	switch res := vk.QueuePresent(queue, &presentInfo); res {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return gfx.ErrOutOfDate
	default:
		return call("vk.QueuePresent", res)
	}
}
