// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sim

import (
	"github.com/devblok/paphos/gfx"
	"github.com/pkg/errors"
)

// CreateDevice implements gfx.Driver
func (d *Driver) CreateDevice(pd gfx.PhysicalDevice, info gfx.DeviceInfo) (gfx.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := map[uint32]bool{}
	for _, q := range info.Queues {
		if seen[q.Family] {
			d.violate("CreateDevice: queue family %d requested twice", q.Family)
		}
		seen[q.Family] = true
	}
	supported := map[string]bool{}
	for _, ext := range d.spec(pd).Extensions {
		supported[ext] = true
	}
	for _, ext := range info.Extensions {
		if !supported[ext] {
			d.violate("CreateDevice: extension %s is not supported", ext)
		}
	}
	var parent uint64
	for _, o := range d.live {
		if o.Kind == "instance" {
			parent = o.Handle
		}
	}
	h, err := d.create("CreateDevice", "device", parent)
	if err != nil {
		return 0, err
	}
	d.devices[gfx.Device(h)] = d.physical[pd]
	return gfx.Device(h), nil
}

// DestroyDevice implements gfx.Driver
func (d *Driver) DestroyDevice(device gfx.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.devices, device)
	d.destroy("DestroyDevice", "device", uint64(device))
}

// GetQueue implements gfx.Driver. Queue handles are derived from the
// device and family and are not tracked as live objects.
func (d *Driver) GetQueue(device gfx.Device, family, index uint32) gfx.Queue {
	return gfx.Queue(uint64(device)<<16 | uint64(family)<<8 | uint64(index))
}

// DeviceWaitIdle implements gfx.Driver. Every pending submission completes.
func (d *Driver) DeviceWaitIdle(device gfx.Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("DeviceWaitIdle", uint64(device)); err != nil {
		return err
	}
	for _, f := range d.fences {
		if f.pending {
			d.complete(f)
		}
	}
	return nil
}

func (d *Driver) complete(f *fence) {
	f.pending = false
	f.signaled = true
	if sc, ok := d.swapchains[f.chain]; ok {
		sc.pending--
	}
	delete(d.inFlight, f.buffer)
}

// CreateSwapchain implements gfx.Driver. The swapchain owns exactly
// MinImageCount images.
func (d *Driver) CreateSwapchain(device gfx.Device, info gfx.SwapchainInfo) (gfx.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive(uint64(info.Surface)) {
		d.violate("CreateSwapchain: surface %d is not alive", info.Surface)
	}
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		d.violate("CreateSwapchain: zero extent %dx%d", info.Extent.Width, info.Extent.Height)
	}
	if info.Sharing == gfx.SharingConcurrent && len(info.QueueFamilies) < 2 {
		d.violate("CreateSwapchain: concurrent sharing with %d families", len(info.QueueFamilies))
	}
	h, err := d.create("CreateSwapchain", "swapchain", uint64(device))
	if err != nil {
		return 0, err
	}
	sc := &swapchain{surface: info.Surface}
	for i := uint32(0); i < info.MinImageCount; i++ {
		d.next++
		sc.images = append(sc.images, gfx.Image(d.next))
	}
	d.swapchains[gfx.Swapchain(h)] = sc
	return gfx.Swapchain(h), nil
}

// DestroySwapchain implements gfx.Driver
func (d *Driver) DestroySwapchain(device gfx.Device, swapchain gfx.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sc, ok := d.swapchains[swapchain]; ok && sc.pending > 0 {
		d.violate("DestroySwapchain#%d with %d frames in flight", swapchain, sc.pending)
	}
	delete(d.swapchains, swapchain)
	d.destroy("DestroySwapchain", "swapchain", uint64(swapchain))
}

// SwapchainImages implements gfx.Driver
func (d *Driver) SwapchainImages(device gfx.Device, swapchain gfx.Swapchain) ([]gfx.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SwapchainImages", uint64(swapchain)); err != nil {
		return nil, err
	}
	sc, ok := d.swapchains[swapchain]
	if !ok {
		return nil, errors.Errorf("sim: unknown swapchain %d", swapchain)
	}
	return append([]gfx.Image(nil), sc.images...), nil
}

// CreateImageView implements gfx.Driver
func (d *Driver) CreateImageView(device gfx.Device, info gfx.ImageViewInfo) (gfx.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.create("CreateImageView", "image view", uint64(device))
	return gfx.ImageView(h), err
}

// DestroyImageView implements gfx.Driver
func (d *Driver) DestroyImageView(device gfx.Device, view gfx.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy("DestroyImageView", "image view", uint64(view))
}

// CreateShaderModule implements gfx.Driver. Code must be a non-empty
// sequence of 32-bit words.
func (d *Driver) CreateShaderModule(device gfx.Device, code []byte) (gfx.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(code) == 0 || len(code)%4 != 0 {
		d.ops = append(d.ops, Op{Name: "CreateShaderModule"})
		return 0, errors.Errorf("sim: invalid shader code size %d", len(code))
	}
	h, err := d.create("CreateShaderModule", "shader module", uint64(device))
	return gfx.ShaderModule(h), err
}

// DestroyShaderModule implements gfx.Driver
func (d *Driver) DestroyShaderModule(device gfx.Device, module gfx.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy("DestroyShaderModule", "shader module", uint64(module))
}

// CreateRenderPass implements gfx.Driver
func (d *Driver) CreateRenderPass(device gfx.Device, info gfx.RenderPassInfo) (gfx.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.create("CreateRenderPass", "render pass", uint64(device))
	return gfx.RenderPass(h), err
}

// DestroyRenderPass implements gfx.Driver
func (d *Driver) DestroyRenderPass(device gfx.Device, pass gfx.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy("DestroyRenderPass", "render pass", uint64(pass))
}

// CreatePipelineLayout implements gfx.Driver
func (d *Driver) CreatePipelineLayout(device gfx.Device) (gfx.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.create("CreatePipelineLayout", "pipeline layout", uint64(device))
	return gfx.PipelineLayout(h), err
}

// DestroyPipelineLayout implements gfx.Driver
func (d *Driver) DestroyPipelineLayout(device gfx.Device, layout gfx.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy("DestroyPipelineLayout", "pipeline layout", uint64(layout))
}

// CreateGraphicsPipeline implements gfx.Driver
func (d *Driver) CreateGraphicsPipeline(device gfx.Device, info gfx.GraphicsPipelineInfo) (gfx.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range info.Stages {
		if !d.alive(uint64(s.Module)) {
			d.violate("CreateGraphicsPipeline: %s module %d is not alive", s.Stage, s.Module)
		}
	}
	if !d.alive(uint64(info.Layout)) || !d.alive(uint64(info.RenderPass)) {
		d.violate("CreateGraphicsPipeline: layout or render pass is not alive")
	}
	h, err := d.create("CreateGraphicsPipeline", "pipeline", uint64(device))
	return gfx.Pipeline(h), err
}

// DestroyPipeline implements gfx.Driver
func (d *Driver) DestroyPipeline(device gfx.Device, pipeline gfx.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy("DestroyPipeline", "pipeline", uint64(pipeline))
}

// CreateFramebuffer implements gfx.Driver
func (d *Driver) CreateFramebuffer(device gfx.Device, info gfx.FramebufferInfo) (gfx.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive(uint64(info.Attachment)) {
		d.violate("CreateFramebuffer: attachment %d is not alive", info.Attachment)
	}
	h, err := d.create("CreateFramebuffer", "framebuffer", uint64(device))
	return gfx.Framebuffer(h), err
}

// DestroyFramebuffer implements gfx.Driver
func (d *Driver) DestroyFramebuffer(device gfx.Device, fb gfx.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy("DestroyFramebuffer", "framebuffer", uint64(fb))
}

// CreateCommandPool implements gfx.Driver
func (d *Driver) CreateCommandPool(device gfx.Device, family uint32) (gfx.CommandPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.create("CreateCommandPool", "command pool", uint64(device))
	return gfx.CommandPool(h), err
}

// DestroyCommandPool implements gfx.Driver. Buffers allocated from the
// pool are freed with it.
func (d *Driver) DestroyCommandPool(device gfx.Device, pool gfx.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.live[:0]
	for _, o := range d.live {
		if o.Kind == "command buffer" && o.Parent == uint64(pool) {
			if d.inFlight[gfx.CommandBuffer(o.Handle)] {
				d.violate("DestroyCommandPool#%d: command buffer %d is in flight", pool, o.Handle)
			}
			delete(d.recorded, gfx.CommandBuffer(o.Handle))
			continue
		}
		kept = append(kept, o)
	}
	d.live = kept
	d.destroy("DestroyCommandPool", "command pool", uint64(pool))
}

// AllocateCommandBuffer implements gfx.Driver
func (d *Driver) AllocateCommandBuffer(device gfx.Device, pool gfx.CommandPool) (gfx.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.create("AllocateCommandBuffer", "command buffer", uint64(pool))
	return gfx.CommandBuffer(h), err
}

// RecordDraw implements gfx.Driver
func (d *Driver) RecordDraw(cb gfx.CommandBuffer, info gfx.DrawInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("RecordDraw", uint64(cb)); err != nil {
		return err
	}
	if d.inFlight[cb] {
		d.violate("RecordDraw#%d while the buffer is in flight", cb)
	}
	for _, h := range []uint64{uint64(info.RenderPass), uint64(info.Framebuffer), uint64(info.Pipeline)} {
		if !d.alive(h) {
			d.violate("RecordDraw#%d references dead handle %d", cb, h)
		}
	}
	d.recorded[cb] = info
	return nil
}

// CreateSemaphore implements gfx.Driver
func (d *Driver) CreateSemaphore(device gfx.Device) (gfx.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.create("CreateSemaphore", "semaphore", uint64(device))
	if err == nil {
		d.semaphores[gfx.Semaphore(h)] = false
	}
	return gfx.Semaphore(h), err
}

// DestroySemaphore implements gfx.Driver
func (d *Driver) DestroySemaphore(device gfx.Device, sem gfx.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, sem)
	delete(d.semChain, sem)
	d.destroy("DestroySemaphore", "semaphore", uint64(sem))
}

// CreateFence implements gfx.Driver
func (d *Driver) CreateFence(device gfx.Device, signaled bool) (gfx.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.create("CreateFence", "fence", uint64(device))
	if err == nil {
		d.fences[gfx.Fence(h)] = &fence{signaled: signaled}
	}
	return gfx.Fence(h), err
}

// DestroyFence implements gfx.Driver
func (d *Driver) DestroyFence(device gfx.Device, f gfx.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fc, ok := d.fences[f]; ok && fc.pending {
		d.violate("DestroyFence#%d while pending", f)
	}
	delete(d.fences, f)
	d.destroy("DestroyFence", "fence", uint64(f))
}

// WaitForFence implements gfx.Driver. A pending submission guarded by
// the fence completes during the wait.
func (d *Driver) WaitForFence(device gfx.Device, f gfx.Fence, timeout uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("WaitForFence", uint64(f)); err != nil {
		return err
	}
	fc, ok := d.fences[f]
	if !ok {
		return errors.Errorf("sim: unknown fence %d", f)
	}
	if fc.pending {
		d.complete(fc)
	}
	if !fc.signaled {
		return ErrNeverSignaled
	}
	return nil
}

// ResetFence implements gfx.Driver
func (d *Driver) ResetFence(device gfx.Device, f gfx.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("ResetFence", uint64(f)); err != nil {
		return err
	}
	fc, ok := d.fences[f]
	if !ok {
		return errors.Errorf("sim: unknown fence %d", f)
	}
	if fc.pending {
		d.violate("ResetFence#%d while pending", f)
	}
	fc.signaled = false
	return nil
}

// AcquireNextImage implements gfx.Driver. Images are handed out round-robin.
func (d *Driver) AcquireNextImage(device gfx.Device, swapchain gfx.Swapchain, timeout uint64, signal gfx.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("AcquireNextImage", uint64(swapchain)); err != nil {
		return 0, err
	}
	sc, ok := d.swapchains[swapchain]
	if !ok {
		return 0, errors.Errorf("sim: unknown swapchain %d", swapchain)
	}
	if sc.outOfDate {
		return 0, gfx.ErrOutOfDate
	}
	if sc.pending > d.maxPendingAtAcquire {
		d.maxPendingAtAcquire = sc.pending
	}
	if d.semaphores[signal] {
		d.violate("AcquireNextImage: semaphore %d is already signaled", signal)
	}
	d.semaphores[signal] = true
	d.semChain[signal] = swapchain
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return idx, nil
}

// QueueSubmit implements gfx.Driver
func (d *Driver) QueueSubmit(queue gfx.Queue, info gfx.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("QueueSubmit", uint64(info.CommandBuffer)); err != nil {
		return err
	}
	if _, ok := d.recorded[info.CommandBuffer]; !ok {
		d.violate("QueueSubmit: command buffer %d was never recorded", info.CommandBuffer)
	}
	if !d.semaphores[info.Wait] {
		d.violate("QueueSubmit: waits on unsignaled semaphore %d", info.Wait)
	}
	d.semaphores[info.Wait] = false
	chain := d.semChain[info.Wait]
	d.semaphores[info.Signal] = true
	d.semChain[info.Signal] = chain
	d.inFlight[info.CommandBuffer] = true
	if info.Fence != 0 {
		fc, ok := d.fences[info.Fence]
		if !ok {
			return errors.Errorf("sim: unknown fence %d", info.Fence)
		}
		if fc.signaled || fc.pending {
			d.violate("QueueSubmit: fence %d is still in use", info.Fence)
		}
		fc.pending = true
		fc.chain = chain
		fc.buffer = info.CommandBuffer
		if sc, ok := d.swapchains[chain]; ok {
			sc.pending++
		}
	}
	return nil
}

// QueuePresent implements gfx.Driver
func (d *Driver) QueuePresent(queue gfx.Queue, info gfx.PresentInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("QueuePresent", uint64(info.Swapchain)); err != nil {
		return err
	}
	sc, ok := d.swapchains[info.Swapchain]
	if !ok {
		return errors.Errorf("sim: unknown swapchain %d", info.Swapchain)
	}
	if !d.semaphores[info.Wait] {
		d.violate("QueuePresent: waits on unsignaled semaphore %d", info.Wait)
	}
	d.semaphores[info.Wait] = false
	if int(info.ImageIndex) >= len(sc.images) {
		d.violate("QueuePresent: image index %d out of range", info.ImageIndex)
	}
	if sc.outOfDate {
		return gfx.ErrOutOfDate
	}
	d.presented++
	return nil
}
