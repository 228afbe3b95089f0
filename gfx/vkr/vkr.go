// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements gfx.Driver on top of the vulkan bindings.
// Every vulkan object is kept in a handle table and the orchestrator only
// ever sees the table keys.
package vkr

import (
	"sync"
	"unsafe"

	"github.com/devblok/paphos/gfx"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// DebugExtension is the diagnostics extension the bindings expose.
const DebugExtension = "VK_EXT_debug_report"

// table maps opaque handles to vulkan objects.
type table[T any] struct {
	mu    sync.Mutex
	next  uint64
	items map[uint64]T
}

func (t *table[T]) put(v T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.set(t.next, v)
	return t.next
}

// set must be called with t.mu held.
func (t *table[T]) set(h uint64, v T) {
	if t.items == nil {
		t.items = make(map[uint64]T)
	}
	t.items[h] = v
}

func (t *table[T]) get(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	return v, ok
}

func (t *table[T]) take(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	delete(t.items, h)
	return v, ok
}

func (t *table[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

type swapchain struct {
	handle vk.Swapchain
	images []uint64
}

type commandPool struct {
	handle  vk.CommandPool
	buffers []uint64
}

type commandBuffer struct {
	handle vk.CommandBuffer
	pool   uint64
}

type messenger struct {
	handle  vk.DebugReportCallback
	handler gfx.MessageHandler
}

// Driver is the vulkan gfx.Driver.
type Driver struct {
	physMu   sync.Mutex
	physical []vk.PhysicalDevice

	queueMu sync.Mutex
	queues  map[uint64]vk.Queue

	instances      table[vk.Instance]
	messengers     table[*messenger]
	surfaces       table[vk.Surface]
	devices        table[vk.Device]
	swapchains     table[*swapchain]
	images         table[vk.Image]
	views          table[vk.ImageView]
	shaders        table[vk.ShaderModule]
	renderPasses   table[vk.RenderPass]
	layouts        table[vk.PipelineLayout]
	pipelines      table[vk.Pipeline]
	framebuffers   table[vk.Framebuffer]
	pools          table[*commandPool]
	commandBuffers table[commandBuffer]
	semaphores     table[vk.Semaphore]
	fences         table[vk.Fence]
}

// New loads the vulkan entry points. A nil procAddr uses the system
// loader; windowing libraries such as SDL hand out their own.
func New(procAddr unsafe.Pointer) (*Driver, error) {
	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.New("vk.SetDefaultGetInstanceProcAddr(): " + err.Error())
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}
	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}
	return &Driver{queues: make(map[uint64]vk.Queue)}, nil
}

// Live is the number of objects the driver still tracks.
func (d *Driver) Live() int {
	return d.instances.len() + d.messengers.len() + d.surfaces.len() +
		d.devices.len() + d.swapchains.len() + d.views.len() +
		d.shaders.len() + d.renderPasses.len() + d.layouts.len() +
		d.pipelines.len() + d.framebuffers.len() + d.pools.len() +
		d.semaphores.len() + d.fences.len()
}

// call wraps a failed vulkan result as "vk.Name(): reason".
func call(name string, res vk.Result) error {
	if err := vk.Error(res); err != nil {
		return errors.New(name + "(): " + err.Error())
	}
	return nil
}

func unknown(kind string, h uint64) error {
	return errors.Errorf("unknown %s handle %d", kind, h)
}

func (d *Driver) device(h gfx.Device) (vk.Device, error) {
	dev, ok := d.devices.get(uint64(h))
	if !ok {
		return nil, unknown("device", uint64(h))
	}
	return dev, nil
}

func (d *Driver) instance(h gfx.Instance) (vk.Instance, error) {
	inst, ok := d.instances.get(uint64(h))
	if !ok {
		return nil, unknown("instance", uint64(h))
	}
	return inst, nil
}

func (d *Driver) physicalDevice(h gfx.PhysicalDevice) (vk.PhysicalDevice, error) {
	d.physMu.Lock()
	defer d.physMu.Unlock()
	if h == 0 || int(h) > len(d.physical) {
		return nil, unknown("physical device", uint64(h))
	}
	return d.physical[h-1], nil
}

var _ gfx.Driver = (*Driver)(nil)
