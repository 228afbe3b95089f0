// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sim implements a deterministic, in-memory graphics driver and
// windowing system. It keeps an ordered log of every call, tracks live
// handles with their parents and models fence, semaphore and queue
// behaviour closely enough to catch ordering and synchronization mistakes.
package sim

import (
	"fmt"
	"sort"
	"sync"

	"github.com/devblok/paphos/gfx"
	"github.com/pkg/errors"
)

// ErrInjected is returned by operations configured to fail with FailOn.
var ErrInjected = errors.New("sim: injected failure")

// ErrNeverSignaled is returned when waiting on a fence that has not been
// submitted and is not signaled; on a real device that wait never returns.
var ErrNeverSignaled = errors.New("sim: fence will never be signaled")

// DeviceSpec describes one simulated physical device.
type DeviceSpec struct {
	Name           string
	Type           gfx.DeviceType
	GeometryShader bool
	QueueFamilies  []gfx.QueueFamily
	// PresentFamilies lists queue families able to present to any surface.
	PresentFamilies []uint32
	Extensions      []string
	Capabilities    gfx.SurfaceCapabilities
	Formats         []gfx.SurfaceFormat
	PresentModes    []gfx.PresentMode
}

// Config configures a simulated driver.
type Config struct {
	InstanceExtensions []string
	Devices            []DeviceSpec
}

// DiscreteGPU returns a capable discrete device with a single graphics
// and present queue family and swapchain support.
func DiscreteGPU(name string) DeviceSpec {
	return DeviceSpec{
		Name:            name,
		Type:            gfx.DeviceTypeDiscreteGPU,
		GeometryShader:  true,
		QueueFamilies:   []gfx.QueueFamily{{Flags: gfx.QueueGraphics | gfx.QueueTransfer, Count: 1}},
		PresentFamilies: []uint32{0},
		Extensions:      []string{"VK_KHR_swapchain"},
		Capabilities: gfx.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  4,
			CurrentExtent:  gfx.Extent2D{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
			MinImageExtent: gfx.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: gfx.Extent2D{Width: 4096, Height: 4096},
		},
		Formats:      []gfx.SurfaceFormat{{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear}},
		PresentModes: []gfx.PresentMode{gfx.PresentModeFifo},
	}
}

// DefaultConfig is a single discrete GPU with the usual surface extensions.
func DefaultConfig() Config {
	return Config{
		InstanceExtensions: []string{"VK_KHR_surface", "VK_KHR_xlib_surface", "VK_EXT_debug_report", "VK_EXT_debug_utils"},
		Devices:            []DeviceSpec{DiscreteGPU("Simulated GPU")},
	}
}

// Op is one recorded driver call.
type Op struct {
	Name   string
	Handle uint64
}

func (o Op) String() string {
	return fmt.Sprintf("%s#%d", o.Name, o.Handle)
}

// Object is a live handle in creation order.
type Object struct {
	Kind   string
	Handle uint64
	Parent uint64
}

type fence struct {
	signaled bool
	pending  bool
	chain    gfx.Swapchain
	buffer   gfx.CommandBuffer
}

type swapchain struct {
	surface   gfx.Surface
	images    []gfx.Image
	next      uint32
	pending   int
	outOfDate bool
}

// Driver is a simulated gfx.Driver. It is safe for concurrent use.
type Driver struct {
	mu sync.Mutex

	cfg  Config
	next uint64

	ops        []Op
	live       []Object
	violations []string
	failures   map[string]error

	physical   map[gfx.PhysicalDevice]int
	devices    map[gfx.Device]int
	handlers   map[gfx.Messenger]gfx.MessageHandler
	fences     map[gfx.Fence]*fence
	semaphores map[gfx.Semaphore]bool
	semChain   map[gfx.Semaphore]gfx.Swapchain
	swapchains map[gfx.Swapchain]*swapchain
	inFlight   map[gfx.CommandBuffer]bool
	recorded   map[gfx.CommandBuffer]gfx.DrawInfo

	denyPresent   bool
	unpresentable map[gfx.Surface]bool

	maxPendingAtAcquire int
	presented           int
}

// New creates a simulated driver.
func New(cfg Config) *Driver {
	return &Driver{
		cfg:        cfg,
		failures:   map[string]error{},
		physical:   map[gfx.PhysicalDevice]int{},
		devices:    map[gfx.Device]int{},
		handlers:   map[gfx.Messenger]gfx.MessageHandler{},
		fences:     map[gfx.Fence]*fence{},
		semaphores: map[gfx.Semaphore]bool{},
		semChain:   map[gfx.Semaphore]gfx.Swapchain{},
		swapchains: map[gfx.Swapchain]*swapchain{},
		inFlight:   map[gfx.CommandBuffer]bool{},
		recorded:   map[gfx.CommandBuffer]gfx.DrawInfo{},

		unpresentable: map[gfx.Surface]bool{},
	}
}

// FailOn makes every following call to the named operation fail with
// ErrInjected. An empty name clears all failures.
func (d *Driver) FailOn(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if op == "" {
		d.failures = map[string]error{}
		return
	}
	d.failures[op] = ErrInjected
}

// Emit delivers a diagnostics message to every registered messenger.
func (d *Driver) Emit(severity gfx.Severity, message string) {
	d.mu.Lock()
	handlers := make([]gfx.MessageHandler, 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}
	d.mu.Unlock()
	for _, h := range handlers {
		h(severity, message)
	}
}

// DenyPresent makes surfaces wrapped after the call unsupported by every
// queue family. DenyPresent(false) restores the default for new surfaces.
func (d *Driver) DenyPresent(deny bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.denyPresent = deny
}

// Invalidate marks every swapchain of the surface as out of date.
func (d *Driver) Invalidate(surface gfx.Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sc := range d.swapchains {
		if sc.surface == surface {
			sc.outOfDate = true
		}
	}
}

// Ops returns a copy of the operation log.
func (d *Driver) Ops() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Op(nil), d.ops...)
}

// Live returns the live handles in creation order.
func (d *Driver) Live() []Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Object(nil), d.live...)
}

// Violations returns every API usage error observed so far.
func (d *Driver) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// MaxPendingAtAcquire is the largest number of unfinished submissions a
// swapchain had when its next image was acquired.
func (d *Driver) MaxPendingAtAcquire() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxPendingAtAcquire
}

// Presented is the number of successful presentations.
func (d *Driver) Presented() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presented
}

// Recorded returns the last draw recorded into a command buffer.
func (d *Driver) Recorded(cb gfx.CommandBuffer) (gfx.DrawInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.recorded[cb]
	return info, ok
}

func (d *Driver) call(op string, handle uint64) error {
	d.ops = append(d.ops, Op{Name: op, Handle: handle})
	if err, ok := d.failures[op]; ok {
		return err
	}
	return nil
}

func (d *Driver) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Driver) create(op, kind string, parent uint64) (uint64, error) {
	if err, ok := d.failures[op]; ok {
		d.ops = append(d.ops, Op{Name: op})
		return 0, err
	}
	d.next++
	d.ops = append(d.ops, Op{Name: op, Handle: d.next})
	d.live = append(d.live, Object{Kind: kind, Handle: d.next, Parent: parent})
	return d.next, nil
}

func (d *Driver) destroy(op, kind string, handle uint64) {
	d.ops = append(d.ops, Op{Name: op, Handle: handle})
	if handle == 0 {
		d.violate("%s on a null handle", op)
		return
	}
	idx := -1
	for i, o := range d.live {
		if o.Handle == handle {
			idx = i
		}
		if o.Parent == handle {
			d.violate("%s#%d while child %s#%d is alive", op, handle, o.Kind, o.Handle)
		}
	}
	if idx < 0 {
		d.violate("%s#%d: not alive", op, handle)
		return
	}
	if d.live[idx].Kind != kind {
		d.violate("%s#%d: handle is a %s", op, handle, d.live[idx].Kind)
	}
	d.live = append(d.live[:idx], d.live[idx+1:]...)
}

func (d *Driver) alive(handle uint64) bool {
	for _, o := range d.live {
		if o.Handle == handle {
			return true
		}
	}
	return false
}

// InstanceExtensions implements gfx.Driver
func (d *Driver) InstanceExtensions() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("InstanceExtensions", 0); err != nil {
		return nil, err
	}
	return append([]string(nil), d.cfg.InstanceExtensions...), nil
}

// CreateInstance implements gfx.Driver
func (d *Driver) CreateInstance(info gfx.InstanceInfo) (gfx.Instance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.create("CreateInstance", "instance", 0)
	if err != nil {
		return 0, err
	}
	d.physical = map[gfx.PhysicalDevice]int{}
	for i := range d.cfg.Devices {
		d.next++
		d.physical[gfx.PhysicalDevice(d.next)] = i
	}
	return gfx.Instance(h), nil
}

// DestroyInstance implements gfx.Driver
func (d *Driver) DestroyInstance(instance gfx.Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy("DestroyInstance", "instance", uint64(instance))
}

// Inner implements gfx.Driver
func (d *Driver) Inner(instance gfx.Instance) interface{} {
	return uint64(instance)
}

// CreateMessenger implements gfx.Driver
func (d *Driver) CreateMessenger(instance gfx.Instance, handler gfx.MessageHandler) (gfx.Messenger, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.create("CreateMessenger", "messenger", uint64(instance))
	if err != nil {
		return 0, err
	}
	d.handlers[gfx.Messenger(h)] = handler
	return gfx.Messenger(h), nil
}

// DestroyMessenger implements gfx.Driver
func (d *Driver) DestroyMessenger(instance gfx.Instance, messenger gfx.Messenger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, messenger)
	d.destroy("DestroyMessenger", "messenger", uint64(messenger))
}

// WrapSurface implements gfx.Driver
func (d *Driver) WrapSurface(instance gfx.Instance, raw uintptr) (gfx.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if raw == 0 {
		d.ops = append(d.ops, Op{Name: "WrapSurface"})
		return 0, errors.New("sim: null native surface")
	}
	h, err := d.create("WrapSurface", "surface", uint64(instance))
	if err == nil && d.denyPresent {
		d.unpresentable[gfx.Surface(h)] = true
	}
	return gfx.Surface(h), err
}

// DestroySurface implements gfx.Driver
func (d *Driver) DestroySurface(instance gfx.Instance, surface gfx.Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy("DestroySurface", "surface", uint64(surface))
}

// EnumeratePhysicalDevices implements gfx.Driver. Devices are returned in
// the order they were configured.
func (d *Driver) EnumeratePhysicalDevices(instance gfx.Instance) ([]gfx.PhysicalDevice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("EnumeratePhysicalDevices", uint64(instance)); err != nil {
		return nil, err
	}
	devices := make([]gfx.PhysicalDevice, 0, len(d.physical))
	for pd := range d.physical {
		devices = append(devices, pd)
	}
	sort.Slice(devices, func(i, j int) bool {
		return d.physical[devices[i]] < d.physical[devices[j]]
	})
	return devices, nil
}

func (d *Driver) spec(pd gfx.PhysicalDevice) DeviceSpec {
	return d.cfg.Devices[d.physical[pd]]
}

// Properties implements gfx.Driver
func (d *Driver) Properties(pd gfx.PhysicalDevice) gfx.PhysicalDeviceProperties {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.spec(pd)
	return gfx.PhysicalDeviceProperties{
		Name:           s.Name,
		DeviceID:       uint32(d.physical[pd]),
		VendorID:       0x5157,
		Type:           s.Type,
		GeometryShader: s.GeometryShader,
	}
}

// QueueFamilies implements gfx.Driver
func (d *Driver) QueueFamilies(pd gfx.PhysicalDevice) []gfx.QueueFamily {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gfx.QueueFamily(nil), d.spec(pd).QueueFamilies...)
}

// SurfaceSupport implements gfx.Driver
func (d *Driver) SurfaceSupport(pd gfx.PhysicalDevice, family uint32, surface gfx.Surface) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SurfaceSupport", uint64(surface)); err != nil {
		return false, err
	}
	if d.unpresentable[surface] {
		return false, nil
	}
	for _, f := range d.spec(pd).PresentFamilies {
		if f == family {
			return true, nil
		}
	}
	return false, nil
}

// DeviceExtensions implements gfx.Driver
func (d *Driver) DeviceExtensions(pd gfx.PhysicalDevice) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("DeviceExtensions", uint64(pd)); err != nil {
		return nil, err
	}
	return append([]string(nil), d.spec(pd).Extensions...), nil
}

// SurfaceCapabilities implements gfx.Driver
func (d *Driver) SurfaceCapabilities(pd gfx.PhysicalDevice, surface gfx.Surface) (gfx.SurfaceCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SurfaceCapabilities", uint64(surface)); err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	return d.spec(pd).Capabilities, nil
}

// SurfaceFormats implements gfx.Driver
func (d *Driver) SurfaceFormats(pd gfx.PhysicalDevice, surface gfx.Surface) ([]gfx.SurfaceFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SurfaceFormats", uint64(surface)); err != nil {
		return nil, err
	}
	return append([]gfx.SurfaceFormat(nil), d.spec(pd).Formats...), nil
}

// PresentModes implements gfx.Driver
func (d *Driver) PresentModes(pd gfx.PhysicalDevice, surface gfx.Surface) ([]gfx.PresentMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("PresentModes", uint64(surface)); err != nil {
		return nil, err
	}
	return append([]gfx.PresentMode(nil), d.spec(pd).PresentModes...), nil
}
