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

// InstanceExtensions implements gfx.Driver
func (d *Driver) InstanceExtensions() ([]string, error) {
	var count uint32
	if err := call("vk.EnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := call("vk.EnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range props[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// CreateInstance implements gfx.Driver
func (d *Driver) CreateInstance(info gfx.InstanceInfo) (gfx.Instance, error) {
	app := info.Application
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(int(app.APIMajor), int(app.APIMinor), 0),
		ApplicationVersion: vk.MakeVersion(int(app.VersionMajor), int(app.VersionMinor), int(app.VersionPatch)),
		PApplicationName:   safeString(app.Name),
		PEngineName:        safeString(app.EngineName),
	}
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     safeStrings(info.Layers),
	}

	var instance vk.Instance
	if err := call("vk.CreateInstance", vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return 0, err
	}
	vk.InitInstance(instance)
	return gfx.Instance(d.instances.put(instance)), nil
}

// DestroyInstance implements gfx.Driver
func (d *Driver) DestroyInstance(h gfx.Instance) {
	if instance, ok := d.instances.take(uint64(h)); ok {
		vk.DestroyInstance(instance, nil)
	}
	d.physMu.Lock()
	d.physical = nil
	d.physMu.Unlock()
}

// Inner returns the vk.Instance behind the handle, or nil.
func (d *Driver) Inner(h gfx.Instance) interface{} {
	instance, ok := d.instances.get(uint64(h))
	if !ok {
		return nil
	}
	return instance
}

// CreateMessenger installs a debug report callback forwarding every
// message category to handler.
func (d *Driver) CreateMessenger(h gfx.Instance, handler gfx.MessageHandler) (gfx.Messenger, error) {
	instance, err := d.instance(h)
	if err != nil {
		return 0, err
	}
	m := &messenger{handler: handler}
	createInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit | vk.DebugReportDebugBit),
		PfnCallback: func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vk.Bool32 {
			m.handler(toSeverity(flags), layerPrefix+": "+message)
			return vk.False
		},
	}
	if err := call("vk.CreateDebugReportCallback", vk.CreateDebugReportCallback(instance, &createInfo, nil, &m.handle)); err != nil {
		return 0, err
	}
	return gfx.Messenger(d.messengers.put(m)), nil
}

// DestroyMessenger implements gfx.Driver
func (d *Driver) DestroyMessenger(h gfx.Instance, msg gfx.Messenger) {
	instance, err := d.instance(h)
	if err != nil {
		return
	}
	if m, ok := d.messengers.take(uint64(msg)); ok {
		vk.DestroyDebugReportCallback(instance, m.handle, nil)
	}
}

// WrapSurface adopts a VkSurfaceKHR created by the windowing system.
func (d *Driver) WrapSurface(h gfx.Instance, raw uintptr) (gfx.Surface, error) {
	if _, err := d.instance(h); err != nil {
		return 0, err
	}
	surface := vk.SurfaceFromPointer(raw)
	if surface == vk.NullSurface {
		return 0, unknown("surface", uint64(raw))
	}
	return gfx.Surface(d.surfaces.put(surface)), nil
}

// DestroySurface implements gfx.Driver
func (d *Driver) DestroySurface(h gfx.Instance, s gfx.Surface) {
	instance, err := d.instance(h)
	if err != nil {
		return
	}
	if surface, ok := d.surfaces.take(uint64(s)); ok {
		vk.DestroySurface(instance, surface, nil)
	}
}

// EnumeratePhysicalDevices implements gfx.Driver. Handles are stable
// until the next enumeration.
func (d *Driver) EnumeratePhysicalDevices(h gfx.Instance) ([]gfx.PhysicalDevice, error) {
	instance, err := d.instance(h)
	if err != nil {
		return nil, err
	}
	devices, err := enumerateDevices(instance)
	if err != nil {
		return nil, err
	}
	d.physMu.Lock()
	d.physical = devices
	d.physMu.Unlock()

	handles := make([]gfx.PhysicalDevice, len(devices))
	for i := range devices {
		handles[i] = gfx.PhysicalDevice(i + 1)
	}
	return handles, nil
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := call("vk.EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, err
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := call("vk.EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, err
	}
	return availableDevices[:deviceCount], nil
}

// Properties implements gfx.Driver
func (d *Driver) Properties(h gfx.PhysicalDevice) gfx.PhysicalDeviceProperties {
	pd, err := d.physicalDevice(h)
	if err != nil {
		return gfx.PhysicalDeviceProperties{}
	}
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()

	return gfx.PhysicalDeviceProperties{
		Name:           vk.ToString(props.DeviceName[:]),
		DeviceID:       props.DeviceID,
		VendorID:       props.VendorID,
		Type:           toDeviceType(props.DeviceType),
		GeometryShader: features.GeometryShader == vk.True,
	}
}

// QueueFamilies implements gfx.Driver
func (d *Driver) QueueFamilies(h gfx.PhysicalDevice) []gfx.QueueFamily {
	pd, err := d.physicalDevice(h)
	if err != nil {
		return nil
	}
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)

	families := make([]gfx.QueueFamily, 0, count)
	for _, p := range props[:count] {
		p.Deref()
		families = append(families, gfx.QueueFamily{
			Flags: toQueueFlags(p.QueueFlags),
			Count: p.QueueCount,
		})
	}
	return families
}

// SurfaceSupport implements gfx.Driver
func (d *Driver) SurfaceSupport(h gfx.PhysicalDevice, family uint32, s gfx.Surface) (bool, error) {
	pd, err := d.physicalDevice(h)
	if err != nil {
		return false, err
	}
	surface, ok := d.surfaces.get(uint64(s))
	if !ok {
		return false, unknown("surface", uint64(s))
	}
	var supported vk.Bool32
	if err := call("vk.GetPhysicalDeviceSurfaceSupport", vk.GetPhysicalDeviceSurfaceSupport(pd, family, surface, &supported)); err != nil {
		return false, err
	}
	return supported.B(), nil
}

// DeviceExtensions implements gfx.Driver
func (d *Driver) DeviceExtensions(h gfx.PhysicalDevice) ([]string, error) {
	pd, err := d.physicalDevice(h)
	if err != nil {
		return nil, err
	}
	return deviceExtensions(pd)
}

func deviceExtensions(pd vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := call("vk.EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := call("vk.EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range props[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// SurfaceCapabilities implements gfx.Driver
func (d *Driver) SurfaceCapabilities(h gfx.PhysicalDevice, s gfx.Surface) (gfx.SurfaceCapabilities, error) {
	pd, err := d.physicalDevice(h)
	if err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	surface, ok := d.surfaces.get(uint64(s))
	if !ok {
		return gfx.SurfaceCapabilities{}, unknown("surface", uint64(s))
	}
	var caps vk.SurfaceCapabilities
	if err := call("vk.GetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &caps)); err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	caps.Deref()
	return gfx.SurfaceCapabilities{
		MinImageCount:       caps.MinImageCount,
		MaxImageCount:       caps.MaxImageCount,
		CurrentExtent:       toExtent(caps.CurrentExtent),
		MinImageExtent:      toExtent(caps.MinImageExtent),
		MaxImageExtent:      toExtent(caps.MaxImageExtent),
		SupportedTransforms: uint32(caps.SupportedTransforms),
		CurrentTransform:    uint32(caps.CurrentTransform),
	}, nil
}

// SurfaceFormats implements gfx.Driver
func (d *Driver) SurfaceFormats(h gfx.PhysicalDevice, s gfx.Surface) ([]gfx.SurfaceFormat, error) {
	pd, err := d.physicalDevice(h)
	if err != nil {
		return nil, err
	}
	surface, ok := d.surfaces.get(uint64(s))
	if !ok {
		return nil, unknown("surface", uint64(s))
	}
	var count uint32
	if err := call("vk.GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := call("vk.GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, formats)); err != nil {
		return nil, err
	}
	out := make([]gfx.SurfaceFormat, 0, count)
	for _, f := range formats[:count] {
		f.Deref()
		out = append(out, toSurfaceFormat(f))
	}
	return out, nil
}

// PresentModes implements gfx.Driver
func (d *Driver) PresentModes(h gfx.PhysicalDevice, s gfx.Surface) ([]gfx.PresentMode, error) {
	pd, err := d.physicalDevice(h)
	if err != nil {
		return nil, err
	}
	surface, ok := d.surfaces.get(uint64(s))
	if !ok {
		return nil, unknown("surface", uint64(s))
	}
	var count uint32
	if err := call("vk.GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, nil)); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if err := call("vk.GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, modes)); err != nil {
		return nil, err
	}
	out := make([]gfx.PresentMode, 0, count)
	for _, m := range modes[:count] {
		out = append(out, toPresentMode(m))
	}
	return out, nil
}
