// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/paphos/gfx"
	vk "github.com/devblok/vulkan"
)

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID             int           `json:"id"`
	VendorID       int           `json:"vendorId"`
	DriverVersion  int           `json:"driverVersion"`
	Name           string        `json:"name"`
	Type           string        `json:"type"`
	GeometryShader bool          `json:"geometryShader"`
	Invalid        bool          `json:"invalid,omitempty"`
	Extensions     []string      `json:"extensions"`
	Layers         []string      `json:"layers"`
	Memory         uint64        `json:"memory"`
	QueueFamilies  []QueueFamily `json:"queueFamilies"`
}

// QueueFamily is the printable form of gfx.QueueFamily.
type QueueFamily struct {
	Graphics bool   `json:"graphics"`
	Compute  bool   `json:"compute"`
	Transfer bool   `json:"transfer"`
	Count    uint32 `json:"count"`
}

// PhysicalDevicesInfo enumerates the devices of an instance created by
// this driver. A device whose extensions or layers can not be listed is
// marked invalid rather than skipped.
func (d *Driver) PhysicalDevicesInfo(h gfx.Instance) ([]PhysicalDeviceInfo, error) {
	handles, err := d.EnumeratePhysicalDevices(h)
	if err != nil {
		return nil, err
	}
	pdi := make([]PhysicalDeviceInfo, len(handles))
	for i, handle := range handles {
		pd, err := d.physicalDevice(handle)
		if err != nil {
			return nil, err
		}

		if pdi[i].Extensions, err = deviceExtensions(pd); err != nil {
			pdi[i].Invalid = true
		}

		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(pd, &memoryProperties)
		memoryProperties.Deref()
		for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
			memoryProperties.MemoryHeaps[iMem].Deref()
			pdi[i].Memory += uint64(memoryProperties.MemoryHeaps[iMem].Size)
		}

		var physicalDeviceProperties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &physicalDeviceProperties)
		physicalDeviceProperties.Deref()
		pdi[i].DriverVersion = int(physicalDeviceProperties.DriverVersion)

		props := d.Properties(handle)
		pdi[i].ID = int(props.DeviceID)
		pdi[i].VendorID = int(props.VendorID)
		pdi[i].Name = props.Name
		pdi[i].Type = props.Type.String()
		pdi[i].GeometryShader = props.GeometryShader

		for _, f := range d.QueueFamilies(handle) {
			pdi[i].QueueFamilies = append(pdi[i].QueueFamilies, QueueFamily{
				Graphics: f.Flags&gfx.QueueGraphics != 0,
				Compute:  f.Flags&gfx.QueueCompute != 0,
				Transfer: f.Flags&gfx.QueueTransfer != 0,
				Count:    f.Count,
			})
		}
	}
	return pdi, nil
}
