// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"sync"

	"github.com/devblok/paphos/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Device is the selected physical device, its logical device and queues.
type Device struct {
	driver gfx.Driver
	log    log.FieldLogger

	Physical   gfx.PhysicalDevice
	Properties gfx.PhysicalDeviceProperties

	GraphicsFamily uint32
	PresentFamily  uint32
	// HasPresent is false when the device was selected without a surface.
	HasPresent bool

	Handle        gfx.Device
	GraphicsQueue gfx.Queue
	PresentQueue  gfx.Queue
	Extensions    []string

	// queues are shared by every window
	queueMu sync.Mutex
}

type candidate struct {
	graphics   uint32
	present    uint32
	hasPresent bool
}

// SelectDevice picks the first physical device, in enumeration order,
// that is a discrete GPU with geometry shaders, a graphics queue family
// and every configured device extension. With a surface it must also
// present to it, support the swapchain extension and report at least one
// surface format and present mode. The required extensions are enabled on
// the logical device.
// This is a first-match policy: on multi-GPU systems the order reported
// by the driver decides. Pass the null surface to select without one.
func SelectDevice(fw *Framework, surface gfx.Surface, logger log.FieldLogger) (*Device, error) {
	logger = logger.WithField("component", "device")
	driver := fw.driver

	devices, err := driver.EnumeratePhysicalDevices(fw.Instance)
	if err != nil {
		return nil, errors.Wrap(err, "vk.EnumeratePhysicalDevices()")
	}
	if len(devices) == 0 {
		return nil, &NoCapableDeviceError{}
	}

	required := append([]string(nil), fw.DeviceExtensions...)
	if surface != 0 {
		required = appendUnique(required, SwapchainExtension)
	}

	var rejections []Rejection
	for _, pd := range devices {
		props := driver.Properties(pd)
		c, rejection, err := inspect(driver, pd, props, surface, required)
		if err != nil {
			return nil, err
		}
		if rejection.Reason != "" {
			rejection.Device = props.Name
			logger.WithFields(log.Fields{"device": props.Name, "reason": rejection.Reason}).Debug("device rejected")
			rejections = append(rejections, rejection)
			continue
		}

		dev, err := createDevice(driver, pd, props, c, required)
		if err != nil {
			return nil, err
		}
		dev.log = logger
		logger.WithFields(log.Fields{
			"device":   props.Name,
			"graphics": c.graphics,
			"present":  c.present,
		}).Info("device selected")
		return dev, nil
	}
	return nil, &NoCapableDeviceError{Rejections: rejections}
}

func reject(reason string) Rejection {
	return Rejection{Reason: reason}
}

// inspect returns why a device fails selection, or a Rejection with an
// empty reason for one that passes. Errors are reserved for driver
// failures.
func inspect(driver gfx.Driver, pd gfx.PhysicalDevice, props gfx.PhysicalDeviceProperties, surface gfx.Surface, required []string) (candidate, Rejection, error) {
	var c candidate
	if props.Type != gfx.DeviceTypeDiscreteGPU {
		return c, reject("not a discrete GPU (" + props.Type.String() + ")"), nil
	}
	if !props.GeometryShader {
		return c, reject("geometry shaders unsupported"), nil
	}

	families := driver.QueueFamilies(pd)
	graphicsFound := false
	for i, f := range families {
		if f.Flags&gfx.QueueGraphics != 0 {
			c.graphics = uint32(i)
			graphicsFound = true
			break
		}
	}
	if !graphicsFound {
		return c, reject("no graphics queue family"), nil
	}

	if surface != 0 {
		for i := range families {
			supported, err := driver.SurfaceSupport(pd, uint32(i), surface)
			if err != nil {
				return c, Rejection{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceSupport()")
			}
			if supported {
				c.present = uint32(i)
				c.hasPresent = true
				break
			}
		}
		if !c.hasPresent {
			return c, reject("no queue family presents to the surface"), nil
		}
	}

	available, err := driver.DeviceExtensions(pd)
	if err != nil {
		return c, Rejection{}, errors.Wrap(err, "vk.EnumerateDeviceExtensionProperties()")
	}
	if missing := missingNames(required, available); len(missing) > 0 {
		unavailable := &ExtensionUnavailableError{Kind: "device", Missing: missing}
		return c, Rejection{Reason: unavailable.Error(), Err: unavailable}, nil
	}

	if surface == 0 {
		return c, Rejection{}, nil
	}
	formats, err := driver.SurfaceFormats(pd, surface)
	if err != nil {
		return c, Rejection{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}
	if len(formats) == 0 {
		return c, reject("no surface formats"), nil
	}
	modes, err := driver.PresentModes(pd, surface)
	if err != nil {
		return c, Rejection{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")
	}
	if len(modes) == 0 {
		return c, reject("no present modes"), nil
	}
	return c, Rejection{}, nil
}

// QueueInfos builds one queue request per distinct family, priority 1.0.
func QueueInfos(families ...uint32) []gfx.QueueInfo {
	var infos []gfx.QueueInfo
	seen := map[uint32]bool{}
	for _, f := range families {
		if seen[f] {
			continue
		}
		seen[f] = true
		infos = append(infos, gfx.QueueInfo{Family: f, Priorities: []float32{1.0}})
	}
	return infos
}

func createDevice(driver gfx.Driver, pd gfx.PhysicalDevice, props gfx.PhysicalDeviceProperties, c candidate, extensions []string) (*Device, error) {
	families := []uint32{c.graphics}
	if c.hasPresent {
		families = append(families, c.present)
	}
	handle, err := driver.CreateDevice(pd, gfx.DeviceInfo{
		Queues:     QueueInfos(families...),
		Extensions: extensions,
	})
	if err != nil {
		return nil, &CreationError{Stage: StageDevice, Err: errors.Wrap(err, "vk.CreateDevice()")}
	}

	dev := &Device{
		driver:         driver,
		Physical:       pd,
		Properties:     props,
		GraphicsFamily: c.graphics,
		PresentFamily:  c.present,
		HasPresent:     c.hasPresent,
		Handle:         handle,
		GraphicsQueue:  driver.GetQueue(handle, c.graphics, 0),
		Extensions:     extensions,
	}
	dev.PresentQueue = dev.GraphicsQueue
	if c.hasPresent && c.present != c.graphics {
		dev.PresentQueue = driver.GetQueue(handle, c.present, 0)
	}
	return dev, nil
}

// Driver returns the driver the device was created with.
func (d *Device) Driver() gfx.Driver {
	return d.driver
}

// SharedFamilies returns the queue families swapchain images are shared
// between, or nil when graphics and presentation use the same family.
func (d *Device) SharedFamilies() []uint32 {
	if !d.HasPresent || d.GraphicsFamily == d.PresentFamily {
		return nil
	}
	return []uint32{d.GraphicsFamily, d.PresentFamily}
}

// CheckSurface verifies that the present family of the device can present
// to the surface. A device selected without a surface presents to none.
func (d *Device) CheckSurface(surface gfx.Surface) error {
	unsupported := &PresentUnsupportedError{Device: d.Properties.Name, Family: d.PresentFamily}
	if !d.HasPresent {
		return unsupported
	}
	ok, err := d.driver.SurfaceSupport(d.Physical, d.PresentFamily, surface)
	if err != nil {
		return errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceSupport()")
	}
	if !ok {
		return unsupported
	}
	return nil
}

// Submit submits work to the graphics queue.
func (d *Device) Submit(info gfx.SubmitInfo) error {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return d.driver.QueueSubmit(d.GraphicsQueue, info)
}

// Present queues an image for presentation.
func (d *Device) Present(info gfx.PresentInfo) error {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return d.driver.QueuePresent(d.PresentQueue, info)
}

// WaitIdle blocks until all work submitted to the device has completed.
func (d *Device) WaitIdle() error {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	if err := d.driver.DeviceWaitIdle(d.Handle); err != nil {
		return &FrameError{Step: StepDeviceIdle, Err: errors.Wrap(err, "vk.DeviceWaitIdle()")}
	}
	return nil
}

// Release destroys the logical device. Every object created from it must
// be released before.
func (d *Device) Release() {
	if d.Handle == 0 {
		return
	}
	d.driver.DestroyDevice(d.Handle)
	d.Handle = 0
	if d.log != nil {
		d.log.Debug("device released")
	}
}
