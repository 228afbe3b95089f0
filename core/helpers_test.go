// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strings"

	"github.com/devblok/paphos/gfx"
	"github.com/devblok/paphos/gfx/sim"
	"github.com/devblok/paphos/window"
	qt "github.com/frankban/quicktest"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// spirvWord is the SPIR-V magic number, enough for the simulated driver
// to accept a module.
var spirvWord = []byte{0x03, 0x02, 0x23, 0x07}

func testShaders() MapSource {
	return MapSource{
		VertexShaderName:   spirvWord,
		FragmentShaderName: spirvWord,
	}
}

// rig is a framework, device and surface on a simulated driver.
type rig struct {
	driver  *sim.Driver
	system  *sim.System
	logger  *log.Logger
	hook    *test.Hook
	fw      *Framework
	dev     *Device
	native  *sim.Window
	surface gfx.Surface
}

func newRig(c *qt.C, cfg sim.Config) *rig {
	r := &rig{
		driver: sim.New(cfg),
		system: sim.NewSystem(),
	}
	r.logger, r.hook = test.NewNullLogger()
	r.logger.SetLevel(log.DebugLevel)

	conf := DefaultConfiguration()
	required, err := r.system.RequiredInstanceExtensions()
	c.Assert(err, qt.IsNil)
	r.fw, err = CreateFramework(r.driver, required, conf.Instance, conf.Renderer, r.logger)
	c.Assert(err, qt.IsNil)

	native, err := r.system.NewWindow(window.Config{Title: "test", Width: 800, Height: 600})
	c.Assert(err, qt.IsNil)
	r.native = native.(*sim.Window)
	r.surface, err = CreateSurface(r.fw, r.native)
	c.Assert(err, qt.IsNil)
	return r
}

func (r *rig) selectDevice(c *qt.C) *Device {
	dev, err := SelectDevice(r.fw, r.surface, r.logger)
	c.Assert(err, qt.IsNil)
	r.dev = dev
	return dev
}

func (r *rig) newWindow(c *qt.C) *Window {
	if r.dev == nil {
		r.selectDevice(c)
	}
	w, err := NewWindow(r.fw, r.dev, r.native, r.surface, testShaders(), DefaultConfiguration().Renderer, r.logger)
	c.Assert(err, qt.IsNil)
	return w
}

// release tears down what the rig owns. Windows must be released before.
func (r *rig) release() {
	if r.dev != nil {
		r.dev.Release()
	}
	if r.surface != 0 {
		r.driver.DestroySurface(r.fw.Instance, r.surface)
	}
	r.fw.Release()
}

// liveKinds counts live driver objects by kind.
func liveKinds(d *sim.Driver) map[string]int {
	kinds := map[string]int{}
	for _, o := range d.Live() {
		kinds[o.Kind]++
	}
	return kinds
}

// opsSince returns the operation names recorded after the first n ops
// that start with prefix.
func opsSince(d *sim.Driver, n int, prefix string) []string {
	var names []string
	for _, op := range d.Ops()[n:] {
		if strings.HasPrefix(op.Name, prefix) {
			names = append(names, op.Name)
		}
	}
	return names
}

func countOps(d *sim.Driver, name string) int {
	var n int
	for _, op := range d.Ops() {
		if op.Name == name {
			n++
		}
	}
	return n
}
