// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	"github.com/devblok/paphos/gfx"
	"github.com/devblok/paphos/gfx/sim"
	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var surfaceExtensions = []string{"VK_KHR_surface", "VK_KHR_xlib_surface"}

func TestCreateFramework(t *testing.T) {
	c := qt.New(t)
	driver := sim.New(sim.DefaultConfig())
	logger, _ := test.NewNullLogger()
	cfg := DefaultConfiguration()

	fw, err := CreateFramework(driver, surfaceExtensions, cfg.Instance, cfg.Renderer, logger)
	c.Assert(err, qt.IsNil)
	c.Assert(fw.Instance, qt.Not(qt.Equals), gfx.Instance(0))
	c.Assert(fw.Messenger, qt.Equals, gfx.Messenger(0))
	c.Assert(fw.InstanceExtensions, qt.DeepEquals, surfaceExtensions)
	c.Assert(fw.DeviceExtensions, qt.DeepEquals, []string{SwapchainExtension})
	c.Assert(fw.Layers, qt.HasLen, 0)
	c.Assert(fw.Inner(), qt.Equals, uint64(fw.Instance))

	fw.Release()
	c.Assert(driver.Live(), qt.HasLen, 0)
	c.Assert(driver.Violations(), qt.HasLen, 0)
}

func TestCreateFrameworkDebug(t *testing.T) {
	c := qt.New(t)
	driver := sim.New(sim.DefaultConfig())
	logger, hook := test.NewNullLogger()
	cfg := DefaultConfiguration()
	cfg.Instance.DebugMode = true
	cfg.Instance.DebugExtension = "VK_EXT_debug_report"

	fw, err := CreateFramework(driver, surfaceExtensions, cfg.Instance, cfg.Renderer, logger)
	c.Assert(err, qt.IsNil)
	defer fw.Release()
	c.Assert(fw.Messenger, qt.Not(qt.Equals), gfx.Messenger(0))
	c.Assert(fw.Layers, qt.DeepEquals, []string{ValidationLayer})
	c.Assert(fw.InstanceExtensions, qt.DeepEquals, append(surfaceExtensions, "VK_EXT_debug_report"))

	hook.Reset()
	driver.Emit(gfx.SeverityError, "bad call")
	driver.Emit(gfx.SeverityWarning, "suspicious call")
	driver.Emit(gfx.SeverityInfo, "loader chatter")
	driver.Emit(gfx.SeverityVerbose, "more chatter")

	entries := hook.AllEntries()
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].Level, qt.Equals, log.ErrorLevel)
	c.Assert(entries[0].Message, qt.Equals, "bad call")
	c.Assert(entries[1].Level, qt.Equals, log.InfoLevel)
	c.Assert(entries[1].Message, qt.Equals, "suspicious call")
}

func TestCreateFrameworkMessengerUnavailable(t *testing.T) {
	c := qt.New(t)
	driver := sim.New(sim.DefaultConfig())
	driver.FailOn("CreateMessenger")
	logger, _ := test.NewNullLogger()
	cfg := DefaultConfiguration()
	cfg.Instance.DebugMode = true

	fw, err := CreateFramework(driver, surfaceExtensions, cfg.Instance, cfg.Renderer, logger)
	c.Assert(err, qt.IsNil)
	c.Assert(fw.Messenger, qt.Equals, gfx.Messenger(0))
	fw.Release()
	c.Assert(driver.Live(), qt.HasLen, 0)
}

func TestCreateFrameworkMissingExtension(t *testing.T) {
	c := qt.New(t)
	driver := sim.New(sim.DefaultConfig())
	logger, _ := test.NewNullLogger()
	cfg := DefaultConfiguration()

	_, err := CreateFramework(driver, []string{"VK_KHR_surface", "VK_KHR_wayland_surface"}, cfg.Instance, cfg.Renderer, logger)
	var extErr *ExtensionUnavailableError
	c.Assert(errors.As(err, &extErr), qt.IsTrue)
	c.Assert(extErr.Kind, qt.Equals, "instance")
	c.Assert(extErr.Missing, qt.DeepEquals, []string{"VK_KHR_wayland_surface"})
	c.Assert(countOps(driver, "CreateInstance"), qt.Equals, 0)
}

func TestCreateFrameworkInstanceFailure(t *testing.T) {
	c := qt.New(t)
	driver := sim.New(sim.DefaultConfig())
	driver.FailOn("CreateInstance")
	logger, _ := test.NewNullLogger()
	cfg := DefaultConfiguration()

	_, err := CreateFramework(driver, surfaceExtensions, cfg.Instance, cfg.Renderer, logger)
	var creation *CreationError
	c.Assert(errors.As(err, &creation), qt.IsTrue)
	c.Assert(creation.Stage, qt.Equals, StageInstance)
	c.Assert(errors.Is(err, sim.ErrInjected), qt.IsTrue)
	c.Assert(driver.Live(), qt.HasLen, 0)
}
