// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	log "github.com/sirupsen/logrus"
)

func TestDefaultConfiguration(t *testing.T) {
	c := qt.New(t)
	cfg := DefaultConfiguration()
	c.Assert(cfg.Validate(), qt.IsNil)
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 60)
	c.Assert(cfg.Renderer.DeviceExtensions, qt.DeepEquals, []string{SwapchainExtension})
	c.Assert(cfg.Renderer.VertexCount, qt.Equals, uint32(3))
	c.Assert(cfg.Scheduler.Workers, qt.Equals, 1)
	c.Assert(cfg.Instance.DebugMode, qt.IsFalse)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*Configuration)
		err    string
	}{
		{"empty window", func(c *Configuration) { c.Window.Width = 0 }, `window size 0x600 is empty`},
		{"negative workers", func(c *Configuration) { c.Scheduler.Workers = -1 }, `negative scheduler worker count -1`},
		{"negative fps", func(c *Configuration) { c.Time.FramesPerSecond = -5 }, `negative frames per second -5`},
		{"no shaders", func(c *Configuration) { c.Shaders.Directory = " " }, `no shader directory or archive configured`},
		{"bad level", func(c *Configuration) { c.Log.Level = "loud" }, `log level: .*`},
		{"bad format", func(c *Configuration) { c.Log.Format = "xml" }, `unknown log format "xml"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := qt.New(t)
			cfg := DefaultConfiguration()
			tc.modify(&cfg)
			c.Assert(cfg.Validate(), qt.ErrorMatches, tc.err)
		})
	}
}

const testConfig = `
[Time]
FramesPerSecond = 30

[Window]
Title = "Test"
Width = 1024
Height = 768

[Log]
Level = "debug"
Format = "json"

[Shaders]
Archive = "shaders.kar"
`

func TestLoadConfiguration(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "paphos.toml")
	c.Assert(ioutil.WriteFile(path, []byte(testConfig), 0644), qt.IsNil)

	cfg, err := LoadConfiguration(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 30)
	c.Assert(cfg.Time.ReportInterval, qt.Equals, 1000)
	c.Assert(cfg.Window.Title, qt.Equals, "Test")
	c.Assert(cfg.Window.Width, qt.Equals, uint32(1024))
	c.Assert(cfg.Window.Height, qt.Equals, uint32(768))
	c.Assert(cfg.Shaders.Archive, qt.Equals, "shaders.kar")
	c.Assert(cfg.Shaders.Directory, qt.Equals, "./shaders")
	c.Assert(cfg.Log.Level, qt.Equals, "debug")
}

func TestLoadConfigurationMissingFile(t *testing.T) {
	c := qt.New(t)
	_, err := LoadConfiguration(filepath.Join(c.TempDir(), "missing.toml"))
	c.Assert(err, qt.ErrorMatches, `toml.DecodeFile\(\): .*`)
}

func TestEnvironmentOverrides(t *testing.T) {
	c := qt.New(t)
	c.Setenv(EnvDebug, "true")
	c.Setenv(EnvWorkers, "4")
	c.Setenv(EnvFps, "144")
	c.Setenv(EnvLogLevel, "warning")

	cfg, err := LoadConfiguration("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Instance.DebugMode, qt.IsTrue)
	c.Assert(cfg.Scheduler.Workers, qt.Equals, 4)
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 144)
	c.Assert(cfg.Log.Level, qt.Equals, "warning")
}

func TestEnvironmentInvalid(t *testing.T) {
	c := qt.New(t)
	c.Setenv(EnvWorkers, "many")
	_, err := LoadConfiguration("")
	c.Assert(err, qt.ErrorMatches, `PAPHOS_WORKERS: .*invalid syntax`)
}

func TestNewLogger(t *testing.T) {
	c := qt.New(t)
	logger, err := LogConfiguration{Level: "debug", Format: "json"}.NewLogger()
	c.Assert(err, qt.IsNil)
	c.Assert(logger.GetLevel(), qt.Equals, log.DebugLevel)
	_, ok := logger.Formatter.(*log.JSONFormatter)
	c.Assert(ok, qt.IsTrue)

	_, err = LogConfiguration{Level: "nope", Format: "text"}.NewLogger()
	c.Assert(err, qt.Not(qt.IsNil))
}
