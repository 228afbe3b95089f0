// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Environment variables overriding the configuration file.
const (
	EnvDebug         = "PAPHOS_DEBUG"
	EnvLogLevel      = "PAPHOS_LOG_LEVEL"
	EnvWorkers       = "PAPHOS_WORKERS"
	EnvShaderArchive = "PAPHOS_SHADER_ARCHIVE"
	EnvFps           = "PAPHOS_FPS"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time      TimeConfiguration
	Instance  InstanceConfiguration
	Renderer  RendererConfiguration
	Window    WindowConfiguration
	Scheduler SchedulerConfiguration
	Log       LogConfiguration
	Shaders   ShaderConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// ReportInterval is how often frame statistics are logged, in
	// milliseconds. Zero disables reporting.
	ReportInterval int
}

// InstanceConfiguration is used to create the API instance.
type InstanceConfiguration struct {
	DebugMode bool

	// DebugExtension is enabled on the instance when DebugMode is set.
	DebugExtension string

	// Layers are enabled in addition to the validation layer.
	Layers     []string
	Extensions []string
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	DeviceExtensions []string
	ClearColor       mgl32.Vec4
	VertexCount      uint32
}

// WindowConfiguration describes the initial window.
type WindowConfiguration struct {
	Title     string
	Width     uint32
	Height    uint32
	Resizable bool
}

// SchedulerConfiguration controls the tick loop.
type SchedulerConfiguration struct {
	// Workers above one enables running independent stages concurrently.
	Workers int
}

// LogConfiguration controls logging output.
type LogConfiguration struct {
	Level string
	// Format is either "text" or "json".
	Format string
}

// ShaderConfiguration tells where compiled shaders are loaded from.
// Archive, when set, takes precedence over Directory.
type ShaderConfiguration struct {
	Directory string
	Archive   string
}

// Well known names
const (
	ValidationLayer     = "VK_LAYER_KHRONOS_validation"
	SwapchainExtension  = "VK_KHR_swapchain"
	DebugUtilsExtension = "VK_EXT_debug_utils"
)

// DefaultConfiguration returns the configuration used when nothing is set.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
			ReportInterval:  1000,
		},
		Instance: InstanceConfiguration{
			DebugExtension: DebugUtilsExtension,
		},
		Renderer: RendererConfiguration{
			DeviceExtensions: []string{SwapchainExtension},
			ClearColor:       mgl32.Vec4{0.005, 0.005, 0.005, 1},
			VertexCount:      3,
		},
		Window: WindowConfiguration{
			Title:     "Paphos",
			Width:     800,
			Height:    600,
			Resizable: true,
		},
		Scheduler: SchedulerConfiguration{
			Workers: 1,
		},
		Log: LogConfiguration{
			Level:  "info",
			Format: "text",
		},
		Shaders: ShaderConfiguration{
			Directory: "./shaders",
		},
	}
}

// LoadConfiguration decodes the TOML file at path over the defaults and
// then applies environment overrides. An empty path skips the file. A
// .env file in the working directory is loaded when present.
func LoadConfiguration(path string) (Configuration, error) {
	cfg := DefaultConfiguration()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Configuration{}, errors.Wrap(err, "toml.DecodeFile()")
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return Configuration{}, errors.Wrap(err, "godotenv.Load()")
	}
	envy.Reload()

	if err := cfg.applyEnvironment(); err != nil {
		return Configuration{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Configuration) applyEnvironment() error {
	if v := envy.Get(EnvDebug, ""); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvDebug)
		}
		c.Instance.DebugMode = debug
	}
	if v := envy.Get(EnvLogLevel, ""); v != "" {
		c.Log.Level = v
	}
	if v := envy.Get(EnvWorkers, ""); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvWorkers)
		}
		c.Scheduler.Workers = workers
	}
	if v := envy.Get(EnvShaderArchive, ""); v != "" {
		c.Shaders.Archive = v
	}
	if v := envy.Get(EnvFps, ""); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvFps)
		}
		c.Time.FramesPerSecond = fps
	}
	return nil
}

// Validate checks the configuration for values that can not work.
func (c Configuration) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Errorf("window size %dx%d is empty", c.Window.Width, c.Window.Height)
	}
	if c.Scheduler.Workers < 0 {
		return errors.Errorf("negative scheduler worker count %d", c.Scheduler.Workers)
	}
	if c.Time.FramesPerSecond < 0 {
		return errors.Errorf("negative frames per second %d", c.Time.FramesPerSecond)
	}
	if strings.TrimSpace(c.Shaders.Directory) == "" && strings.TrimSpace(c.Shaders.Archive) == "" {
		return errors.New("no shader directory or archive configured")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log level")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// NewLogger creates a logger as configured.
func (c LogConfiguration) NewLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	logger := log.New()
	logger.SetLevel(level)
	if c.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
