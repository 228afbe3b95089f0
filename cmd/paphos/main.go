// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/devblok/paphos/core"
	"github.com/devblok/paphos/gfx"
	"github.com/devblok/paphos/gfx/sim"
	"github.com/devblok/paphos/gfx/vkr"
	"github.com/devblok/paphos/window"
	"github.com/devblok/paphos/window/sdlwin"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func init() {
	runtime.LockOSThread()
}

var (
	configPath   = flag.String("config", "", "TOML configuration file")
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	headless     = flag.Bool("headless", false, "Run on the simulated driver without a display")
	frames       = flag.Int("frames", 0, "Close after this many ticks, 0 runs until closed")
	windows      = flag.Int("windows", 1, "Number of windows to open")
)

func main() {
	flag.Parse()

	cfg, err := core.LoadConfiguration(*configPath)
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}
	if *debug {
		cfg.Instance.DebugMode = true
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.WithError(err).Fatal("logger")
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			logger.WithError(err).Fatal("cpu profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.WithError(err).Fatal("cpu profile")
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			logger.WithError(err).Fatal("trace")
		}
		if err := trace.Start(f); err != nil {
			logger.WithError(err).Fatal("trace")
		}
		defer trace.Stop()
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("paphos stopped")
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			logger.WithError(err).Fatal("memory profile")
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			logger.WithError(err).Fatal("memory profile")
		}
	}
}

func run(cfg core.Configuration, logger *log.Logger) error {
	driver, system, shaders, release, err := platform(&cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	session, err := core.NewSession(driver, system, shaders, cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	for i := 0; i < *windows; i++ {
		if _, err := session.OpenWindow(window.Config{
			Title:     cfg.Window.Title,
			Width:     cfg.Window.Width,
			Height:    cfg.Window.Height,
			Resizable: cfg.Window.Resizable,
		}); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	timeService := core.NewTime(cfg.Time)
	defer timeService.Release()

	if err := session.Run(ctx, timeService); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// platform picks the real or the simulated driver and windowing system.
// The returned release quits the windowing system and closes the shaders;
// it is safe to call after a session has already quit.
func platform(cfg *core.Configuration, logger *log.Logger) (gfx.Driver, window.System, core.ShaderSource, func(), error) {
	if *headless {
		system := sim.NewSystem()
		system.CloseAfter = *frames
		if *frames == 0 {
			logger.Warn("headless run without -frames only stops on interrupt")
		}
		// The simulated driver does not execute bytecode, a single word is enough.
		shaders := core.MapSource{
			core.VertexShaderName:   {0x03, 0x02, 0x23, 0x07},
			core.FragmentShaderName: {0x03, 0x02, 0x23, 0x07},
		}
		return sim.New(sim.DefaultConfig()), system, shaders, system.Quit, nil
	}

	shaders, closeShaders, err := shaderSource(cfg.Shaders)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	system, err := sdlwin.New(logger)
	if err != nil {
		closeShaders()
		return nil, nil, nil, nil, err
	}
	driver, err := vkr.New(system.ProcAddr())
	if err != nil {
		system.Quit()
		closeShaders()
		return nil, nil, nil, nil, err
	}
	cfg.Instance.DebugExtension = vkr.DebugExtension
	if *frames > 0 {
		logger.Info("-frames only applies to headless runs")
	}
	release := func() {
		system.Quit()
		closeShaders()
	}
	return driver, system, shaders, release, nil
}

// shaderSource opens the configured shaders, falling back to the ones
// packed into the binary when the directory does not exist.
func shaderSource(cfg core.ShaderConfiguration) (core.ShaderSource, func(), error) {
	if cfg.Archive == "" {
		if _, err := os.Stat(cfg.Directory); os.IsNotExist(err) {
			return core.BoxSource(packr.NewBox("../../shaders")), func() {}, nil
		}
	}
	src, release, err := core.OpenShaderSource(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "shaders")
	}
	return src, release, nil
}
