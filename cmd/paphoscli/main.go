// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/devblok/paphos/core"
	"github.com/devblok/paphos/gfx/vkr"
	log "github.com/sirupsen/logrus"
)

var (
	debug  = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	indent = flag.Bool("indent", false, "Indent the JSON output")
)

// Prints every physical device the vulkan loader can see as JSON.
func main() {
	flag.Parse()
	logger := log.New()
	logger.Out = os.Stderr

	driver, err := vkr.New(nil)
	if err != nil {
		logger.WithError(err).Fatal("vulkan")
	}

	cfg := core.DefaultConfiguration()
	cfg.Instance.DebugMode = *debug
	cfg.Instance.DebugExtension = vkr.DebugExtension
	fw, err := core.CreateFramework(driver, nil, cfg.Instance, cfg.Renderer, logger)
	if err != nil {
		logger.WithError(err).Fatal("instance")
	}
	defer fw.Release()

	info, err := driver.PhysicalDevicesInfo(fw.Instance)
	if err != nil {
		logger.WithError(err).Fatal("physical devices")
	}

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(info); err != nil {
		logger.WithError(err).Fatal("encode")
	}
}
