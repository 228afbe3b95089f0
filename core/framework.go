// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/paphos/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultApplicationInfo describes this application to the API.
var DefaultApplicationInfo = gfx.ApplicationInfo{
	Name:         "Paphos",
	EngineName:   "Paphos",
	APIMajor:     1,
	APIMinor:     2,
	VersionMajor: 1,
}

// Framework owns the API instance and the diagnostics channel.
// It is created first and released last.
type Framework struct {
	driver gfx.Driver
	log    log.FieldLogger

	Instance gfx.Instance
	// Messenger is the null handle when diagnostics are disabled or
	// could not be registered.
	Messenger gfx.Messenger

	InstanceExtensions []string
	DeviceExtensions   []string
	Layers             []string
}

// CreateFramework creates the API instance with the extensions required by
// the windowing system, plus the debug extension and validation layer when
// cfg.DebugMode is set.
func CreateFramework(driver gfx.Driver, required []string, cfg InstanceConfiguration, rcfg RendererConfiguration, logger log.FieldLogger) (*Framework, error) {
	logger = logger.WithField("component", "framework")

	extensions := appendUnique(append([]string(nil), required...), cfg.Extensions...)
	layers := append([]string(nil), cfg.Layers...)
	if cfg.DebugMode {
		debugExt := cfg.DebugExtension
		if debugExt == "" {
			debugExt = DebugUtilsExtension
		}
		extensions = appendUnique(extensions, debugExt)
		layers = appendUnique(layers, ValidationLayer)
	}

	available, err := driver.InstanceExtensions()
	if err != nil {
		return nil, &CreationError{Stage: StageInstance, Err: errors.Wrap(err, "vk.EnumerateInstanceExtensionProperties()")}
	}
	if missing := missingNames(extensions, available); len(missing) > 0 {
		return nil, &ExtensionUnavailableError{Kind: "instance", Missing: missing}
	}

	instance, err := driver.CreateInstance(gfx.InstanceInfo{
		Application: DefaultApplicationInfo,
		Extensions:  extensions,
		Layers:      layers,
	})
	if err != nil {
		return nil, &CreationError{Stage: StageInstance, Err: errors.Wrap(err, "vk.CreateInstance()")}
	}
	logger.WithField("extensions", extensions).Debug("instance created")

	fw := &Framework{
		driver:             driver,
		log:                logger,
		Instance:           instance,
		InstanceExtensions: extensions,
		DeviceExtensions:   append([]string(nil), rcfg.DeviceExtensions...),
		Layers:             layers,
	}

	if cfg.DebugMode {
		messenger, err := driver.CreateMessenger(instance, Diagnostics(logger))
		if err != nil {
			logger.WithError(err).Debug("diagnostics channel unavailable")
		} else {
			fw.Messenger = messenger
		}
	}
	return fw, nil
}

// Diagnostics returns a handler reporting error messages as errors and
// warnings as informational. Anything less severe is dropped.
func Diagnostics(logger log.FieldLogger) gfx.MessageHandler {
	return func(severity gfx.Severity, message string) {
		switch {
		case severity >= gfx.SeverityError:
			logger.Error(message)
		case severity >= gfx.SeverityWarning:
			logger.Info(message)
		}
	}
}

// Driver returns the driver the framework was created with.
func (f *Framework) Driver() gfx.Driver {
	return f.driver
}

// Inner returns the underlying API instance.
func (f *Framework) Inner() interface{} {
	return f.driver.Inner(f.Instance)
}

// Release destroys the diagnostics channel and then the instance. Every
// device created from the framework must be released before.
func (f *Framework) Release() {
	if f.Messenger != 0 {
		f.driver.DestroyMessenger(f.Instance, f.Messenger)
		f.Messenger = 0
	}
	if f.Instance != 0 {
		f.driver.DestroyInstance(f.Instance)
		f.Instance = 0
	}
	f.log.Debug("framework released")
}

func appendUnique(list []string, names ...string) []string {
	for _, n := range names {
		if !contains(list, n) {
			list = append(list, n)
		}
	}
	return list
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

// missingNames returns every name in required that is not in available,
// in the order of required.
func missingNames(required, available []string) []string {
	var missing []string
	for _, r := range required {
		if !contains(available, r) {
			missing = append(missing, r)
		}
	}
	return missing
}
