// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package window defines what the renderer needs from a windowing system.
package window

// Config describes a window to open.
type Config struct {
	Title     string
	Width     uint32
	Height    uint32
	Resizable bool
}

// System is a platform windowing system.
type System interface {

	// RequiredInstanceExtensions lists the graphics API instance extensions
	// needed to present to windows of this system.
	RequiredInstanceExtensions() ([]string, error)

	// NewWindow opens a window.
	NewWindow(Config) (Window, error)

	// PollEvents pumps the platform event queue. It is called once per tick.
	PollEvents()

	// Quit shuts the windowing system down.
	Quit()
}

// Window is a native window able to host a presentation surface.
type Window interface {
	ID() uint32

	// CreateSurface creates a native presentation surface for the given
	// API instance and returns its raw handle.
	CreateSurface(instance interface{}) (uintptr, error)

	// DrawableSize is the current size of the drawable area in pixels.
	DrawableSize() (uint32, uint32)

	// ShouldClose reports whether closing was requested.
	ShouldClose() bool

	// Resized reports whether the drawable size changed since the last
	// call. The notification is cleared by reading it.
	Resized() bool

	Destroy() error
}
