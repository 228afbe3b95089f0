// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sim

import (
	"sync"

	"github.com/devblok/paphos/window"
	"github.com/pkg/errors"
)

// System is a simulated windowing system. Windows close themselves after
// a configured number of event polls.
type System struct {
	mu sync.Mutex

	// Extensions is returned by RequiredInstanceExtensions.
	Extensions []string
	// CloseAfter closes every window after that many polls when positive.
	CloseAfter int

	windows []*Window
	nextID  uint32
	polls   int
	quit    bool
}

// NewSystem creates a simulated windowing system requiring the usual
// surface extensions.
func NewSystem() *System {
	return &System{Extensions: []string{"VK_KHR_surface", "VK_KHR_xlib_surface"}}
}

// RequiredInstanceExtensions implements window.System
func (s *System) RequiredInstanceExtensions() ([]string, error) {
	return append([]string(nil), s.Extensions...), nil
}

// NewWindow implements window.System
func (s *System) NewWindow(cfg window.Config) (window.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit {
		return nil, errors.New("sim: windowing system has quit")
	}
	s.nextID++
	w := &Window{id: s.nextID, width: cfg.Width, height: cfg.Height, system: s}
	s.windows = append(s.windows, w)
	return w, nil
}

// PollEvents implements window.System
func (s *System) PollEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.CloseAfter > 0 && s.polls >= s.CloseAfter {
		for _, w := range s.windows {
			w.RequestClose()
		}
	}
}

// Quit implements window.System
func (s *System) Quit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quit = true
}

// HasQuit reports whether Quit was called.
func (s *System) HasQuit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit
}

// Polls is the number of PollEvents calls so far.
func (s *System) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// Window is a simulated window.
type Window struct {
	mu sync.Mutex

	id        uint32
	width     uint32
	height    uint32
	close     bool
	resized   bool
	destroyed bool
	surfaces  int
	system    *System
}

// ID implements window.Window
func (w *Window) ID() uint32 {
	return w.id
}

// CreateSurface implements window.Window. The returned handle is an
// opaque non-zero token.
func (w *Window) CreateSurface(instance interface{}) (uintptr, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return 0, errors.New("sim: window destroyed")
	}
	if instance == nil {
		return 0, errors.New("sim: nil instance")
	}
	w.surfaces++
	return uintptr(w.id)<<16 | uintptr(w.surfaces), nil
}

// DrawableSize implements window.Window
func (w *Window) DrawableSize() (uint32, uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// ShouldClose implements window.Window
func (w *Window) ShouldClose() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.close
}

// Resized implements window.Window
func (w *Window) Resized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.resized
	w.resized = false
	return r
}

// Destroy implements window.Window
func (w *Window) Destroy() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return errors.New("sim: window already destroyed")
	}
	w.destroyed = true
	return nil
}

// Resize changes the drawable size and raises a resize notification.
func (w *Window) Resize(width, height uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width, w.height = width, height
	w.resized = true
}

// RequestClose raises the close-requested signal.
func (w *Window) RequestClose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.close = true
}

// Destroyed reports whether Destroy was called.
func (w *Window) Destroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}
