// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sdlwin implements the windowing system over SDL2.
// SDL must be driven from the main thread; callers lock it with
// runtime.LockOSThread before calling New. Only New, NewWindow,
// CreateSurface, PollEvents, Destroy and Quit call into SDL. The drawable
// size is sampled by NewWindow and PollEvents, so DrawableSize, Resized
// and ShouldClose are safe from any goroutine.
package sdlwin

import (
	"sync"
	"unsafe"

	"github.com/devblok/paphos/window"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

// System is the SDL windowing system.
type System struct {
	mu      sync.Mutex
	windows map[uint32]*Window
	quit    bool
	log     log.FieldLogger
}

// New initialises SDL video and events and loads the vulkan library.
func New(logger log.FieldLogger) (*System, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.Wrap(err, "sdl.Init()")
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl.VulkanLoadLibrary()")
	}
	return &System{
		windows: make(map[uint32]*Window),
		log:     logger.WithField("component", "sdl"),
	}, nil
}

// ProcAddr returns the vkGetInstanceProcAddr SDL loaded.
func (s *System) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// RequiredInstanceExtensions implements window.System. SDL only answers
// for an existing window, so a hidden one is created for the query.
func (s *System) RequiredInstanceExtensions() ([]string, error) {
	hidden, err := sdl.CreateWindow("", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, 1, 1,
		sdl.WINDOW_VULKAN|sdl.WINDOW_HIDDEN)
	if err != nil {
		return nil, errors.Wrap(err, "sdl.CreateWindow()")
	}
	defer hidden.Destroy()
	return hidden.VulkanGetInstanceExtensions(), nil
}

// NewWindow implements window.System
func (s *System) NewWindow(cfg window.Config) (window.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit {
		return nil, errors.New("sdl has quit")
	}

	var flags uint32 = sdl.WINDOW_VULKAN | sdl.WINDOW_SHOWN
	if cfg.Resizable {
		flags |= sdl.WINDOW_RESIZABLE
	}
	win, err := sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Width),
		int32(cfg.Height),
		flags)
	if err != nil {
		return nil, errors.Wrap(err, "sdl.CreateWindow()")
	}
	id, err := win.GetID()
	if err != nil {
		win.Destroy()
		return nil, errors.Wrap(err, "sdl.Window.GetID()")
	}
	w := &Window{win: win, id: id, system: s}
	w.sampleSize()
	s.windows[id] = w
	return w, nil
}

// PollEvents drains the SDL event queue. Quit closes every window,
// escape or the close button closes the focused one.
func (s *System) PollEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch et := event.(type) {
		case *sdl.QuitEvent:
			for _, w := range s.windows {
				w.setClose()
			}
		case *sdl.WindowEvent:
			w, ok := s.windows[et.WindowID]
			if !ok {
				continue
			}
			switch et.Event {
			case sdl.WINDOWEVENT_CLOSE:
				w.setClose()
			case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
				w.sampleSize()
				w.setResized()
			}
		case *sdl.KeyboardEvent:
			if et.Type == sdl.KEYDOWN && et.Keysym.Sym == sdl.K_ESCAPE {
				if w, ok := s.windows[et.WindowID]; ok {
					w.setClose()
				}
			}
		}
	}
}

// Quit unloads vulkan and shuts SDL down. It is safe to call more than once.
func (s *System) Quit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit {
		return
	}
	s.quit = true
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
	s.log.Debug("sdl quit")
}

func (s *System) forget(id uint32) {
	s.mu.Lock()
	delete(s.windows, id)
	s.mu.Unlock()
}

// Window is an SDL window created with vulkan support.
type Window struct {
	mu      sync.Mutex
	win     *sdl.Window
	id      uint32
	close   bool
	resized bool
	system  *System

	// drawable size as of the last sample on the main thread
	width  uint32
	height uint32
}

// ID implements window.Window
func (w *Window) ID() uint32 {
	return w.id
}

// CreateSurface implements window.Window. instance must be a vk.Instance.
func (w *Window) CreateSurface(instance interface{}) (uintptr, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.win == nil {
		return 0, errors.New("window destroyed")
	}
	surface, err := w.win.VulkanCreateSurface(instance)
	if err != nil {
		return 0, errors.Wrap(err, "sdl.Window.VulkanCreateSurface()")
	}
	return uintptr(surface), nil
}

// DrawableSize implements window.Window. It returns the size sampled by
// the last PollEvents that saw a resize.
func (w *Window) DrawableSize() (uint32, uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.win == nil {
		return 0, 0
	}
	return w.width, w.height
}

func (w *Window) sampleSize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.win == nil {
		return
	}
	width, height := w.win.VulkanGetDrawableSize()
	w.width, w.height = uint32(width), uint32(height)
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
	w.system.forget(w.id)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.win == nil {
		return errors.New("window already destroyed")
	}
	err := w.win.Destroy()
	w.win = nil
	return err
}

func (w *Window) setClose() {
	w.mu.Lock()
	w.close = true
	w.mu.Unlock()
}

func (w *Window) setResized() {
	w.mu.Lock()
	w.resized = true
	w.mu.Unlock()
}
