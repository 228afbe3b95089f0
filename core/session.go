// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/devblok/paphos/gfx"
	"github.com/devblok/paphos/scheduler"
	"github.com/devblok/paphos/window"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Shared records declared by session stages.
const (
	RecordSession = "session"
	RecordDevice  = "device"
)

// ErrSessionClosed is returned when using a session after its last window
// was closed.
var ErrSessionClosed = errors.New("session closed")

// Session owns the framework, the device and every open window. Closing
// the last window releases the device and framework and quits the
// windowing system.
type Session struct {
	mu sync.Mutex

	cfg     Configuration
	driver  gfx.Driver
	system  window.System
	shaders ShaderSource
	log     log.FieldLogger

	framework *Framework
	device    *Device
	windows   []*Window

	sched  *scheduler.Scheduler
	closed bool
}

// NewSession creates the framework for the windowing system. The device is
// selected when the first window opens.
func NewSession(driver gfx.Driver, system window.System, shaders ShaderSource, cfg Configuration, logger log.FieldLogger) (*Session, error) {
	required, err := system.RequiredInstanceExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "window.RequiredInstanceExtensions()")
	}
	fw, err := CreateFramework(driver, required, cfg.Instance, cfg.Renderer, logger)
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:       cfg,
		driver:    driver,
		system:    system,
		shaders:   shaders,
		log:       logger.WithField("component", "session"),
		framework: fw,
		sched:     scheduler.New(cfg.Scheduler.Workers, logger),
	}
	if err := s.sched.Register(scheduler.Stage{
		Name:   "close",
		Writes: []string{RecordSession, RecordDevice},
		Run:    s.closeRequested,
	}); err != nil {
		fw.Release()
		return nil, err
	}
	return s, nil
}

// Framework returns the session framework.
func (s *Session) Framework() *Framework {
	return s.framework
}

// Device returns the selected device, or nil before the first window.
func (s *Session) Device() *Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Windows returns the open windows in the order they were opened.
func (s *Session) Windows() []*Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Window(nil), s.windows...)
}

// Closed reports whether the session has shut down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// OpenWindow opens a native window and brings up its surface, the device
// if none is selected yet, and every window stage. Later windows must be
// presentable from the present family of the selected device.
func (s *Session) OpenWindow(cfg window.Config) (*Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	native, err := s.system.NewWindow(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "window.NewWindow()")
	}
	var guard ReleaseStack
	guard.PushFunc(func() { native.Destroy() })

	surface, err := CreateSurface(s.framework, native)
	if err != nil {
		guard.Release()
		return nil, err
	}
	guard.PushFunc(func() { s.driver.DestroySurface(s.framework.Instance, surface) })

	if s.device == nil {
		dev, err := SelectDevice(s.framework, surface, s.log)
		if err != nil {
			guard.Release()
			return nil, err
		}
		s.device = dev
		guard.PushFunc(func() {
			dev.Release()
			s.device = nil
		})
	} else if err := s.device.CheckSurface(surface); err != nil {
		s.log.WithError(err).WithField("window", native.ID()).Warn("surface not presentable")
		guard.Release()
		return nil, err
	}

	w, err := NewWindow(s.framework, s.device, native, surface, s.shaders, s.cfg.Renderer, s.log)
	if err != nil {
		guard.Release()
		return nil, err
	}

	if err := s.sched.Register(scheduler.Stage{
		Name:   drawStageName(w),
		Reads:  []string{RecordSession, RecordDevice},
		Writes: []string{windowRecord(w)},
		Run: func(context.Context) error {
			w.Draw()
			return nil
		},
	}); err != nil {
		w.Release()
		guard.Release()
		return nil, err
	}

	s.windows = append(s.windows, w)
	s.log.WithField("window", w.ID()).Info("window opened")
	return w, nil
}

func drawStageName(w *Window) string {
	return fmt.Sprintf("draw/%d", w.ID())
}

func windowRecord(w *Window) string {
	return fmt.Sprintf("window/%d", w.ID())
}

// CloseWindow tears the window down and destroys the native window. When
// it was the last window the session shuts down.
func (s *Session) CloseWindow(w *Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeWindow(w)
}

func (s *Session) closeWindow(w *Window) error {
	idx := -1
	for i, v := range s.windows {
		if v == w {
			idx = i
		}
	}
	if idx < 0 {
		return errors.Errorf("window %d is not open", w.ID())
	}
	s.sched.Unregister(drawStageName(w))
	s.windows = append(s.windows[:idx], s.windows[idx+1:]...)

	err := w.Release()
	if derr := w.native.Destroy(); derr != nil && err == nil {
		err = errors.Wrap(derr, "window.Destroy()")
	}
	s.log.WithField("window", w.ID()).Info("window closed")

	if len(s.windows) == 0 {
		s.shutdown()
	}
	return err
}

// shutdown releases the device and framework and quits the windowing
// system.
func (s *Session) shutdown() {
	if s.closed {
		return
	}
	s.closed = true
	if s.device != nil {
		s.device.Release()
		s.device = nil
	}
	s.framework.Release()
	s.system.Quit()
	s.log.Info("session closed")
}

// Close closes every window and shuts the session down.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for len(s.windows) > 0 {
		if err := s.closeWindow(s.windows[len(s.windows)-1]); err != nil && first == nil {
			first = err
		}
	}
	s.shutdown()
	return first
}

// closeRequested closes windows that asked to close or have failed.
func (s *Session) closeRequested(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range append([]*Window(nil), s.windows...) {
		if !w.native.ShouldClose() && w.Err() == nil {
			continue
		}
		if err := s.closeWindow(w); err != nil {
			s.log.WithError(err).WithField("window", w.ID()).Error("window teardown failed")
		}
	}
	return nil
}

// Tick pumps window events and runs every stage once.
func (s *Session) Tick(ctx context.Context) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	s.system.PollEvents()
	return s.sched.Progress(ctx)
}

// Run ticks on every beat of t until the session closes or ctx is done.
// Every report interval the frame rate is logged.
func (s *Session) Run(ctx context.Context, t *Time) error {
	var frames uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Report():
			total := s.framesPresented()
			s.log.WithField("frames", total-frames).Info("frames since last report")
			frames = total
		case <-t.FpsTicker().C:
			if err := s.Tick(ctx); err != nil {
				return err
			}
			if s.Closed() {
				return nil
			}
		}
	}
}

func (s *Session) framesPresented() uint64 {
	var total uint64
	for _, w := range s.Windows() {
		total += w.FramesPresented()
	}
	return total
}
