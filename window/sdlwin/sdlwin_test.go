// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sdlwin

import (
	"runtime"
	"testing"

	"github.com/devblok/paphos/window"
	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestDrawableSizeOffMainThread(t *testing.T) {
	c := qt.New(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger, _ := test.NewNullLogger()
	system, err := New(logger)
	if err != nil {
		c.Skip("no SDL video or vulkan loader: ", err)
	}
	defer system.Quit()

	w, err := system.NewWindow(window.Config{Title: "size", Width: 320, Height: 240})
	c.Assert(err, qt.IsNil)
	defer w.Destroy()
	native := w.(*Window)
	native.mu.Lock()
	sampledW, sampledH := native.width, native.height
	native.mu.Unlock()
	c.Assert(sampledW, qt.Not(qt.Equals), uint32(0))

	// Draw stages ask for the size from worker goroutines.
	type size struct{ w, h uint32 }
	got := make(chan size)
	go func() {
		width, height := w.DrawableSize()
		got <- size{width, height}
	}()
	c.Assert(<-got, qt.Equals, size{sampledW, sampledH})

	c.Assert(w.Destroy(), qt.IsNil)
	width, height := w.DrawableSize()
	c.Assert([]uint32{width, height}, qt.DeepEquals, []uint32{0, 0})
}
