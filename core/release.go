// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"sync"

	"github.com/devblok/paphos/gfx"
)

// ReleaseStack holds release functions of owned objects. Releasing it
// runs them once each, most recently pushed first.
type ReleaseStack struct {
	mu    sync.Mutex
	items []gfx.Releasable
}

// Push adds an item to be released before everything pushed earlier.
func (s *ReleaseStack) Push(r gfx.Releasable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, r)
}

// PushFunc is Push for a plain function.
func (s *ReleaseStack) PushFunc(f func()) {
	s.Push(gfx.ReleaseFunc(f))
}

// Len is the number of items not yet released.
func (s *ReleaseStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Release implements gfx.Releasable
func (s *ReleaseStack) Release() {
	s.mu.Lock()
	items := s.items
	s.items = nil
	s.mu.Unlock()
	for i := len(items) - 1; i >= 0; i-- {
		items[i].Release()
	}
}
