// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestReleaseStack(t *testing.T) {
	c := qt.New(t)
	var order []int
	var s ReleaseStack
	for i := 1; i <= 3; i++ {
		i := i
		s.PushFunc(func() { order = append(order, i) })
	}
	c.Assert(s.Len(), qt.Equals, 3)

	s.Release()
	c.Assert(order, qt.DeepEquals, []int{3, 2, 1})
	c.Assert(s.Len(), qt.Equals, 0)

	s.Release()
	c.Assert(order, qt.HasLen, 3)
}

func TestReleaseStackNested(t *testing.T) {
	c := qt.New(t)
	var order []string
	var inner, outer ReleaseStack
	inner.PushFunc(func() { order = append(order, "inner") })
	outer.PushFunc(func() { order = append(order, "first") })
	outer.Push(&inner)
	outer.Release()
	c.Assert(order, qt.DeepEquals, []string{"inner", "first"})
}
