// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devblok/paphos/scheduler"
	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
)

func noop(context.Context) error { return nil }

func stage(name string, reads, writes []string) scheduler.Stage {
	return scheduler.Stage{Name: name, Reads: reads, Writes: writes, Run: noop}
}

func names(batches [][]scheduler.Stage) [][]string {
	var out [][]string
	for _, b := range batches {
		var n []string
		for _, st := range b {
			n = append(n, st.Name)
		}
		out = append(out, n)
	}
	return out
}

func TestConflicts(t *testing.T) {
	c := qt.New(t)
	a := stage("a", []string{"x"}, []string{"y"})
	c.Assert(scheduler.Conflicts(a, stage("b", []string{"x"}, nil)), qt.IsFalse)
	c.Assert(scheduler.Conflicts(a, stage("b", []string{"y"}, nil)), qt.IsTrue)
	c.Assert(scheduler.Conflicts(a, stage("b", nil, []string{"x"})), qt.IsTrue)
	c.Assert(scheduler.Conflicts(a, stage("b", nil, []string{"y"})), qt.IsTrue)
	c.Assert(scheduler.Conflicts(a, stage("b", []string{"z"}, []string{"w"})), qt.IsFalse)
}

func TestRegister(t *testing.T) {
	c := qt.New(t)
	logger, _ := test.NewNullLogger()
	s := scheduler.New(1, logger)

	c.Assert(s.Register(stage("a", nil, nil)), qt.IsNil)
	c.Assert(s.Register(stage("b", nil, nil)), qt.IsNil)
	c.Assert(s.Register(stage("a", nil, nil)), qt.ErrorMatches, "stage a already registered")
	c.Assert(s.Register(stage("", nil, nil)), qt.ErrorMatches, "stage needs a name and a run function")
	c.Assert(s.Register(scheduler.Stage{Name: "c"}), qt.ErrorMatches, "stage needs a name and a run function")
	c.Assert(s.Stages(), qt.DeepEquals, []string{"a", "b"})

	c.Assert(s.Unregister("a"), qt.IsTrue)
	c.Assert(s.Unregister("a"), qt.IsFalse)
	c.Assert(s.Stages(), qt.DeepEquals, []string{"b"})
}

func TestBatches(t *testing.T) {
	logger, _ := test.NewNullLogger()
	stages := []scheduler.Stage{
		stage("close", nil, []string{"session"}),
		stage("draw/1", []string{"session"}, []string{"window/1"}),
		stage("draw/2", []string{"session"}, []string{"window/2"}),
		stage("stats", []string{"window/1", "window/2"}, nil),
	}
	for _, tc := range []struct {
		workers int
		want    [][]string
	}{
		{0, [][]string{{"close"}, {"draw/1"}, {"draw/2"}, {"stats"}}},
		{1, [][]string{{"close"}, {"draw/1"}, {"draw/2"}, {"stats"}}},
		{2, [][]string{{"close"}, {"draw/1", "draw/2"}, {"stats"}}},
	} {
		c := qt.New(t)
		s := scheduler.New(tc.workers, logger)
		for _, st := range stages {
			c.Assert(s.Register(st), qt.IsNil)
		}
		c.Assert(names(s.Batches()), qt.DeepEquals, tc.want, qt.Commentf("workers %d", tc.workers))
	}
}

func TestProgressOrder(t *testing.T) {
	c := qt.New(t)
	logger, _ := test.NewNullLogger()
	s := scheduler.New(1, logger)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		c.Assert(s.Register(scheduler.Stage{
			Name: name,
			Run: func(context.Context) error {
				order = append(order, name)
				return nil
			},
		}), qt.IsNil)
	}
	c.Assert(s.Progress(context.Background()), qt.IsNil)
	c.Assert(s.Progress(context.Background()), qt.IsNil)
	c.Assert(order, qt.DeepEquals, []string{"first", "second", "third", "first", "second", "third"})
}

func TestProgressConcurrent(t *testing.T) {
	c := qt.New(t)
	logger, _ := test.NewNullLogger()
	s := scheduler.New(2, logger)

	// Both stages must be running at once for either to finish.
	var wg sync.WaitGroup
	wg.Add(2)
	for _, name := range []string{"left", "right"} {
		c.Assert(s.Register(scheduler.Stage{
			Name:   name,
			Writes: []string{name},
			Run: func(ctx context.Context) error {
				wg.Done()
				done := make(chan struct{})
				go func() {
					wg.Wait()
					close(done)
				}()
				select {
				case <-done:
					return nil
				case <-time.After(5 * time.Second):
					return errors.New("stages did not overlap")
				}
			},
		}), qt.IsNil)
	}
	c.Assert(s.Progress(context.Background()), qt.IsNil)
}

func TestProgressError(t *testing.T) {
	c := qt.New(t)
	logger, _ := test.NewNullLogger()
	s := scheduler.New(1, logger)

	var ran int32
	failure := errors.New("boom")
	c.Assert(s.Register(scheduler.Stage{Name: "fail", Run: func(context.Context) error { return failure }}), qt.IsNil)
	c.Assert(s.Register(scheduler.Stage{Name: "after", Run: func(context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}}), qt.IsNil)

	err := s.Progress(context.Background())
	c.Assert(err, qt.ErrorMatches, "stage fail: boom")
	c.Assert(errors.Cause(err), qt.Equals, failure)
	c.Assert(atomic.LoadInt32(&ran), qt.Equals, int32(0))
}
