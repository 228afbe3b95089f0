// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package scheduler runs registered stages once per tick in the order they
// were registered. Every stage declares the shared records it reads and
// writes; with more than one worker, consecutive stages that do not
// conflict run concurrently.
package scheduler

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Stage is a unit of work run once per tick.
type Stage struct {
	Name   string
	Reads  []string
	Writes []string
	Run    func(context.Context) error
}

// Conflicts reports whether two stages may not run concurrently: one of
// them writes a record the other reads or writes.
func Conflicts(a, b Stage) bool {
	return overlaps(a.Writes, b.Writes) || overlaps(a.Writes, b.Reads) || overlaps(b.Writes, a.Reads)
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Scheduler is a cooperative tick loop.
type Scheduler struct {
	mu      sync.Mutex
	stages  []Stage
	workers int
	log     log.FieldLogger
}

// New creates a scheduler. Workers of one or less runs every stage in
// sequence.
func New(workers int, logger log.FieldLogger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		workers: workers,
		log:     logger.WithField("component", "scheduler"),
	}
}

// Register appends a stage. Names must be unique.
func (s *Scheduler) Register(stage Stage) error {
	if stage.Name == "" || stage.Run == nil {
		return errors.New("stage needs a name and a run function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stages {
		if st.Name == stage.Name {
			return errors.Errorf("stage %s already registered", stage.Name)
		}
	}
	s.stages = append(s.stages, stage)
	return nil
}

// Unregister removes a stage by name and reports whether it was present.
// A tick already in progress still runs it.
func (s *Scheduler) Unregister(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, st := range s.stages {
		if st.Name == name {
			s.stages = append(s.stages[:i:i], s.stages[i+1:]...)
			return true
		}
	}
	return false
}

// Stages returns the registered stage names in order.
func (s *Scheduler) Stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.stages))
	for i, st := range s.stages {
		names[i] = st.Name
	}
	return names
}

// Batches groups the registered stages into runs of consecutive stages
// where no two conflict. With a single worker every stage is its own batch.
func (s *Scheduler) Batches() [][]Stage {
	s.mu.Lock()
	stages := append([]Stage(nil), s.stages...)
	s.mu.Unlock()
	return batch(stages, s.workers)
}

func batch(stages []Stage, workers int) [][]Stage {
	var batches [][]Stage
	var current []Stage
	for _, st := range stages {
		split := workers <= 1 || len(current) == 0
		for _, other := range current {
			if Conflicts(st, other) {
				split = true
				break
			}
		}
		if split && len(current) > 0 {
			batches = append(batches, current)
			current = nil
		}
		current = append(current, st)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// Progress runs one tick. It stops at the first batch with a failing
// stage and returns that error.
func (s *Scheduler) Progress(ctx context.Context) error {
	for _, b := range s.Batches() {
		if err := s.runBatch(ctx, b); err != nil {
			s.log.WithError(err).Debug("tick aborted")
			return err
		}
	}
	return nil
}

func (s *Scheduler) runBatch(ctx context.Context, stages []Stage) error {
	if len(stages) == 1 {
		return errors.Wrapf(stages[0].Run(ctx), "stage %s", stages[0].Name)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, st := range stages {
		st := st
		g.Go(func() error {
			return errors.Wrapf(st.Run(ctx), "stage %s", st.Name)
		})
	}
	return g.Wait()
}
