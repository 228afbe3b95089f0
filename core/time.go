// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	var interval time.Duration
	if cfg.FramesPerSecond == 0 {
		interval = time.Nanosecond
	} else {
		interval = time.Second / (time.Duration)(cfg.FramesPerSecond)
	}

	t := &Time{
		fps:       cfg.FramesPerSecond,
		fpsTicker: time.NewTicker(interval),
	}
	if cfg.ReportInterval > 0 {
		t.reportTicker = time.NewTicker(time.Duration(cfg.ReportInterval) * time.Millisecond)
	}
	return t
}

// Time contains all the time services and tickers
type Time struct {
	fps       int
	fpsTicker *time.Ticker

	reportTicker *time.Ticker
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// Report returns the channel for frame statistics reports. It is nil,
// and never ready, when reporting is disabled.
func (t *Time) Report() <-chan time.Time {
	if t.reportTicker == nil {
		return nil
	}
	return t.reportTicker.C
}

// Release implements gfx.Releasable
func (t *Time) Release() {
	t.fpsTicker.Stop()
	if t.reportTicker != nil {
		t.reportTicker.Stop()
	}
}
