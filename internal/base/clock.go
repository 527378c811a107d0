// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import "time"

// Clock abstracts time so tests can substitute a deterministic source,
// serving the compression stopwatch.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// StopWatch times a single operation against a Clock, used to record
// compression-call latency.
type StopWatch struct {
	clock Clock
	start time.Time
}

// NewStopWatch starts a stopwatch.
func NewStopWatch(clock Clock) StopWatch {
	return StopWatch{clock: clock, start: clock.Now()}
}

// Elapsed returns the duration since the stopwatch was started.
func (w StopWatch) Elapsed() time.Duration {
	return w.clock.Now().Sub(w.start)
}
