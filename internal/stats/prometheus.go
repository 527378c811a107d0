// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package stats provides a Prometheus-backed implementation of
// base.StatsSink, exposing internal counters through
// github.com/prometheus/client_golang.
package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gangliao/rocksdb/internal/base"
)

// PrometheusSink implements base.StatsSink on top of a prometheus.Registerer.
// Counters and histograms are created lazily, keyed by stat name, since the
// set of names used by the blob subsystem is fixed but callers may pass
// arbitrary additional names in tests.
type PrometheusSink struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusSink creates a sink that registers its metrics (prefixed
// "blobstore_") against reg. Pass prometheus.DefaultRegisterer for global
// registration, or a fresh prometheus.NewRegistry() in tests to avoid
// collisions between test cases.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	return &PrometheusSink{
		reg:        reg,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

var _ base.StatsSink = (*PrometheusSink)(nil)

func metricName(statName string) string {
	out := make([]byte, 0, len(statName)+10)
	out = append(out, "blobstore_"...)
	for _, r := range statName {
		if r == '.' || r == '-' {
			r = '_'
		}
		out = append(out, byte(r))
	}
	return string(out)
}

func (s *PrometheusSink) counter(name string) prometheus.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricName(name),
		Help: "blobstore counter " + name,
	})
	if s.reg != nil {
		// A name collision with a previously registered collector of another
		// type is a programming error; ignore it here the same way RocksDB's
		// ticker table silently no-ops on unknown ticker names.
		_ = s.reg.Register(c)
	}
	s.counters[name] = c
	return c
}

func (s *PrometheusSink) histogram(name string) prometheus.Histogram {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricName(name),
		Help:    "blobstore histogram " + name,
		Buckets: prometheus.DefBuckets,
	})
	if s.reg != nil {
		_ = s.reg.Register(h)
	}
	s.histograms[name] = h
	return h
}

// Tick increments the named counter by one.
func (s *PrometheusSink) Tick(name string) {
	s.counter(name).Inc()
}

// TickBy increments the named counter by delta.
func (s *PrometheusSink) TickBy(name string, delta uint64) {
	s.counter(name).Add(float64(delta))
}

// Observe records a histogram sample.
func (s *PrometheusSink) Observe(name string, seconds float64) {
	s.histogram(name).Observe(seconds)
}
