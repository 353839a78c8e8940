// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracelimiter bounds the total number of records buffered across
// all undecided traces. When the ceiling is exceeded it names the
// least-recently-updated traces as eviction victims; the caller decides
// their fate, so no trace ever vanishes without accounting.
package tracelimiter // import "go.opentelemetry.io/contrib/samplers/tailbuffer/internal/tracelimiter"

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Limiter tracks per-trace record counts in update-recency order.
type Limiter struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[[16]byte, int]
	total int
	max   int
}

// New returns a limiter enforcing the given record ceiling. maxRecords must
// be positive.
func New(maxRecords int) *Limiter {
	// Entry count can never exceed the record total, so the record ceiling
	// doubles as the entry cap. The constructor only fails on size <= 0.
	lru, err := simplelru.NewLRU[[16]byte, int](maxRecords, nil)
	if err != nil {
		panic(err)
	}
	return &Limiter{lru: lru, max: maxRecords}
}

// Touch records that the trace gained delta records and refreshes its
// recency. If the ceiling is now exceeded it removes least-recently-updated
// traces until back under and returns their ids; the caller must resolve
// each victim with a terminal decision.
func (l *Limiter) Touch(id [16]byte, delta int) [][16]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if count, ok := l.lru.Peek(id); ok {
		l.lru.Add(id, count+delta)
	} else {
		l.lru.Add(id, delta)
	}
	l.total += delta

	var victims [][16]byte
	for l.total > l.max {
		id, count, ok := l.lru.RemoveOldest()
		if !ok {
			break
		}
		l.total -= count
		victims = append(victims, id)
	}
	return victims
}

// Remove forgets a trace that reached a decision through the normal path.
func (l *Limiter) Remove(id [16]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if count, ok := l.lru.Peek(id); ok {
		l.lru.Remove(id)
		l.total -= count
	}
}

// BufferedRecords returns the current record total.
func (l *Limiter) BufferedRecords() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Traces returns the number of tracked traces.
func (l *Limiter) Traces() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lru.Len()
}
