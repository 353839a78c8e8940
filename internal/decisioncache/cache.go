// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package decisioncache remembers recently decided trace ids for a bounded
// time window, so late-arriving records replay the prior decision instead of
// opening a fresh buffer.
package decisioncache // import "go.opentelemetry.io/contrib/samplers/tailbuffer/internal/decisioncache"

// Cache is a set of trace ids with bounded size and lifetime.
type Cache interface {
	// Get reports whether the id is present and still within its window.
	Get(id [16]byte) bool
	// Put records the id.
	Put(id [16]byte)
}

type nopCache struct{}

// NewNop returns a cache that remembers nothing. Every lookup misses, which
// makes each arrival an independent decision.
func NewNop() Cache {
	return nopCache{}
}

func (nopCache) Get([16]byte) bool { return false }
func (nopCache) Put([16]byte)      {}
