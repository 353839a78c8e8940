// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package decisioncache // import "go.opentelemetry.io/contrib/samplers/tailbuffer/internal/decisioncache"

import (
	"encoding/binary"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// lruCache is an LRU set of trace ids whose entries expire after a fixed
// window. Ids are reduced to the random right half, which is what
// W3C-style generators randomize.
type lruCache struct {
	cache *expirable.LRU[uint64, struct{}]
}

var _ Cache = (*lruCache)(nil)

// NewLRU returns a cache holding at most size ids, each remembered for the
// given window.
func NewLRU(size int, window time.Duration) Cache {
	return &lruCache{cache: expirable.NewLRU[uint64, struct{}](size, nil, window)}
}

func (c *lruCache) Get(id [16]byte) bool {
	_, ok := c.cache.Get(rightHalfTraceID(id))
	return ok
}

func (c *lruCache) Put(id [16]byte) {
	c.cache.Add(rightHalfTraceID(id), struct{}{})
}

func rightHalfTraceID(id [16]byte) uint64 {
	return binary.LittleEndian.Uint64(id[8:])
}
