// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func traceIDWithLower(n uint64) TraceID {
	var id TraceID
	binary.BigEndian.PutUint64(id[:8], 0x0102030405060708)
	binary.BigEndian.PutUint64(id[8:], n)
	return id
}

func TestSampledByRateBoundaries(t *testing.T) {
	id := traceIDWithLower(rand.Uint64())
	assert.True(t, sampledByRate(id, 1))
	assert.True(t, sampledByRate(id, 1.5))
	assert.False(t, sampledByRate(id, 0))
	assert.False(t, sampledByRate(id, -0.5))
}

func TestSampledByRateDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		id := traceIDWithLower(rng.Uint64())
		first := sampledByRate(id, 0.25)
		for j := 0; j < 5; j++ {
			assert.Equal(t, first, sampledByRate(id, 0.25))
		}
	}
}

// A smaller rate's accepted set must be a subset of a larger rate's. This is
// what lets head and background rates compose without multiplying: of the
// traces passing head rate 0.6, exactly the background rate 0.3 worth pass
// the background check, not 0.6*0.3.
func TestSampledByRateSubset(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		id := traceIDWithLower(rng.Uint64())
		if sampledByRate(id, 0.3) {
			assert.True(t, sampledByRate(id, 0.6),
				"id accepted at 0.3 must be accepted at 0.6")
		}
	}
}

func TestSampledByRateConvergence(t *testing.T) {
	const n = 100000
	rng := rand.New(rand.NewSource(3))
	for _, rate := range []float64{0.1, 0.3, 0.5, 0.9} {
		kept := 0
		for i := 0; i < n; i++ {
			if sampledByRate(traceIDWithLower(rng.Uint64()), rate) {
				kept++
			}
		}
		got := float64(kept) / n
		assert.InDelta(t, rate, got, 0.01, "rate %v converged to %v", rate, got)
	}
}
