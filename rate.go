// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer // import "go.opentelemetry.io/contrib/samplers/tailbuffer"

import "math"

// knuthFactor is the multiplicative hashing constant used by the Datadog
// agent and client tracers for trace-id based sampling.
const knuthFactor = uint64(1111111111111111111)

// sampledByRate reports whether the trace id is included at the given rate.
//
// The decision is a pure function of the id: the low 64 bits are scrambled
// once with a Knuth multiplicative hash and the result is compared against
// the rate's share of the uint64 range. Because every rate is compared
// against the same scrambled value, a smaller rate's accepted set is always
// a subset of a larger rate's. That subset property is what makes head and
// background rates compose without multiplying: with head rate h and
// background rate b <= h, the fraction of traces passing the background
// check is exactly b, not h*b.
//
// The rate must already be clamped to [0,1]; see Config normalization.
func sampledByRate(id TraceID, rate float64) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return id.lower64()*knuthFactor < uint64(rate*math.MaxUint64)
}
