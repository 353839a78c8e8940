// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracelimiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceID(b byte) [16]byte {
	var id [16]byte
	id[15] = b
	return id
}

func TestTouchAccumulates(t *testing.T) {
	l := New(10)
	assert.Empty(t, l.Touch(traceID(1), 3))
	assert.Empty(t, l.Touch(traceID(1), 2))
	assert.Equal(t, 5, l.BufferedRecords())
	assert.Equal(t, 1, l.Traces())
}

func TestTouchEvictsLeastRecentlyUpdated(t *testing.T) {
	l := New(5)
	l.Touch(traceID(1), 2)
	l.Touch(traceID(2), 2)
	// Refresh trace 1; trace 2 is now the oldest.
	l.Touch(traceID(1), 1)

	victims := l.Touch(traceID(3), 1)
	require.Len(t, victims, 1)
	assert.Equal(t, traceID(2), victims[0])
	assert.Equal(t, 4, l.BufferedRecords())
	assert.Equal(t, 2, l.Traces())
}

func TestTouchEvictsUntilUnderCeiling(t *testing.T) {
	l := New(4)
	l.Touch(traceID(1), 1)
	l.Touch(traceID(2), 1)
	l.Touch(traceID(3), 1)

	victims := l.Touch(traceID(4), 4)
	require.Len(t, victims, 3)
	assert.Equal(t, [][16]byte{traceID(1), traceID(2), traceID(3)}, victims)
	assert.Equal(t, 4, l.BufferedRecords())
}

func TestRemoveSettlesAccounting(t *testing.T) {
	l := New(10)
	l.Touch(traceID(1), 4)
	l.Touch(traceID(2), 3)
	l.Remove(traceID(1))
	assert.Equal(t, 3, l.BufferedRecords())
	assert.Equal(t, 1, l.Traces())

	// Removing an unknown id is a no-op.
	l.Remove(traceID(9))
	assert.Equal(t, 3, l.BufferedRecords())
}
