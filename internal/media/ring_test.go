// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameRingSnapshotOrder(t *testing.T) {
	r := NewFrameRing(5)
	for i := 1; i <= 3; i++ {
		r.Append(testFrame(uint16(i)))
	}

	snap := r.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, uint16(1), snap[0].Packet.SequenceNumber)
	assert.Equal(t, uint16(3), snap[2].Packet.SequenceNumber)
}

func TestFrameRingOverwritesOldest(t *testing.T) {
	r := NewFrameRing(3)
	for i := 1; i <= 5; i++ {
		r.Append(testFrame(uint16(i)))
	}

	snap := r.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, uint16(3), snap[0].Packet.SequenceNumber)
	assert.Equal(t, uint16(5), snap[2].Packet.SequenceNumber)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Capacity())
}

func TestFrameRingEmptySnapshot(t *testing.T) {
	r := NewFrameRing(4)
	assert.Empty(t, r.Snapshot())
	assert.Equal(t, 0, r.Len())
}
