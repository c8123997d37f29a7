// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_media

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(seq uint16) *Frame {
	return NewFrame(&rtp.Packet{
		Header:  rtp.Header{SequenceNumber: seq, Timestamp: uint32(seq) * 960},
		Payload: []byte{byte(seq), byte(seq >> 8)},
	})
}

func TestFrameQueuePushPop(t *testing.T) {
	q := NewFrameQueue(4, 2)
	require.True(t, q.TryPush(testFrame(1)))
	require.True(t, q.TryPush(testFrame(2)))

	ctx := context.Background()
	f, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), f.Packet.SequenceNumber)

	f, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), f.Packet.SequenceNumber)
}

func TestFrameQueueDropsNewestOnOverflow(t *testing.T) {
	q := NewFrameQueue(2, 1)
	assert.True(t, q.TryPush(testFrame(1)))
	assert.True(t, q.TryPush(testFrame(2)))
	assert.False(t, q.TryPush(testFrame(3)))
	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, 2, q.Len())

	// oldest still at the head, frame 3 was the one discarded
	f, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(1), f.Packet.SequenceNumber)
}

func TestFrameQueuePopBlocksUntilPush(t *testing.T) {
	q := NewFrameQueue(4, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	var got *Frame
	go func() {
		defer wg.Done()
		f, err := q.Pop(context.Background())
		require.NoError(t, err)
		got = f
	}()

	time.Sleep(20 * time.Millisecond)
	q.TryPush(testFrame(7))
	wg.Wait()
	assert.Equal(t, uint16(7), got.Packet.SequenceNumber)
}

func TestFrameQueuePopHonorsContext(t *testing.T) {
	q := NewFrameQueue(4, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFrameQueueTrimTo(t *testing.T) {
	q := NewFrameQueue(10, 1)
	for i := 1; i <= 6; i++ {
		q.TryPush(testFrame(uint16(i)))
	}

	trimmed := q.TrimTo(2)
	assert.Equal(t, 4, trimmed)
	assert.Equal(t, 2, q.Len())

	// the two newest remain
	f, _ := q.Pop(context.Background())
	assert.Equal(t, uint16(5), f.Packet.SequenceNumber)
	f, _ = q.Pop(context.Background())
	assert.Equal(t, uint16(6), f.Packet.SequenceNumber)

	assert.Equal(t, 0, q.TrimTo(5))
}

func TestFrameQueuePrefillPrepends(t *testing.T) {
	q := NewFrameQueue(10, 1)
	q.TryPush(testFrame(10))

	ok := q.Prefill([]*Frame{testFrame(1), testFrame(2)}, true)
	require.True(t, ok)
	assert.Equal(t, 3, q.Len())

	order := []uint16{}
	for i := 0; i < 3; i++ {
		f, _ := q.Pop(context.Background())
		order = append(order, f.Packet.SequenceNumber)
	}
	assert.Equal(t, []uint16{1, 2, 10}, order)
}

func TestFrameQueuePrefillSkippedWhenFilled(t *testing.T) {
	q := NewFrameQueue(10, 2)
	q.TryPush(testFrame(10))
	q.TryPush(testFrame(11))

	ok := q.Prefill([]*Frame{testFrame(1)}, false)
	assert.False(t, ok)
	assert.Equal(t, 2, q.Len())

	// forced prefill goes through regardless of fill level
	ok = q.Prefill([]*Frame{testFrame(1)}, true)
	assert.True(t, ok)
	assert.Equal(t, 3, q.Len())
}

func TestFrameQueuePrefillRespectsCapacity(t *testing.T) {
	q := NewFrameQueue(3, 1)
	q.TryPush(testFrame(100))

	q.Prefill([]*Frame{testFrame(1), testFrame(2), testFrame(3)}, true)
	assert.Equal(t, 3, q.Len())

	// oldest of the merged sequence was discarded
	f, _ := q.Pop(context.Background())
	assert.Equal(t, uint16(2), f.Packet.SequenceNumber)
}

func TestFrameQueueConcurrentProducers(t *testing.T) {
	q := NewFrameQueue(1000, 1)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.TryPush(testFrame(uint16(base + i)))
			}
		}(p * 100)
	}
	wg.Wait()
	assert.Equal(t, 400, q.Len())
	assert.Equal(t, uint64(0), q.Dropped())
}
