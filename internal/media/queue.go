// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_media

import (
	"context"
	"sync"
	"sync/atomic"
)

// FrameQueue is the bounded handoff between the capture tee and the
// recognition manager. Producers never block: on overflow the incoming
// frame is dropped and counted. Consumers block in Pop until a frame or
// context cancellation.
type FrameQueue struct {
	mu       sync.Mutex
	items    []*Frame
	capacity int
	minFill  int
	notEmpty chan struct{}
	dropped  atomic.Uint64
}

// NewFrameQueue creates a queue holding up to capacity frames. minFill is
// the occupancy at which a non-forced Prefill is skipped.
func NewFrameQueue(capacity, minFill int) *FrameQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &FrameQueue{
		capacity: capacity,
		minFill:  minFill,
		notEmpty: make(chan struct{}, 1),
	}
}

// TryPush appends f unless the queue is full. Returns false on drop.
// Never blocks; relay cadence must not depend on recognition keeping up.
func (q *FrameQueue) TryPush(f *Frame) bool {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.mu.Unlock()
		q.dropped.Add(1)
		return false
	}
	q.items = append(q.items, f)
	q.mu.Unlock()
	q.signal()
	return true
}

// Pop removes and returns the oldest frame, blocking until one is
// available or ctx is done.
func (q *FrameQueue) Pop(ctx context.Context) (*Frame, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			f := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return f, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notEmpty:
		}
	}
}

// Len reports current occupancy.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped reports how many frames overflow has discarded so far.
func (q *FrameQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// TrimTo discards the oldest frames until at most n remain. Used before a
// ring replay so stale backlog does not delay fresh audio.
func (q *FrameQueue) TrimTo(n int) int {
	if n < 0 {
		n = 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	excess := len(q.items) - n
	if excess <= 0 {
		return 0
	}
	q.items = append(q.items[:0:0], q.items[excess:]...)
	return excess
}

// Prefill prepends frames ahead of the queued backlog, oldest first. When
// force is false the prefill is skipped if the queue already holds at
// least the minimum fill. If the result exceeds capacity the oldest
// frames are discarded. Returns true when frames were inserted.
func (q *FrameQueue) Prefill(frames []*Frame, force bool) bool {
	if len(frames) == 0 {
		return false
	}
	q.mu.Lock()
	if !force && len(q.items) >= q.minFill {
		q.mu.Unlock()
		return false
	}
	merged := make([]*Frame, 0, len(frames)+len(q.items))
	merged = append(merged, frames...)
	merged = append(merged, q.items...)
	if len(merged) > q.capacity {
		merged = merged[len(merged)-q.capacity:]
	}
	q.items = merged
	q.mu.Unlock()
	q.signal()
	return true
}

func (q *FrameQueue) signal() {
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}
