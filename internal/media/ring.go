// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_media

import "sync"

// FrameRing keeps the most recent frames of a participant for replay into
// a replacement recognition session. Fixed capacity, oldest overwritten.
// Single writer (the tee); snapshots may be taken from any goroutine.
type FrameRing struct {
	mu    sync.Mutex
	buf   []*Frame
	head  int // next write position
	count int
}

// NewFrameRing creates a ring holding up to capacity frames.
func NewFrameRing(capacity int) *FrameRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &FrameRing{buf: make([]*Frame, capacity)}
}

// Append records a frame, overwriting the oldest when full.
func (r *FrameRing) Append(f *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head] = f
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Snapshot returns the buffered frames ordered oldest to newest.
func (r *FrameRing) Snapshot() []*Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Frame, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Len reports the number of buffered frames.
func (r *FrameRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Capacity reports the fixed ring size.
func (r *FrameRing) Capacity() int {
	return len(r.buf)
}
