// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_media

import (
	"github.com/rapidaai/media-core/pkg/commons"
)

// FrameTee sits between a frame source and the relay loop. Every frame
// read is offered to the recognition queue and recorded in the replay
// ring before being handed to the caller. Queue pressure never delays the
// returned frame.
type FrameTee struct {
	logger commons.Logger
	source FrameSource
	queue  *FrameQueue
	ring   *FrameRing

	lastDropLogged uint64
}

// NewFrameTee wires a source to its recognition queue and replay ring.
func NewFrameTee(logger commons.Logger, source FrameSource, queue *FrameQueue, ring *FrameRing) *FrameTee {
	return &FrameTee{
		logger: logger,
		source: source,
		queue:  queue,
		ring:   ring,
	}
}

// Recv reads one frame, fans it out to the recognition side, and returns
// it for relay. Errors come straight from the source.
func (t *FrameTee) Recv() (*Frame, error) {
	frame, err := t.source.ReadFrame()
	if err != nil {
		return nil, err
	}

	if !t.queue.TryPush(frame) {
		dropped := t.queue.Dropped()
		// log once per 100 drops to keep the hot path quiet
		if dropped-t.lastDropLogged >= 100 || t.lastDropLogged == 0 {
			t.lastDropLogged = dropped
			t.logger.Warnw("recognition queue overflow, dropping frames", "dropped", dropped)
		}
	}
	t.ring.Append(frame)

	return frame, nil
}

// Queue exposes the recognition queue fed by this tee.
func (t *FrameTee) Queue() *FrameQueue {
	return t.queue
}

// Ring exposes the replay ring fed by this tee.
func (t *FrameTee) Ring() *FrameRing {
	return t.ring
}
