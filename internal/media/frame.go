// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_media

import (
	"time"

	"github.com/pion/rtp"
)

// Frame is one captured inbound media frame. Immutable after capture, so
// the relay loop, recognition queue and replay ring can all share the same
// instance without copying.
type Frame struct {
	Packet     *rtp.Packet // parsed packet, payload owned by this frame
	Payload    []byte      // codec payload (Opus), same backing array as Packet.Payload
	ReceivedAt time.Time
}

// NewFrame copies the wire bytes of pkt into a self-contained frame.
func NewFrame(pkt *rtp.Packet) *Frame {
	payload := make([]byte, len(pkt.Payload))
	copy(payload, pkt.Payload)

	owned := &rtp.Packet{
		Header:  pkt.Header,
		Payload: payload,
	}
	return &Frame{
		Packet:     owned,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
}

// FrameSource produces frames, typically backed by a remote WebRTC track.
type FrameSource interface {
	ReadFrame() (*Frame, error)
}
