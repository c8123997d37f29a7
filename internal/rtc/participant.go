// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_rtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	internal_recognizer "github.com/rapidaai/media-core/internal/recognizer"
	internal_sfu "github.com/rapidaai/media-core/internal/sfu"
)

// participant is the server side state of one connected client: its peer
// connection, the relay fed by its inbound audio, and the recognition
// pipeline consuming the capture tee. All of it lives and dies with the
// participant context.
type participant struct {
	id     string
	roomID string

	pc     *webrtc.PeerConnection
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	renegotiated bool
	relay        *internal_sfu.Relay
	recognizer   *internal_recognizer.Manager

	// outbound senders on this pc, keyed by the source participant whose
	// audio they carry
	senders map[string]*webrtc.RTPSender
}

func newParticipant(id, roomID string, pc *webrtc.PeerConnection) *participant {
	ctx, cancel := context.WithCancel(context.Background())
	return &participant{
		id:      id,
		roomID:  roomID,
		pc:      pc,
		ctx:     ctx,
		cancel:  cancel,
		senders: make(map[string]*webrtc.RTPSender),
	}
}

// markClosed flips the closed flag exactly once.
func (p *participant) markClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	return true
}

func (p *participant) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// getRelay returns the relay once the first inbound track has arrived,
// nil before that.
func (p *participant) getRelay() *internal_sfu.Relay {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.relay
}

// putSender records the outbound sender carrying srcID's audio. Returns
// false when a sender for that source already exists.
func (p *participant) putSender(srcID string, sender *webrtc.RTPSender) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.senders[srcID]; ok {
		return false
	}
	p.senders[srcID] = sender
	return true
}

func (p *participant) takeSender(srcID string) (*webrtc.RTPSender, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sender, ok := p.senders[srcID]
	if ok {
		delete(p.senders, srcID)
	}
	return sender, ok
}

func (p *participant) hasSender(srcID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.senders[srcID]
	return ok
}
