// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transcript

import "time"

// Event is one recognized utterance (or interim fragment) attributed to a
// participant.
type Event struct {
	ParticipantID string
	RoomID        string
	Text          string
	IsFinal       bool
	Confidence    float64
	Source        string // provider name, e.g. "google"
	Timestamp     time.Time
}

// Sink receives recognition output. Implementations must not block; slow
// consumers buffer on their side.
type Sink interface {
	OnTranscript(event Event)
}

// ChannelSink delivers events on a buffered channel, dropping when the
// consumer lags. Used by tests and lightweight embedders.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 64
	}
	return &ChannelSink{ch: make(chan Event, size)}
}

func (s *ChannelSink) OnTranscript(event Event) {
	select {
	case s.ch <- event:
	default:
	}
}

// Events exposes the delivery channel.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}
