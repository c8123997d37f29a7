// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_sfu

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_media "github.com/rapidaai/media-core/internal/media"
	"github.com/rapidaai/media-core/pkg/commons"
)

func newTestLogger() commons.Logger {
	l, _ := commons.NewApplicationLogger()
	return l
}

type scriptedSource struct {
	frames []*internal_media.Frame
	pos    int
}

func (s *scriptedSource) ReadFrame() (*internal_media.Frame, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

type captureWriter struct {
	mu      sync.Mutex
	packets []*rtp.Packet
	failAt  int // 1-based write index that starts failing; 0 disables
	writes  int
}

func (w *captureWriter) WriteRTP(p *rtp.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	if w.failAt > 0 && w.writes >= w.failAt {
		return errors.New("subscriber gone")
	}
	w.packets = append(w.packets, p)
	return nil
}

func (w *captureWriter) Packets() []*rtp.Packet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*rtp.Packet(nil), w.packets...)
}

func sourceFrames(n int) []*internal_media.Frame {
	frames := make([]*internal_media.Frame, n)
	for i := range frames {
		frames[i] = internal_media.NewFrame(&rtp.Packet{
			Header:  rtp.Header{SequenceNumber: uint16(i + 1), Timestamp: uint32(i) * 960},
			Payload: []byte{0xAA, byte(i)},
		})
	}
	return frames
}

func newTestRelay(frames []*internal_media.Frame) *Relay {
	logger := newTestLogger()
	tee := internal_media.NewFrameTee(logger,
		&scriptedSource{frames: frames},
		internal_media.NewFrameQueue(1000, 1),
		internal_media.NewFrameRing(75))
	return NewRelay(logger, "participant-a", tee)
}

func TestRelayForwardsToAllSubscribersUnmodified(t *testing.T) {
	frames := sourceFrames(10)
	relay := newTestRelay(frames)

	w1 := &captureWriter{}
	w2 := &captureWriter{}
	w3 := &captureWriter{}
	relay.AddSubscriber("b", NewOutTrack(w1))
	relay.AddSubscriber("c", NewOutTrack(w2))
	relay.AddSubscriber("d", NewOutTrack(w3))

	relay.Run(context.Background()) // returns at EOF

	for _, w := range []*captureWriter{w1, w2, w3} {
		got := w.Packets()
		require.Len(t, got, 10)
		for i, pkt := range got {
			assert.Equal(t, frames[i].Packet.SequenceNumber, pkt.SequenceNumber)
			assert.Equal(t, frames[i].Payload, pkt.Payload)
		}
	}
}

func TestRelayIsolatesFailedSubscriber(t *testing.T) {
	relay := newTestRelay(sourceFrames(10))

	healthy := &captureWriter{}
	broken := &captureWriter{failAt: 4}
	relay.AddSubscriber("healthy", NewOutTrack(healthy))
	relay.AddSubscriber("broken", NewOutTrack(broken))

	relay.Run(context.Background())

	assert.Len(t, healthy.Packets(), 10)
	assert.Len(t, broken.Packets(), 3)
	assert.Equal(t, []string{"healthy"}, relay.Subscribers())
}

func TestRelayMutedSubscriberReceivesNothing(t *testing.T) {
	relay := newTestRelay(sourceFrames(5))

	muted := &captureWriter{}
	ot := NewOutTrack(muted)
	ot.MarkMuted()
	relay.AddSubscriber("muted", ot)

	relay.Run(context.Background())
	assert.Empty(t, muted.Packets())

	// still subscribed; mute is reversible
	assert.Contains(t, relay.Subscribers(), "muted")
}

func TestRelayRemoveSubscriber(t *testing.T) {
	relay := newTestRelay(sourceFrames(5))
	w := &captureWriter{}
	relay.AddSubscriber("b", NewOutTrack(w))
	relay.RemoveSubscriber("b")

	relay.Run(context.Background())
	assert.Empty(t, w.Packets())
	assert.Empty(t, relay.Subscribers())
}

func TestRelayStopsOnContextCancel(t *testing.T) {
	logger := newTestLogger()
	blocking := &blockingSource{release: make(chan struct{})}
	tee := internal_media.NewFrameTee(logger, blocking,
		internal_media.NewFrameQueue(10, 1), internal_media.NewFrameRing(10))
	relay := NewRelay(logger, "participant-a", tee)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	cancel()
	close(blocking.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

type blockingSource struct {
	release chan struct{}
}

func (b *blockingSource) ReadFrame() (*internal_media.Frame, error) {
	<-b.release
	return nil, io.EOF
}

func TestRelayFeedsRecognitionTee(t *testing.T) {
	frames := sourceFrames(8)
	relay := newTestRelay(frames)
	relay.Run(context.Background())

	// every forwarded frame is also visible to the recognition side
	assert.Equal(t, 8, relay.Tee().Queue().Len())
	assert.Equal(t, 8, relay.Tee().Ring().Len())
}
