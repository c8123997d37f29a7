// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_sfu

import (
	"context"
	"sync"

	"github.com/pion/rtp"

	internal_media "github.com/rapidaai/media-core/internal/media"
	"github.com/rapidaai/media-core/pkg/commons"
)

// Relay fans one participant's inbound audio out to every subscribed
// destination. Frames come through the capture tee, so the recognition
// side sees them before forwarding; payloads are never modified.
type Relay struct {
	logger        commons.Logger
	participantID string
	tee           *internal_media.FrameTee

	mu        sync.RWMutex
	outTracks map[string]*OutTrack
}

func NewRelay(logger commons.Logger, participantID string, tee *internal_media.FrameTee) *Relay {
	return &Relay{
		logger:        logger,
		participantID: participantID,
		tee:           tee,
		outTracks:     make(map[string]*OutTrack),
	}
}

// Run reads frames until ctx is cancelled or the source ends. Blocking;
// callers run it on the participant's relay goroutine.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("relay stopped", "participant", r.participantID)
			r.markAllDelete()
			return
		default:
		}

		frame, err := r.tee.Recv()
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warnw("relay source ended", "participant", r.participantID, "error", err)
			}
			r.markAllDelete()
			return
		}
		r.forward(frame.Packet)
	}
}

func (r *Relay) forward(pkt *rtp.Packet) {
	r.mu.RLock()
	snapshot := make(map[string]*OutTrack, len(r.outTracks))
	for id, ot := range r.outTracks {
		snapshot[id] = ot
	}
	r.mu.RUnlock()

	dirty := make([]string, 0)
	for dstID, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, dstID)
		case TrackStateMuted:
		case TrackStateOk:
			if err := ot.Track.WriteRTP(pkt); err != nil {
				r.logger.Errorw("relay write failed, dropping subscriber",
					"participant", r.participantID, "destination", dstID, "error", err)
				ot.MarkDelete()
				dirty = append(dirty, dstID)
			}
		}
	}

	// cleanup happens outside the read lock
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range dirty {
		delete(r.outTracks, id)
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outTracks {
		ot.MarkDelete()
	}
}

// AddSubscriber registers (or replaces) the out track feeding dstID.
func (r *Relay) AddSubscriber(dstID string, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[dstID] = ot
}

// RemoveSubscriber marks dstID's out track for removal.
func (r *Relay) RemoveSubscriber(dstID string) {
	r.mu.RLock()
	ot, ok := r.outTracks[dstID]
	r.mu.RUnlock()
	if ok {
		ot.MarkDelete()
	}
}

// Subscribers returns the IDs of currently registered destinations.
func (r *Relay) Subscribers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.outTracks))
	for id := range r.outTracks {
		out = append(out, id)
	}
	return out
}

// Tee exposes the capture tee behind this relay.
func (r *Relay) Tee() *internal_media.FrameTee {
	return r.tee
}
