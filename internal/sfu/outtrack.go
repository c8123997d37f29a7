// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_sfu

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

// RTPWriter is the destination side of a subscription. Satisfied by
// *webrtc.TrackLocalStaticRTP.
type RTPWriter interface {
	WriteRTP(p *rtp.Packet) error
}

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

// OutTrack is a single destination subscription of a relayed source. Each
// subscriber gets its own out track so a failure affects only that leg.
type OutTrack struct {
	Track RTPWriter
	state atomic.Int32 // zero value is TrackStateOk
}

func NewOutTrack(track RTPWriter) *OutTrack {
	return &OutTrack{Track: track}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkOk() {
	ot.state.Store(int32(TrackStateOk))
}

func (ot *OutTrack) MarkMuted() {
	ot.state.Store(int32(TrackStateMuted))
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
