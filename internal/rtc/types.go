// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_rtc

import (
	internal_media "github.com/rapidaai/media-core/internal/media"
	"github.com/pion/webrtc/v4"
)

// ICECandidate represents an ICE candidate for signaling
type ICECandidate struct {
	Candidate        string
	SDPMid           string
	SDPMLineIndex    int
	UsernameFragment string
}

// Callbacks are the outbound notifications the signaling layer must
// implement. Injected at construction; the manager never knows the
// transport behind them.
type Callbacks struct {
	// OnLocalCandidate forwards a server side ICE candidate to the client.
	OnLocalCandidate func(participantID string, candidate ICECandidate)
	// OnRenegotiationNeeded fires once per participant's first received
	// track; the signaling layer prompts the room's clients to re-offer.
	OnRenegotiationNeeded func(participantID, roomID, trackKind string)
}

// RoomRegistry enumerates room membership. Read-only here; mutation is
// the registry owner's responsibility.
type RoomRegistry interface {
	GetPeersInRoom(roomID string) []string
}

// remoteTrackSource adapts a pion remote track to the frame source the
// tee consumes.
type remoteTrackSource struct {
	track *webrtc.TrackRemote
}

func (s *remoteTrackSource) ReadFrame() (*internal_media.Frame, error) {
	pkt, _, err := s.track.ReadRTP()
	if err != nil {
		return nil, err
	}
	return internal_media.NewFrame(pkt), nil
}
