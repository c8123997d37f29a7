// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_rtc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	internal_audio "github.com/rapidaai/media-core/internal/audio"
	internal_audio_codec "github.com/rapidaai/media-core/internal/audio/codec"
	"github.com/rapidaai/media-core/internal/config"
	internal_media "github.com/rapidaai/media-core/internal/media"
	internal_recognizer "github.com/rapidaai/media-core/internal/recognizer"
	internal_sfu "github.com/rapidaai/media-core/internal/sfu"
	internal_transcript "github.com/rapidaai/media-core/internal/transcript"
	"github.com/rapidaai/media-core/pkg/commons"
)

// ============================================================
// Connection manager
// ============================================================

// Manager owns every participant peer connection. Signaling stays outside:
// offers and remote candidates come in through HandleOffer and
// AddICECandidate, local candidates and renegotiation prompts go out
// through Callbacks.
type Manager struct {
	logger    commons.Logger
	cfg       *config.MediaConfig
	provider  internal_recognizer.Provider
	sink      internal_transcript.Sink
	rooms     RoomRegistry
	callbacks Callbacks

	mu           sync.RWMutex
	participants map[string]*participant
}

// NewManager builds a connection manager. provider may be nil, in which
// case inbound audio is relayed but never transcribed.
func NewManager(
	logger commons.Logger,
	cfg *config.MediaConfig,
	provider internal_recognizer.Provider,
	sink internal_transcript.Sink,
	rooms RoomRegistry,
	callbacks Callbacks,
) *Manager {
	return &Manager{
		logger:       logger,
		cfg:          cfg,
		provider:     provider,
		sink:         sink,
		rooms:        rooms,
		callbacks:    callbacks,
		participants: make(map[string]*participant),
	}
}

// Has reports whether participantID currently owns a peer connection.
func (m *Manager) Has(participantID string) bool {
	return m.get(participantID) != nil
}

func (m *Manager) get(participantID string) *participant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.participants[participantID]
}

// opusCapability is the single audio codec negotiated on every connection.
func opusCapability() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   internal_audio.OpusSampleRate,
		Channels:    internal_audio.OpusChannels,
		SDPFmtpLine: internal_audio.OpusSDPFmtpLine,
	}
}

func (m *Manager) newPeerConnection() (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: opusCapability(),
		PayloadType:        internal_audio.OpusPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus codec: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	pcConfig := webrtc.Configuration{}
	if len(m.cfg.StunServers) > 0 {
		pcConfig.ICEServers = append(pcConfig.ICEServers, webrtc.ICEServer{
			URLs: m.cfg.StunServers,
		})
	}
	if m.cfg.TurnServer != "" && m.cfg.TurnUsername != "" && m.cfg.TurnPassword != "" {
		pcConfig.ICEServers = append(pcConfig.ICEServers, webrtc.ICEServer{
			URLs:       []string{m.cfg.TurnServer},
			Username:   m.cfg.TurnUsername,
			Credential: m.cfg.TurnPassword,
		})
	}
	if m.cfg.ICETransportPolicy == "relay" {
		pcConfig.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}

	return api.NewPeerConnection(pcConfig)
}

// CreateConnection allocates the peer connection and event wiring for a
// new participant. Fails when the participant already has one.
func (m *Manager) CreateConnection(participantID, roomID string) (*participant, error) {
	if m.Has(participantID) {
		return nil, fmt.Errorf("participant %s already connected", participantID)
	}

	pc, err := m.newPeerConnection()
	if err != nil {
		return nil, err
	}
	p := newParticipant(participantID, roomID, pc)

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if m.callbacks.OnLocalCandidate == nil {
			return
		}
		init := c.ToJSON()
		cand := ICECandidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			cand.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			cand.SDPMLineIndex = int(*init.SDPMLineIndex)
		}
		if init.UsernameFragment != nil {
			cand.UsernameFragment = *init.UsernameFragment
		}
		m.callbacks.OnLocalCandidate(participantID, cand)
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		m.logger.Debugw("ice connection state",
			"participant", participantID, "state", state.String())
		if state == webrtc.ICEConnectionStateFailed {
			m.logger.Warnw("ice failed, tearing down participant", "participant", participantID)
			go m.Close(participantID)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			m.logger.Warnw("ignoring non audio track",
				"participant", participantID, "kind", track.Kind().String())
			return
		}
		m.handleTrack(p, track)
	})

	m.mu.Lock()
	if _, exists := m.participants[participantID]; exists {
		m.mu.Unlock()
		pc.Close()
		return nil, fmt.Errorf("participant %s already connected", participantID)
	}
	m.participants[participantID] = p
	m.mu.Unlock()
	m.logger.Infow("participant connection created",
		"participant", participantID, "room", roomID)
	return p, nil
}

// HandleOffer applies a client offer and returns the answer SDP. The first
// offer establishes the connection and attaches outbound legs for audio
// already flowing in the room; later offers renegotiate in place and never
// add tracks.
func (m *Manager) HandleOffer(participantID, roomID, offerSDP string) (string, error) {
	if p := m.get(participantID); p != nil {
		return m.renegotiate(p, offerSDP)
	}

	p, err := m.CreateConnection(participantID, roomID)
	if err != nil {
		return "", err
	}

	for _, peerID := range m.rooms.GetPeersInRoom(roomID) {
		if peerID == participantID {
			continue
		}
		peer := m.get(peerID)
		if peer == nil || peer.getRelay() == nil {
			continue
		}
		if err := m.subscribe(peer, p); err != nil {
			m.logger.Warnw("could not attach peer audio",
				"participant", participantID, "source", peerID, "error", err)
		}
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

func (m *Manager) renegotiate(p *participant, offerSDP string) (string, error) {
	// an offer identical to the one already applied changes nothing; the
	// standing answer is still valid
	if p.pc.SignalingState() == webrtc.SignalingStateStable {
		if rd := p.pc.RemoteDescription(); rd != nil && rd.SDP == offerSDP {
			if ld := p.pc.LocalDescription(); ld != nil {
				return ld.SDP, nil
			}
		}
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		m.logger.Errorw("renegotiation answer failed",
			"participant", p.id, "error", err)
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		m.logger.Errorw("renegotiation answer failed",
			"participant", p.id, "error", err)
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

// AddICECandidate feeds a client candidate into the participant's
// connection.
func (m *Manager) AddICECandidate(participantID string, cand ICECandidate) error {
	p := m.get(participantID)
	if p == nil {
		return fmt.Errorf("unknown participant %s", participantID)
	}
	mid := cand.SDPMid
	idx := uint16(cand.SDPMLineIndex)
	init := webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
	if cand.UsernameFragment != "" {
		ufrag := cand.UsernameFragment
		init.UsernameFragment = &ufrag
	}
	return p.pc.AddICECandidate(init)
}

// Close tears one participant down: recognition stops, every peer drops
// the outbound leg carrying this audio, and the peer connection closes.
// Unknown or already closed participants are a no-op.
func (m *Manager) Close(participantID string) error {
	m.mu.Lock()
	p, ok := m.participants[participantID]
	if ok {
		delete(m.participants, participantID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if !p.markClosed() {
		return nil
	}
	p.cancel()

	p.mu.Lock()
	recognizer := p.recognizer
	p.mu.Unlock()
	if recognizer != nil {
		recognizer.Stop()
	}

	for _, peerID := range m.rooms.GetPeersInRoom(p.roomID) {
		if peerID == participantID {
			continue
		}
		peer := m.get(peerID)
		if peer == nil {
			continue
		}
		if relay := peer.getRelay(); relay != nil {
			relay.RemoveSubscriber(participantID)
		}
		if sender, ok := peer.takeSender(participantID); ok {
			if err := peer.pc.RemoveTrack(sender); err != nil {
				m.logger.Debugw("remove track failed",
					"participant", peerID, "source", participantID, "error", err)
			}
		}
	}

	if err := p.pc.Close(); err != nil {
		m.logger.Warnw("peer connection close failed",
			"participant", participantID, "error", err)
	}
	m.logger.Infow("participant closed", "participant", participantID, "room", p.roomID)
	return nil
}

// ============================================================
// Track wiring
// ============================================================

// handleTrack wires the participant's first inbound audio track into the
// relay and recognition pipeline, subscribes the rest of the room, and
// prompts the signaling layer to renegotiate the peers that just gained an
// outbound leg.
func (m *Manager) handleTrack(p *participant, track *webrtc.TrackRemote) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.relay != nil {
		p.mu.Unlock()
		m.logger.Warnw("ignoring additional inbound track",
			"participant", p.id, "track", track.ID())
		return
	}

	queue := internal_media.NewFrameQueue(m.cfg.QueueCapacity, m.cfg.MinFillFrames)
	ring := internal_media.NewFrameRing(m.cfg.RingCapacity)
	tee := internal_media.NewFrameTee(m.logger, &remoteTrackSource{track: track}, queue, ring)
	p.relay = internal_sfu.NewRelay(m.logger, p.id, tee)

	if m.provider != nil {
		decoder, err := internal_audio_codec.NewOpusDecoder(internal_audio.RecognitionSampleRate)
		if err != nil {
			m.logger.Errorw("opus decoder init failed, recognition disabled",
				"participant", p.id, "error", err)
		} else {
			p.recognizer = internal_recognizer.NewManager(
				m.logger, m.provider, decoder, queue, ring, m.sink,
				m.recognitionConfig(p),
			)
		}
	}
	relay := p.relay
	recognizer := p.recognizer
	firstTrack := !p.renegotiated
	p.renegotiated = true
	p.mu.Unlock()

	m.logger.Infow("inbound audio track",
		"participant", p.id, "room", p.roomID, "codec", track.Codec().MimeType)

	go relay.Run(p.ctx)
	if recognizer != nil {
		go recognizer.Run(p.ctx)
	}

	for _, peerID := range m.rooms.GetPeersInRoom(p.roomID) {
		if peerID == p.id {
			continue
		}
		peer := m.get(peerID)
		if peer == nil {
			continue
		}
		if err := m.subscribe(p, peer); err != nil {
			m.logger.Warnw("could not subscribe peer",
				"participant", peerID, "source", p.id, "error", err)
		}
	}

	if firstTrack && m.callbacks.OnRenegotiationNeeded != nil {
		m.callbacks.OnRenegotiationNeeded(p.id, p.roomID, track.Kind().String())
	}
}

// subscribe adds one outbound leg carrying src's audio onto dst's
// connection and registers it with src's relay.
func (m *Manager) subscribe(src, dst *participant) error {
	if dst.isClosed() || dst.hasSender(src.id) {
		return nil
	}
	relay := src.getRelay()
	if relay == nil {
		return nil
	}

	track, err := webrtc.NewTrackLocalStaticRTP(opusCapability(), "audio-"+src.id, "relay-"+src.id)
	if err != nil {
		return fmt.Errorf("out track: %w", err)
	}
	sender, err := dst.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	if !dst.putSender(src.id, sender) {
		dst.pc.RemoveTrack(sender)
		return nil
	}

	// the sender's RTCP stream must be drained or the interceptors stall
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	relay.AddSubscriber(dst.id, internal_sfu.NewOutTrack(track))
	m.logger.Debugw("subscribed", "source", src.id, "destination", dst.id)
	return nil
}

func (m *Manager) recognitionConfig(p *participant) internal_recognizer.ManagerConfig {
	recognitionFormat := internal_audio.RecognitionConfig()
	return internal_recognizer.ManagerConfig{
		ParticipantID:       p.id,
		RoomID:              p.roomID,
		Stream:              m.streamConfig(),
		ChunkBytes:          recognitionFormat.BytesFor(time.Duration(m.cfg.ChunkDurationMs) * time.Millisecond),
		ConfidenceThreshold: m.cfg.ConfidenceThreshold,
		EmitInterim:         m.cfg.InterimResults,
		MaxAttempts:         m.cfg.MaxRestartAttempts,
		BackoffInitial:      time.Duration(m.cfg.RestartBackoffMs) * time.Millisecond,
		BackoffMax:          time.Duration(m.cfg.RestartBackoffMax) * time.Millisecond,
		StallTimeout:        time.Duration(m.cfg.StallTimeoutSec) * time.Second,
	}
}

func (m *Manager) streamConfig() internal_recognizer.StreamConfig {
	return internal_recognizer.StreamConfig{
		Languages:      strings.Split(m.cfg.ListenLanguage, commons.SEPARATOR),
		Model:          m.cfg.ListenModel,
		SampleRate:     internal_audio.RecognitionSampleRate,
		Channels:       internal_audio.RecognitionChannels,
		Punctuation:    true,
		InterimResults: m.cfg.InterimResults,
	}
}
