// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recognizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	internal_audio "github.com/rapidaai/media-core/internal/audio"
	internal_media "github.com/rapidaai/media-core/internal/media"
	internal_transcript "github.com/rapidaai/media-core/internal/transcript"
	"github.com/rapidaai/media-core/pkg/commons"
)

// FrameDecoder turns one codec payload into LINEAR16 PCM at the
// recognition sample rate. Satisfied by the Opus decoder wrapper.
type FrameDecoder interface {
	Decode(payload []byte) ([]byte, error)
}

// ManagerConfig bundles the per-participant recognition settings.
type ManagerConfig struct {
	ParticipantID string
	RoomID        string
	Stream        StreamConfig

	ChunkBytes          int           // PCM bytes per provider send (~250ms)
	ConfidenceThreshold float64       // results below are discarded
	EmitInterim         bool          // forward non-final results
	MaxAttempts         int           // unexpected-restart budget per participant lifetime
	BackoffInitial      time.Duration // first restart delay
	BackoffMax          time.Duration // restart delay ceiling
	StallTimeout        time.Duration // unanswered-send watchdog
}

// ============================================================
// Recognition stream manager
// ============================================================

// Manager owns the recognition pipeline of one participant: it pops frames
// from the capture queue, decodes and chunks them, drives a provider
// session, and replaces that session whenever it ends. An expired session
// (provider max duration) is reopened seamlessly; an unexpected failure
// triggers a ring replay with bounded backoff. Stalled sessions (audio
// accepted, nothing returned) restart the same way but never consume the
// retry budget, which covers genuine failures over the whole participant
// lifetime.
type Manager struct {
	logger   commons.Logger
	provider Provider
	decoder  FrameDecoder
	queue    *internal_media.FrameQueue
	ring     *internal_media.FrameRing
	sink     internal_transcript.Sink
	cfg      ManagerConfig

	state      atomic.Int32
	generation atomic.Uint64
	attempts   int
	hadResults atomic.Bool // current session produced at least one result

	chunk []byte // partial chunk carried across expired restarts

	pendingMu    sync.Mutex
	pendingSince time.Time // first send with no answer yet; zero when idle

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewManager(
	logger commons.Logger,
	provider Provider,
	decoder FrameDecoder,
	queue *internal_media.FrameQueue,
	ring *internal_media.FrameRing,
	sink internal_transcript.Sink,
	cfg ManagerConfig,
) *Manager {
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = internal_audio.RecognitionConfig().BytesFor(250 * time.Millisecond)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 500 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 15 * time.Second
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = 30 * time.Second
	}
	m := &Manager{
		logger:   logger,
		provider: provider,
		decoder:  decoder,
		queue:    queue,
		ring:     ring,
		sink:     sink,
		cfg:      cfg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.state.Store(int32(StateIdle))
	return m
}

// State reports the current pipeline state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Generation reports how many sessions have been opened so far.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

func (m *Manager) apply(e Event) bool {
	for {
		cur := State(m.state.Load())
		next, ok := transition(cur, e)
		if !ok {
			return false
		}
		if m.state.CompareAndSwap(int32(cur), int32(next)) {
			m.logger.Debugw("recognition state change",
				"participant", m.cfg.ParticipantID, "from", cur.String(),
				"event", e.String(), "to", next.String())
			return true
		}
	}
}

// Run drives the session lifecycle until ctx is cancelled, Stop is called
// or the retry budget is exhausted. Blocking; one goroutine per
// participant.
func (m *Manager) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer close(m.done)
	defer cancel()
	go func() {
		select {
		case <-m.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// warm start from the replay ring: only when the queue has not yet
	// accumulated live audio of its own
	m.queue.Prefill(m.ring.Snapshot(), false)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.BackoffInitial
	bo.MaxInterval = m.cfg.BackoffMax
	bo.MaxElapsedTime = 0
	bo.RandomizationFactor = 0

	if !m.apply(EventStart) {
		return
	}

	for {
		m.generation.Add(1)
		err := m.streamOnce(ctx)

		if ctx.Err() != nil || m.State() == StateStopped {
			m.apply(EventStop)
			return
		}

		// a session that produced results ends any failure streak; later
		// failures start the delay ladder from the bottom again
		if m.hadResults.Load() {
			bo.Reset()
		}

		if errors.Is(err, ErrSessionExpired) {
			// expected end of stream: reopen immediately, keep the queue
			// and partial chunk, no replay
			m.logger.Infow("recognition session expired, reopening",
				"participant", m.cfg.ParticipantID, "generation", m.generation.Load())
			m.apply(EventExpired)
			m.apply(EventRetry)
			m.apply(EventStart)
			continue
		}

		m.apply(EventFailed)
		if errors.Is(err, ErrSessionStalled) {
			// an unanswered session is indistinguishable from a participant
			// who is not speaking; only genuine provider failures consume
			// the retry budget
			m.logger.Warnw("recognition session stalled, restarting with replay",
				"participant", m.cfg.ParticipantID, "generation", m.generation.Load())
		} else {
			m.attempts++
			if m.attempts > m.cfg.MaxAttempts {
				m.logger.Errorw("recognition retry budget exhausted, stopping pipeline",
					"participant", m.cfg.ParticipantID, "attempts", m.attempts-1, "error", err)
				m.apply(EventExhausted)
				return
			}
			m.logger.Warnw("recognition session failed, restarting with replay",
				"participant", m.cfg.ParticipantID, "attempt", m.attempts,
				"generation", m.generation.Load(), "error", err)
		}
		m.apply(EventRetry)

		// the ring holds the freshest audio; drop stale backlog beyond it,
		// replay the window, and discard the partial chunk since the ring
		// already covers those samples
		m.queue.TrimTo(m.ring.Capacity())
		m.queue.Prefill(m.ring.Snapshot(), true)
		m.chunk = m.chunk[:0]

		select {
		case <-ctx.Done():
			m.apply(EventStop)
			return
		case <-time.After(bo.NextBackOff()):
		}

		if !m.apply(EventStart) {
			return
		}
	}
}

// Stop tears the pipeline down from any state. Idempotent; safe before or
// after Run returns.
func (m *Manager) Stop() {
	m.closeOnce.Do(func() {
		m.apply(EventStop)
		close(m.stop)
	})
}

// Done is closed when Run has returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// streamOnce runs a single provider session to completion. The returned
// error classifies the ending: ErrSessionExpired for a provider max
// duration close, anything else is unexpected.
func (m *Manager) streamOnce(ctx context.Context) error {
	session, err := m.provider.OpenSession(ctx, m.cfg.Stream)
	if err != nil {
		return err
	}
	defer session.Close()

	sessionID := uuid.NewString()
	m.logger.Infow("recognition session opened",
		"participant", m.cfg.ParticipantID, "session", sessionID,
		"provider", m.provider.Name(), "generation", m.generation.Load())

	m.hadResults.Store(false)
	m.clearPending()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(sessionCtx)

	// Recv has no context; closing the session is what unblocks it
	go func() {
		<-gctx.Done()
		session.Close()
	}()

	g.Go(func() error {
		return m.sendLoop(gctx, session)
	})
	g.Go(func() error {
		return m.recvLoop(gctx, session)
	})
	g.Go(func() error {
		return m.watchStall(gctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// sendLoop pops frames, decodes them, and ships gain-normalized ~chunk
// sized PCM to the session.
func (m *Manager) sendLoop(ctx context.Context, session Session) error {
	for {
		frame, err := m.queue.Pop(ctx)
		if err != nil {
			return err
		}

		pcm, err := m.decoder.Decode(frame.Payload)
		if err != nil {
			// a corrupt payload costs one frame, not the session
			m.logger.Debugw("frame decode failed, skipping",
				"participant", m.cfg.ParticipantID, "error", err)
			continue
		}
		m.chunk = append(m.chunk, pcm...)

		for len(m.chunk) >= m.cfg.ChunkBytes {
			out := make([]byte, m.cfg.ChunkBytes)
			copy(out, m.chunk[:m.cfg.ChunkBytes])
			m.chunk = append(m.chunk[:0], m.chunk[m.cfg.ChunkBytes:]...)

			internal_audio.NormalizeGain(out)
			if err := session.Send(ctx, out); err != nil {
				return err
			}
			m.markPending()
		}
	}
}

// recvLoop forwards provider results to the sink, discarding anything
// below the confidence threshold.
func (m *Manager) recvLoop(ctx context.Context, session Session) error {
	for {
		result, err := session.Recv()
		if err != nil {
			return err
		}
		m.hadResults.Store(true)
		m.clearPending()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if result.Text == "" {
			continue
		}
		// interim hypotheses carry no settled confidence (google reports 0
		// until the final), so the threshold gates finals only
		if result.IsFinal && result.Confidence < m.cfg.ConfidenceThreshold {
			m.logger.Debugw("low confidence result discarded",
				"participant", m.cfg.ParticipantID,
				"confidence", result.Confidence, "final", result.IsFinal)
			continue
		}
		if !result.IsFinal && !m.cfg.EmitInterim {
			continue
		}

		m.sink.OnTranscript(internal_transcript.Event{
			ParticipantID: m.cfg.ParticipantID,
			RoomID:        m.cfg.RoomID,
			Text:          result.Text,
			IsFinal:       result.IsFinal,
			Confidence:    result.Confidence,
			Source:        m.provider.Name(),
			Timestamp:     time.Now(),
		})
	}
}

// watchStall fails the session when audio has been sent but nothing came
// back within the stall timeout.
func (m *Manager) watchStall(ctx context.Context) error {
	interval := m.cfg.StallTimeout / 4
	if interval > time.Second {
		interval = time.Second
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.pendingMu.Lock()
			pending := m.pendingSince
			m.pendingMu.Unlock()
			if !pending.IsZero() && time.Since(pending) > m.cfg.StallTimeout {
				return ErrSessionStalled
			}
		}
	}
}

func (m *Manager) markPending() {
	m.pendingMu.Lock()
	if m.pendingSince.IsZero() {
		m.pendingSince = time.Now()
	}
	m.pendingMu.Unlock()
}

func (m *Manager) clearPending() {
	m.pendingMu.Lock()
	m.pendingSince = time.Time{}
	m.pendingMu.Unlock()
}
