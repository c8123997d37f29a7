// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recognizer

import (
	"context"
	"errors"
)

// ErrSessionExpired reports that the provider ended the stream because it
// reached its maximum duration. Expected during long calls; the manager
// reopens without replaying buffered audio.
var ErrSessionExpired = errors.New("recognition session expired")

// ErrSessionStalled reports that a session stopped answering: audio was
// sent but no result, error or expiry arrived within the stall timeout.
// Treated as an unexpected failure.
var ErrSessionStalled = errors.New("recognition session stalled")

// Result is one recognition hypothesis from the provider.
type Result struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// Session is one live provider stream. Send and Recv are driven from
// separate goroutines; Close is idempotent and unblocks both.
type Session interface {
	Send(ctx context.Context, pcm []byte) error
	Recv() (Result, error)
	Close() error
}

// StreamConfig carries the per-participant listen settings handed to the
// provider when a session opens.
type StreamConfig struct {
	Languages           []string
	Model               string
	SampleRate          int
	Channels            int
	Punctuation         bool
	InterimResults      bool
	VoiceActivityEvents bool
}

// Provider opens recognition sessions. Implementations live in the google
// and deepgram sub-packages.
type Provider interface {
	Name() string
	OpenSession(ctx context.Context, cfg StreamConfig) (Session, error)
}
