// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name  string
		from  State
		event Event
		to    State
		ok    bool
	}{
		{"idle starts streaming", StateIdle, EventStart, StateStreaming, true},
		{"streaming expires", StateStreaming, EventExpired, StateExpired, true},
		{"streaming fails", StateStreaming, EventFailed, StateFailed, true},
		{"expired schedules retry", StateExpired, EventRetry, StateRestarting, true},
		{"failed schedules retry", StateFailed, EventRetry, StateRestarting, true},
		{"failed exhausts budget", StateFailed, EventExhausted, StateStopped, true},
		{"restarting resumes streaming", StateRestarting, EventStart, StateStreaming, true},

		{"idle cannot expire", StateIdle, EventExpired, StateIdle, false},
		{"idle cannot retry", StateIdle, EventRetry, StateIdle, false},
		{"streaming cannot start again", StateStreaming, EventStart, StateStreaming, false},
		{"streaming cannot exhaust", StateStreaming, EventExhausted, StateStreaming, false},
		{"expired cannot fail", StateExpired, EventFailed, StateExpired, false},
		{"restarting cannot expire", StateRestarting, EventExpired, StateRestarting, false},
		{"stopped is terminal for start", StateStopped, EventStart, StateStopped, false},
		{"stopped is terminal for retry", StateStopped, EventRetry, StateStopped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := transition(tt.from, tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.to, next)
		})
	}
}

func TestTransitionStopFromEveryState(t *testing.T) {
	for _, s := range []State{StateIdle, StateStreaming, StateExpired, StateFailed, StateRestarting, StateStopped} {
		next, ok := transition(s, EventStop)
		assert.True(t, ok, s.String())
		assert.Equal(t, StateStopped, next, s.String())
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "expired", EventExpired.String())
}
