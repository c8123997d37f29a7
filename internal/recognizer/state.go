// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recognizer

// State of a participant's recognition pipeline.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateExpired
	StateFailed
	StateRestarting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateExpired:
		return "expired"
	case StateFailed:
		return "failed"
	case StateRestarting:
		return "restarting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event drives state transitions.
type Event int

const (
	EventStart Event = iota // begin streaming (initial or after restart)
	EventExpired            // provider closed at max stream duration
	EventFailed             // unexpected error or stall
	EventRetry              // restart scheduled
	EventExhausted          // retry budget spent
	EventStop               // external stop
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventExpired:
		return "expired"
	case EventFailed:
		return "failed"
	case EventRetry:
		return "retry"
	case EventExhausted:
		return "exhausted"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// transition returns the next state for (s, e) and whether the transition
// is legal. Stopped is terminal; EventStop is accepted from every state.
func transition(s State, e Event) (State, bool) {
	if e == EventStop {
		return StateStopped, true
	}
	switch s {
	case StateIdle:
		if e == EventStart {
			return StateStreaming, true
		}
	case StateStreaming:
		switch e {
		case EventExpired:
			return StateExpired, true
		case EventFailed:
			return StateFailed, true
		}
	case StateExpired:
		if e == EventRetry {
			return StateRestarting, true
		}
	case StateFailed:
		switch e {
		case EventRetry:
			return StateRestarting, true
		case EventExhausted:
			return StateStopped, true
		}
	case StateRestarting:
		if e == EventStart {
			return StateStreaming, true
		}
	case StateStopped:
	}
	return s, false
}
