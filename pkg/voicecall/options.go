package voicecall

import (
	"log/slog"
	"time"
)

// Timings groups every timing threshold in the session manager. Production
// code uses DefaultTimings; tests shrink individual windows to keep wall
// clocks short.
type Timings struct {
	// SpeakingStopConfirmation is how long a participant must stay
	// silent before a confirmed speaking stop.
	SpeakingStopConfirmation time.Duration

	// PhaseDebounce coalesces rapid detector-driven phase changes into
	// one UI-visible change. Speech-start transitions bypass it.
	PhaseDebounce time.Duration

	// StartupSuppression drops speaking events received this soon after
	// a participant connects.
	StartupSuppression time.Duration

	// ThinkingTimeout bounds the Thinking phase: if no agent response
	// materializes, the phase falls back to Listening.
	ThinkingTimeout time.Duration

	// Heartbeat is the interval of the microphone self-healing check.
	Heartbeat time.Duration

	// VideoPoll is the interval of the out-of-band video-display poll.
	VideoPoll time.Duration

	// ConnectBackoffBase is the first retry delay for transient
	// transport failures during connect; it doubles per attempt.
	ConnectBackoffBase time.Duration

	// ConnectBackoffMax caps the retry delay.
	ConnectBackoffMax time.Duration

	// Tick is the call-timer resolution.
	Tick time.Duration
}

// DefaultTimings returns the production thresholds.
func DefaultTimings() Timings {
	return Timings{
		SpeakingStopConfirmation: 700 * time.Millisecond,
		PhaseDebounce:            300 * time.Millisecond,
		StartupSuppression:       2 * time.Second,
		ThinkingTimeout:          30 * time.Second,
		Heartbeat:                5 * time.Second,
		VideoPoll:                2 * time.Second,
		ConnectBackoffBase:       time.Second,
		ConnectBackoffMax:        10 * time.Second,
		Tick:                     time.Second,
	}
}

// withDefaults fills zero fields from DefaultTimings.
func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.SpeakingStopConfirmation <= 0 {
		t.SpeakingStopConfirmation = d.SpeakingStopConfirmation
	}
	if t.PhaseDebounce <= 0 {
		t.PhaseDebounce = d.PhaseDebounce
	}
	if t.StartupSuppression <= 0 {
		t.StartupSuppression = d.StartupSuppression
	}
	if t.ThinkingTimeout <= 0 {
		t.ThinkingTimeout = d.ThinkingTimeout
	}
	if t.Heartbeat <= 0 {
		t.Heartbeat = d.Heartbeat
	}
	if t.VideoPoll <= 0 {
		t.VideoPoll = d.VideoPoll
	}
	if t.ConnectBackoffBase <= 0 {
		t.ConnectBackoffBase = d.ConnectBackoffBase
	}
	if t.ConnectBackoffMax <= 0 {
		t.ConnectBackoffMax = d.ConnectBackoffMax
	}
	if t.Tick <= 0 {
		t.Tick = d.Tick
	}
	return t
}

// Handlers are the caller-facing callbacks. The embedding application
// subscribes to these instead of transport internals. All callbacks are
// invoked from the session loop; they must not block.
type Handlers struct {
	OnConnected         func()
	OnDisconnected      func(reason EndReason)
	OnPhaseChanged      func(phase Phase)
	OnTranscription     func(entry TranscriptionEntry)
	OnCurrentTranscript func(speaker, display string)
	OnTimeWarning       func(remaining time.Duration)
	OnVideoDisplay      func(instr VideoInstruction)
}

// SessionConfig configures a CallSession.
type SessionConfig struct {
	// UserID and CreatorID identify the call parties; together with a
	// timestamp they derive the session ID.
	UserID    string
	CreatorID string

	// RoomName is the transport room identifier.
	RoomName string

	// AgentMarker overrides the substring used by the agent-detection
	// heuristic. Defaults to DefaultAgentMarker.
	AgentMarker string

	// Transport is the media connection. Required.
	Transport Transport

	// Backend is the server-side collaborator client. Required.
	Backend Backend

	// Microphone acquires capture streams. Required.
	Microphone CaptureDevice

	// Sinks creates playback sinks for subscribed remote tracks.
	// Optional; without it remote audio is not played back.
	Sinks SinkFactory

	// MaxConnectAttempts bounds transport open retries. Defaults to 4.
	MaxConnectAttempts int

	Timings  Timings
	Expiry   ExpiryPolicy
	Handlers Handlers

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}
