package voicecall

// Phase is the user-facing state of a call. It is derived from low-level
// transport and speaking events and changes at most a few times per second
// thanks to debouncing.
type Phase int

const (
	// PhaseConnecting is the initial phase, held until the transport
	// reports a live connection.
	PhaseConnecting Phase = iota

	// PhaseListening is the steady state: the agent is idle and ready,
	// or the user is speaking.
	PhaseListening

	// PhaseTalking means the agent is speaking.
	PhaseTalking

	// PhaseThinking means the user stopped speaking and the agent has
	// not yet responded.
	PhaseThinking

	// PhaseEnded is terminal. No further phase changes are accepted.
	PhaseEnded
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseListening:
		return "listening"
	case PhaseTalking:
		return "talking"
	case PhaseThinking:
		return "thinking"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EndReason describes why a call terminated. It is reported both to the
// caller via Handlers.OnDisconnected and to the backend in the session-end
// notification.
type EndReason string

const (
	// EndReasonUserHangup is an explicit hangup by the user.
	EndReasonUserHangup EndReason = "user_hangup"

	// EndReasonMaxDuration means the expiry policy terminated the call.
	EndReasonMaxDuration EndReason = "max_duration"

	// EndReasonConnectionLost means the transport disconnected and its
	// own reconnection policy was exhausted.
	EndReasonConnectionLost EndReason = "connection_lost"

	// EndReasonError covers any other fatal error.
	EndReasonError EndReason = "error"
)
