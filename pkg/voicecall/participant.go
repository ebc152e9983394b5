package voicecall

import "strings"

// DefaultAgentMarker is the substring that marks a participant identity or
// display name as belonging to the AI agent.
const DefaultAgentMarker = "agent"

// Participant is a connected endpoint, local (the end user) or remote
// (normally exactly one: the AI agent). Lifetime is bounded by the owning
// session.
type Participant struct {
	Identity          string
	DisplayName       string
	IsAgent           bool
	MicrophoneEnabled bool
}

// isAgentParticipant decides whether a participant is the AI agent.
//
// This is a heuristic: the identity or display name contains the agent
// marker, or the participant is simply not the known local identity. It is
// deliberately isolated here so a future explicit role attribute in
// session metadata can replace it without touching the state machine.
func isAgentParticipant(info ParticipantInfo, localIdentity, marker string) bool {
	if marker == "" {
		marker = DefaultAgentMarker
	}
	if strings.Contains(strings.ToLower(info.Identity), marker) {
		return true
	}
	if strings.Contains(strings.ToLower(info.DisplayName), marker) {
		return true
	}
	return info.Identity != "" && info.Identity != localIdentity
}
