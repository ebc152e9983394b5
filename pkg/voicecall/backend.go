package voicecall

import (
	"context"
	"time"
)

// AccessToken is the result of the token-issuance exchange.
type AccessToken struct {
	Token     string
	ServerURL string
}

// TranscriptionRecord is one finalized transcription forwarded to the
// persistence collaborator.
type TranscriptionRecord struct {
	RoomName      string
	CreatorID     string
	ParticipantID string
	Text          string
	TrackID       string
	Timestamp     time.Time
}

// VideoInstruction is a pending "display video" instruction returned by
// the out-of-band poll. It never affects call state.
type VideoInstruction struct {
	VideoID string
	Title   string
	URL     string
}

// Backend is the boundary to the server-side collaborators: token
// issuance, session-end notification, transcription persistence, and the
// out-of-band video-display poll. Persistence and notification are
// best-effort; their failures are logged and never block local state.
type Backend interface {
	// CreateAccessToken exchanges room and creator identifiers for a
	// transport access token. Called once per connection attempt.
	CreateAccessToken(ctx context.Context, roomName, creatorID string) (AccessToken, error)

	// NotifySessionEnd tells the server a call terminated so it can
	// clean up the agent session.
	NotifySessionEnd(ctx context.Context, roomName string, reason EndReason) error

	// SaveTranscription persists one finalized transcription entry.
	SaveTranscription(ctx context.Context, rec TranscriptionRecord) error

	// PollVideoDisplay returns a pending video instruction for the
	// room, or nil if there is none.
	PollVideoDisplay(ctx context.Context, roomName string) (*VideoInstruction, error)
}
