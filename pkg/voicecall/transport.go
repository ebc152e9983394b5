package voicecall

import (
	"context"
	"time"
)

// TrackKind identifies the purpose of a published media track.
type TrackKind int

const (
	// TrackMicrophone is a participant's microphone audio.
	TrackMicrophone TrackKind = iota

	// TrackOther is any other published track.
	TrackOther
)

// String returns a string representation of the track kind.
func (k TrackKind) String() string {
	if k == TrackMicrophone {
		return "microphone"
	}
	return "other"
}

// ParticipantInfo describes a connected endpoint as reported by the
// transport.
type ParticipantInfo struct {
	// Identity is the transport-assigned unique identity.
	Identity string

	// DisplayName is the human-readable name, possibly empty.
	DisplayName string
}

// Track is a subscribed remote media track. The concrete type is owned by
// the transport implementation; the session manager only needs identity
// and kind to route it to a playback sink.
type Track interface {
	// ID is the transport-assigned track identifier.
	ID() string

	// ParticipantIdentity is the identity of the publishing participant.
	ParticipantIdentity() string

	// Kind reports what the track carries.
	Kind() TrackKind
}

// Event is a transport event delivered on the Transport.Events channel.
// Within one participant's speaking stream events are strictly ordered;
// no cross-participant ordering is guaranteed.
type Event interface {
	transportEvent()
}

// ConnectedEvent signals the transport (re)established its connection.
type ConnectedEvent struct{}

// ReconnectingEvent signals a transient connection loss; the transport is
// retrying on its own and the session should not treat this as fatal.
type ReconnectingEvent struct{}

// DisconnectedEvent signals a fatal connection loss after the transport
// exhausted its reconnection policy.
type DisconnectedEvent struct {
	Reason string
}

// ParticipantJoinedEvent signals a remote participant connected.
type ParticipantJoinedEvent struct {
	Participant ParticipantInfo
}

// ParticipantLeftEvent signals a remote participant disconnected.
type ParticipantLeftEvent struct {
	Identity string
}

// SpeakingChangedEvent is a raw per-participant speaking flag. Local is
// true for the local (end user) participant.
type SpeakingChangedEvent struct {
	Identity string
	Local    bool
	Speaking bool
}

// TrackSubscribedEvent signals a remote track became available.
type TrackSubscribedEvent struct {
	Track Track
}

// TrackUnsubscribedEvent signals a remote track went away.
type TrackUnsubscribedEvent struct {
	TrackID  string
	Identity string
}

// TranscriptionEvent carries one streamed speech-to-text result attributed
// to a participant. Non-final (interim) results may be revised; a final
// result is immutable.
type TranscriptionEvent struct {
	SpeakerIdentity string
	Text            string
	Final           bool
	TrackID         string
	Timestamp       time.Time
}

func (ConnectedEvent) transportEvent()         {}
func (ReconnectingEvent) transportEvent()      {}
func (DisconnectedEvent) transportEvent()      {}
func (ParticipantJoinedEvent) transportEvent() {}
func (ParticipantLeftEvent) transportEvent()   {}
func (SpeakingChangedEvent) transportEvent()   {}
func (TrackSubscribedEvent) transportEvent()   {}
func (TrackUnsubscribedEvent) transportEvent() {}
func (TranscriptionEvent) transportEvent()     {}

// Transport is the real-time media connection boundary. Implementations
// handle their own transient reconnection (emitting ReconnectingEvent and
// ConnectedEvent) and emit DisconnectedEvent only once reconnection is
// exhausted.
type Transport interface {
	// Connect opens the connection. It blocks until the connection is
	// live or fails. Retryable failures satisfy Transient.
	Connect(ctx context.Context, serverURL, token string) error

	// Disconnect tears the connection down. Safe to call repeatedly.
	Disconnect() error

	// LocalIdentity returns the identity assigned to the local
	// participant, empty before Connect succeeds.
	LocalIdentity() string

	// RemoteParticipants enumerates currently connected remote
	// participants.
	RemoteParticipants() []ParticipantInfo

	// EnableMicrophone publishes the local microphone track. Must be
	// fast; callers treat a slow or failed enable as a degraded call
	// and fall back to PublishCapture.
	EnableMicrophone(ctx context.Context) error

	// PublishCapture publishes a manually acquired capture stream as
	// the local audio track. Fallback path when EnableMicrophone fails.
	PublishCapture(ctx context.Context, stream CaptureStream) error

	// MicrophonePublished reports whether the local audio track is
	// currently published and its pump healthy. Polled by the heartbeat;
	// a deliberately muted track still counts as published, so muting
	// never triggers recovery.
	MicrophonePublished() bool

	// SetMicrophoneMuted mutes or unmutes the local audio track.
	SetMicrophoneMuted(muted bool) error

	// Events returns the transport event stream. After Disconnect an
	// implementation stops delivering; it may close the channel but is
	// not required to (callbacks racing teardown make a guaranteed close
	// unsafe). Consumers must tolerate both.
	Events() <-chan Event
}
