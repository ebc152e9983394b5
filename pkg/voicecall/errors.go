package voicecall

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrPermissionDenied indicates the platform refused microphone access.
	ErrPermissionDenied = errors.New("voicecall: microphone permission denied")

	// ErrDeviceNotFound indicates no usable microphone device exists.
	ErrDeviceNotFound = errors.New("voicecall: no microphone device found")

	// ErrRoomBusy indicates another live session already owns the room
	// in this process.
	ErrRoomBusy = errors.New("voicecall: room already has a live session")

	// ErrSessionEnded is returned by operations on a session that has
	// already been torn down.
	ErrSessionEnded = errors.New("voicecall: session has ended")
)

// ConnectErrorKind classifies a failed connection attempt. The taxonomy is
// closed: every error surfaced by Connect is one of these kinds, and no raw
// transport or device error type crosses the package boundary unwrapped.
type ConnectErrorKind int

const (
	// KindPermission means microphone access was denied by the user or
	// platform. Terminal for the attempt; retrying without user action
	// is pointless.
	KindPermission ConnectErrorKind = iota

	// KindDevice means no capture device is available.
	KindDevice

	// KindToken means the access-token exchange with the backend failed.
	KindToken

	// KindTransport means the transport could not be established after
	// exhausting the retry budget.
	KindTransport

	// KindOther covers everything else (room busy, context canceled, ...).
	KindOther
)

// String returns a string representation of the kind.
func (k ConnectErrorKind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindDevice:
		return "device"
	case KindToken:
		return "token"
	case KindTransport:
		return "transport"
	default:
		return "other"
	}
}

// ConnectError is the error type returned by CallSession.Connect.
type ConnectError struct {
	Kind ConnectErrorKind
	Err  error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("voicecall: connect failed (%s): %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error { return e.Err }

// UserMessage returns a short, user-actionable description of the failure.
func (e *ConnectError) UserMessage() string {
	switch e.Kind {
	case KindPermission:
		return "Microphone access was denied. Allow microphone access and try again."
	case KindDevice:
		return "No microphone was found. Connect a microphone and try again."
	case KindToken, KindTransport:
		return "Failed to connect the call. Please try again."
	default:
		return "Could not start the call. Please try again."
	}
}

// Transient reports whether an error is a transient transport failure that
// the lifecycle controller may retry with backoff. Transport
// implementations mark retryable failures by implementing
// interface{ Transient() bool }.
func Transient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}

// transientErr wraps an error so it classifies as transient. Used by tests
// and by transports that have no richer error types.
type transientErr struct{ err error }

func (e *transientErr) Error() string   { return e.err.Error() }
func (e *transientErr) Unwrap() error   { return e.err }
func (e *transientErr) Transient() bool { return true }

// MarkTransient wraps err so Transient reports true for it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientErr{err: err}
}
