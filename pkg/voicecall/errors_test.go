package voicecall

import (
	"errors"
	"fmt"
	"testing"
)

func TestConnectErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("prompt dismissed: %w", ErrPermissionDenied)
	err := error(&ConnectError{Kind: KindPermission, Err: cause})

	if !errors.Is(err, ErrPermissionDenied) {
		t.Error("errors.Is does not reach the sentinel through ConnectError")
	}
	var cerr *ConnectError
	if !errors.As(err, &cerr) || cerr.Kind != KindPermission {
		t.Errorf("errors.As failed: %v", err)
	}
}

func TestConnectErrorUserMessages(t *testing.T) {
	kinds := []ConnectErrorKind{KindPermission, KindDevice, KindToken, KindTransport, KindOther}
	seen := map[string]ConnectErrorKind{}
	for _, k := range kinds {
		e := &ConnectError{Kind: k, Err: errBoom}
		msg := e.UserMessage()
		if msg == "" {
			t.Errorf("kind %v: empty user message", k)
		}
		if e.Error() == "" || k.String() == "" {
			t.Errorf("kind %v: empty diagnostics", k)
		}
		seen[msg] = k
	}
	// Permission and device failures need distinct user guidance.
	if len(seen) < 3 {
		t.Errorf("user messages not differentiated: %v", seen)
	}
}

func TestTransient(t *testing.T) {
	if Transient(errBoom) {
		t.Error("plain error reported transient")
	}
	if !Transient(MarkTransient(errBoom)) {
		t.Error("marked error not reported transient")
	}
	wrapped := fmt.Errorf("attempt 2: %w", MarkTransient(errBoom))
	if !Transient(wrapped) {
		t.Error("transience lost through wrapping")
	}
	if !errors.Is(MarkTransient(errBoom), errBoom) {
		t.Error("MarkTransient hides the cause")
	}
	if MarkTransient(nil) != nil {
		t.Error("MarkTransient(nil) != nil")
	}
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		PhaseConnecting: "connecting",
		PhaseListening:  "listening",
		PhaseTalking:    "talking",
		PhaseThinking:   "thinking",
		PhaseEnded:      "ended",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(p), got, want)
		}
	}
}
