package voicecall

import "time"

// ExpiryPolicy configures the call-duration policy. The zero value means
// no limit, no warning, no auto-termination.
type ExpiryPolicy struct {
	// MaxDuration is the maximum call length. Zero disables the limit.
	MaxDuration time.Duration

	// WarningAt is the remaining time below which a warning is emitted.
	WarningAt time.Duration

	// AutoTerminate ends the call through the normal hangup path when
	// MaxDuration is reached.
	AutoTerminate bool
}

// callTimer tracks wall-clock call duration against an ExpiryPolicy. It is
// driven by the session loop, once per tick.
type callTimer struct {
	policy    ExpiryPolicy
	startedAt time.Time
	warned    bool
	expired   bool

	onWarning func(remaining time.Duration)
	onExpired func()
}

func newCallTimer(policy ExpiryPolicy, onWarning func(time.Duration), onExpired func()) *callTimer {
	return &callTimer{
		policy:    policy,
		onWarning: onWarning,
		onExpired: onExpired,
	}
}

// start records the moment the transport reported connected.
func (t *callTimer) start(now time.Time) {
	t.startedAt = now
}

// elapsed returns the call duration so far, zero before start.
func (t *callTimer) elapsed(now time.Time) time.Duration {
	if t.startedAt.IsZero() {
		return 0
	}
	return now.Sub(t.startedAt)
}

// tick re-evaluates the policy. The warning fires once; expiry fires once
// and only when auto-termination is enabled.
func (t *callTimer) tick(now time.Time) {
	if t.startedAt.IsZero() || t.policy.MaxDuration <= 0 {
		return
	}
	remaining := t.policy.MaxDuration - t.elapsed(now)

	if !t.warned && t.policy.WarningAt > 0 && remaining <= t.policy.WarningAt && remaining > 0 {
		t.warned = true
		if t.onWarning != nil {
			t.onWarning(remaining)
		}
	}

	if !t.expired && remaining <= 0 && t.policy.AutoTerminate {
		t.expired = true
		if t.onExpired != nil {
			t.onExpired()
		}
	}
}
