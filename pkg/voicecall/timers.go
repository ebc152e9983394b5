package voicecall

import (
	"sync"
	"time"
)

// timerToken is a cancellable one-shot timer whose callback is posted onto
// the session event loop. A callback that lost the race with Cancel may
// still be queued on the loop, so callbacks must re-check the state they
// act on. Every token is registered with the session so teardown can
// cancel all outstanding timers before releasing the transport.
type timerToken struct {
	mu       sync.Mutex
	timer    *time.Timer
	canceled bool
}

// schedule creates a token that posts fn onto the session loop after d.
// The token is tracked in s.timers until it fires or is canceled.
func (s *CallSession) schedule(d time.Duration, fn func()) *timerToken {
	tok := &timerToken{}
	tok.timer = time.AfterFunc(d, func() {
		tok.mu.Lock()
		fired := !tok.canceled
		tok.canceled = true
		tok.mu.Unlock()
		if !fired {
			return
		}
		s.post(func() {
			s.untrackTimer(tok)
			fn()
		})
	})
	s.trackTimer(tok)
	return tok
}

// Cancel stops the timer. Safe to call repeatedly and on nil tokens.
func (t *timerToken) Cancel() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.canceled = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
}

func (s *CallSession) trackTimer(tok *timerToken) {
	s.timersMu.Lock()
	s.timers[tok] = struct{}{}
	s.timersMu.Unlock()
}

func (s *CallSession) untrackTimer(tok *timerToken) {
	s.timersMu.Lock()
	delete(s.timers, tok)
	s.timersMu.Unlock()
}

// cancelAllTimers cancels every outstanding timer token. Called once
// during teardown, before the transport is released, so no timer callback
// can fire against a torn-down session.
func (s *CallSession) cancelAllTimers() {
	s.timersMu.Lock()
	toks := make([]*timerToken, 0, len(s.timers))
	for tok := range s.timers {
		toks = append(toks, tok)
	}
	s.timers = make(map[*timerToken]struct{})
	s.timersMu.Unlock()
	for _, tok := range toks {
		tok.Cancel()
	}
}
