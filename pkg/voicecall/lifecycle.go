package voicecall

import (
	"context"
	"errors"
	"time"
)

// micRecoveryLimit is how many consecutive heartbeat recovery failures are
// tolerated before the call is ended. A single failure is recovered
// silently; repeated failures mean the transport is beyond self-healing.
const micRecoveryLimit = 3

// Connect establishes the call. It is long-running: it suspends on the
// platform permission prompt, the token exchange, and the transport
// handshake, so callers should show "connecting" feedback before invoking
// it. Duplicate calls while an attempt is in flight or established are
// no-ops. EndCall during an attempt aborts it: the attempt stops retrying
// and Connect reports ErrSessionEnded.
//
// The sequence is deliberate: microphone access is checked before any
// network call (a connected-but-mute call is worse than a failed one),
// then the token exchange, then the transport open with exponential
// backoff, then microphone enablement with a raw-capture fallback.
func (s *CallSession) Connect(ctx context.Context) error {
	if s.Phase() == PhaseEnded {
		return ErrSessionEnded
	}
	if !s.connectFlag.CompareAndSwap(false, true) {
		return nil
	}
	err := s.connect(ctx)
	if err != nil {
		// A failed attempt may be retried after user intervention.
		s.connectFlag.Store(false)
	}
	return err
}

func (s *CallSession) connect(ctx context.Context) error {
	if h := s.cfg.Handlers.OnPhaseChanged; h != nil {
		h(PhaseConnecting)
	}

	if err := liveRooms.acquire(s.cfg.RoomName); err != nil {
		return &ConnectError{Kind: KindOther, Err: err}
	}

	capture, err := s.cfg.Microphone.RequestAccess(ctx)
	if err != nil {
		liveRooms.release(s.cfg.RoomName)
		return classifyCaptureError(err)
	}
	s.mu.Lock()
	s.capture = capture
	s.mu.Unlock()

	token, err := s.cfg.Backend.CreateAccessToken(ctx, s.cfg.RoomName, s.cfg.CreatorID)
	if err != nil {
		s.abortConnect()
		return &ConnectError{Kind: KindToken, Err: err}
	}

	if err := s.dialTransport(ctx, token); err != nil {
		select {
		case <-s.done:
			// EndCall won the race; finish already unwound the attempt
			// (capture released, room freed). Nothing left to abort.
		default:
			s.abortConnect()
		}
		return err
	}

	// EndCall may have completed while the transport handshake was in
	// flight. Teardown already ran and will not run again, so the freshly
	// opened transport must not outlive it.
	select {
	case <-s.done:
		s.cfg.Transport.Disconnect()
		return &ConnectError{Kind: KindOther, Err: ErrSessionEnded}
	default:
	}

	// The enable must complete quickly or the call silently degrades to
	// one-way audio; on failure, publish the raw capture stream instead.
	if err := s.cfg.Transport.EnableMicrophone(ctx); err != nil {
		s.log.Warn("microphone enable failed; publishing raw capture stream", "error", err)
		if perr := s.cfg.Transport.PublishCapture(ctx, capture); perr != nil {
			s.log.Error("raw capture publish failed; call degraded to one-way audio", "error", perr)
		}
	}

	s.connected.Store(true)
	s.loopRunning.Store(true)
	go s.run()
	go s.heartbeatLoop()
	go s.tickLoop()
	go s.videoPollLoop()
	s.post(s.markConnected)

	return nil
}

// abortConnect unwinds a partially established attempt.
func (s *CallSession) abortConnect() {
	s.mu.Lock()
	capture := s.capture
	s.capture = nil
	s.mu.Unlock()
	if capture != nil {
		capture.Close()
	}
	liveRooms.release(s.cfg.RoomName)
}

// dialTransport opens the transport, retrying transient failures with
// exponential backoff: ConnectBackoffBase, doubling, capped at
// ConnectBackoffMax. Non-transient failures abort immediately.
func (s *CallSession) dialTransport(ctx context.Context, token AccessToken) error {
	delay := s.timings.ConnectBackoffBase
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxConnectAttempts; attempt++ {
		if attempt > 0 {
			s.log.Info("retrying transport connect", "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return &ConnectError{Kind: KindOther, Err: ctx.Err()}
			case <-s.done:
				// End-call is the single cancellation point: it must also
				// abort an attempt sleeping in backoff.
				return &ConnectError{Kind: KindOther, Err: ErrSessionEnded}
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.timings.ConnectBackoffMax {
				delay = s.timings.ConnectBackoffMax
			}
		}

		err := s.cfg.Transport.Connect(ctx, token.ServerURL, token.Token)
		if err == nil {
			return nil
		}
		lastErr = err
		if !Transient(err) {
			break
		}
		s.log.Warn("transport connect failed", "attempt", attempt+1, "error", err)
	}
	return &ConnectError{Kind: KindTransport, Err: lastErr}
}

// classifyCaptureError maps device-boundary errors onto the closed
// connect-error taxonomy.
func classifyCaptureError(err error) *ConnectError {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return &ConnectError{Kind: KindPermission, Err: err}
	case errors.Is(err, ErrDeviceNotFound):
		return &ConnectError{Kind: KindDevice, Err: err}
	default:
		return &ConnectError{Kind: KindOther, Err: err}
	}
}

// heartbeatLoop is the self-healing check against silent microphone track
// drops: every Heartbeat interval it verifies the local track is still
// published and re-enables it if lost. A deliberate mute is not a loss and
// is left alone. Recovery failures are
// only surfaced (by ending the call) after micRecoveryLimit consecutive
// misses.
func (s *CallSession) heartbeatLoop() {
	ticker := time.NewTicker(s.timings.Heartbeat)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		if !s.connected.Load() {
			continue
		}
		if s.cfg.Transport.MicrophonePublished() {
			failures = 0
			continue
		}

		s.log.Warn("microphone track lost; re-enabling")
		ctx, cancel := context.WithTimeout(context.Background(), s.timings.Heartbeat)
		err := s.cfg.Transport.EnableMicrophone(ctx)
		cancel()
		if err == nil {
			failures = 0
			continue
		}
		failures++
		s.log.Error("microphone recovery failed", "consecutive", failures, "error", err)
		if failures >= micRecoveryLimit {
			s.requestEnd(EndReasonError)
			return
		}
	}
}

// tickLoop drives the call timer at the configured resolution. The tick
// itself runs on the session loop.
func (s *CallSession) tickLoop() {
	ticker := time.NewTicker(s.timings.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.post(func() { s.timer.tick(time.Now()) })
		}
	}
}

// videoPollLoop is the out-of-band poll for pending "display video"
// instructions. Independent of call state; failures are logged at debug
// level only.
func (s *CallSession) videoPollLoop() {
	if s.cfg.Handlers.OnVideoDisplay == nil {
		return
	}
	ticker := time.NewTicker(s.timings.VideoPoll)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
		if !s.connected.Load() {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timings.VideoPoll)
		instr, err := s.cfg.Backend.PollVideoDisplay(ctx, s.cfg.RoomName)
		cancel()
		if err != nil {
			s.log.Debug("video display poll failed", "error", err)
			continue
		}
		if instr == nil {
			continue
		}
		v := *instr
		s.post(func() { s.cfg.Handlers.OnVideoDisplay(v) })
	}
}
