package voicecall

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// CallSession is the root aggregate for one call attempt. It owns the
// transport handle, the playback sinks, and the per-participant speaking
// trackers; no other part of the application reaches into this state.
//
// All state mutation happens on a single event loop goroutine fed by the
// transport event channel and by timer callbacks posted via post(). The
// caller-facing methods are safe for concurrent use.
type CallSession struct {
	cfg     SessionConfig
	id      string
	log     *slog.Logger
	timings Timings

	calls chan func()
	done  chan struct{}

	endOnce     sync.Once
	connectFlag atomic.Bool // connect in flight or established
	connected   atomic.Bool
	loopRunning atomic.Bool

	timersMu sync.Mutex
	timers   map[*timerToken]struct{}

	mu        sync.RWMutex
	phase     Phase
	startedAt time.Time
	endReason EndReason
	capture   CaptureStream

	// Loop-owned state. Never touched off the loop goroutine.
	tracker       *speakingTracker
	transcripts   *transcriptIngestor
	playback      *playbackManager
	timer         *callTimer
	pendingPhase  *timerToken
	thinkingToken *timerToken
}

// NewCallSession creates a session for one call attempt. The session is
// inert until Connect.
func NewCallSession(cfg SessionConfig) (*CallSession, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("voicecall: SessionConfig.Transport is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("voicecall: SessionConfig.Backend is required")
	}
	if cfg.Microphone == nil {
		return nil, fmt.Errorf("voicecall: SessionConfig.Microphone is required")
	}
	if cfg.RoomName == "" {
		return nil, fmt.Errorf("voicecall: SessionConfig.RoomName is required")
	}
	cfg.Timings = cfg.Timings.withDefaults()
	if cfg.MaxConnectAttempts <= 0 {
		cfg.MaxConnectAttempts = 4
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := fmt.Sprintf("%s_%s_%d", cfg.UserID, cfg.CreatorID, time.Now().UnixMilli())

	s := &CallSession{
		cfg:     cfg,
		id:      id,
		log:     logger.With("session_id", id, "room", cfg.RoomName),
		timings: cfg.Timings,
		calls:   make(chan func(), 128),
		done:    make(chan struct{}),
		timers:  make(map[*timerToken]struct{}),
		phase:   PhaseConnecting,
	}
	s.tracker = newSpeakingTracker(cfg.Timings, s.schedule, s.onConfirmedSpeechStart, s.onConfirmedSpeechStop)
	s.transcripts = newTranscriptIngestor(s.forwardTranscription, cfg.Handlers.OnCurrentTranscript)
	s.playback = newPlaybackManager(cfg.Sinks, s.log)
	s.timer = newCallTimer(cfg.Expiry, s.onTimeWarning, s.onExpired)
	return s, nil
}

// ID returns the session identifier, derived from the user id, the
// creator id, and the creation timestamp.
func (s *CallSession) ID() string { return s.id }

// Room returns the room identifier.
func (s *CallSession) Room() string { return s.cfg.RoomName }

// Phase returns the current call phase.
func (s *CallSession) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Elapsed returns the call duration so far, zero until the transport
// reports connected.
func (s *CallSession) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// Transcript returns all finalized transcription entries in arrival order.
func (s *CallSession) Transcript() []TranscriptionEntry {
	return s.transcripts.snapshot()
}

// Done returns a channel closed when the session has fully torn down.
func (s *CallSession) Done() <-chan struct{} { return s.done }

// EndCall terminates the call gracefully. Idempotent: repeated calls are
// no-ops and exactly one session-end notification is sent.
func (s *CallSession) EndCall() { s.requestEnd(EndReasonUserHangup) }

// SetMicrophoneMuted mutes or unmutes the outbound microphone track.
func (s *CallSession) SetMicrophoneMuted(muted bool) error {
	if s.Phase() == PhaseEnded {
		return ErrSessionEnded
	}
	return s.cfg.Transport.SetMicrophoneMuted(muted)
}

// SetSpeakerMuted mutes or unmutes inbound playback on all current sinks;
// sinks created later inherit the state.
func (s *CallSession) SetSpeakerMuted(muted bool) {
	s.post(func() { s.playback.setMuted(muted) })
}

// post schedules fn on the session loop. Dropped once teardown started.
func (s *CallSession) post(fn func()) {
	select {
	case <-s.done:
	case s.calls <- fn:
	}
}

// run is the session event loop. Every piece of loop-owned state is
// mutated here and nowhere else.
func (s *CallSession) run() {
	events := s.cfg.Transport.Events()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.calls:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleTransportEvent(ev)
		}
	}
}

func (s *CallSession) handleTransportEvent(ev Event) {
	switch ev := ev.(type) {
	case ConnectedEvent:
		s.markConnected()

	case ReconnectingEvent:
		// Transient; the transport retries on its own.
		s.log.Warn("transport reconnecting")

	case DisconnectedEvent:
		s.log.Error("transport disconnected", "reason", ev.Reason)
		s.requestEnd(EndReasonConnectionLost)

	case ParticipantJoinedEvent:
		agent := isAgentParticipant(ev.Participant, s.cfg.Transport.LocalIdentity(), s.cfg.AgentMarker)
		s.tracker.register(ev.Participant.Identity, agent)
		s.log.Info("participant joined", "identity", ev.Participant.Identity, "agent", agent)

	case ParticipantLeftEvent:
		s.tracker.unregister(ev.Identity)
		s.playback.detach(ev.Identity)
		s.log.Info("participant left", "identity", ev.Identity)

	case SpeakingChangedEvent:
		s.handleSpeakingChanged(ev)

	case TrackSubscribedEvent:
		s.playback.attach(ev.Track)

	case TrackUnsubscribedEvent:
		s.playback.detach(ev.Identity)

	case TranscriptionEvent:
		s.transcripts.handle(ev.SpeakerIdentity, ev.Text, ev.Final, ev.TrackID, ev.Timestamp)
	}
}

// markConnected runs once when the transport first reports connected:
// it starts the call clock and settles into Listening.
func (s *CallSession) markConnected() {
	now := time.Now()
	s.mu.Lock()
	if !s.startedAt.IsZero() {
		s.mu.Unlock()
		return
	}
	s.startedAt = now
	s.mu.Unlock()

	s.timer.start(now)
	local := s.cfg.Transport.LocalIdentity()
	for _, p := range s.cfg.Transport.RemoteParticipants() {
		s.tracker.register(p.Identity, isAgentParticipant(p, local, s.cfg.AgentMarker))
	}
	s.applyPhase(PhaseListening)
	if h := s.cfg.Handlers.OnConnected; h != nil {
		h()
	}
	s.log.Info("call connected", "local_identity", local)
}

// handleSpeakingChanged routes a raw speaking flag. Remote participants go
// through the asymmetric debounce; the local participant only nudges the
// Listening/Thinking phases and never overrides agent speech.
func (s *CallSession) handleSpeakingChanged(ev SpeakingChangedEvent) {
	local := ev.Local || (ev.Identity != "" && ev.Identity == s.cfg.Transport.LocalIdentity())
	if !local {
		info := ParticipantInfo{Identity: ev.Identity}
		agent := isAgentParticipant(info, s.cfg.Transport.LocalIdentity(), s.cfg.AgentMarker)
		s.tracker.handle(ev.Identity, agent, ev.Speaking)
		return
	}

	if s.Phase() == PhaseTalking {
		return
	}
	if ev.Speaking {
		s.setPhaseDebounced(PhaseListening)
	} else {
		s.setPhaseDebounced(PhaseThinking)
	}
}

// onConfirmedSpeechStart fires when a remote participant's speech is
// confirmed. Agent speech drives Talking immediately, bypassing the phase
// debounce so the UI reacts within one loop tick.
func (s *CallSession) onConfirmedSpeechStart(st *speakerState) {
	if !st.isAgent {
		return
	}
	s.setPhaseNow(PhaseTalking)
}

// onConfirmedSpeechStop fires after the stop-confirmation window.
func (s *CallSession) onConfirmedSpeechStop(st *speakerState) {
	if !st.isAgent {
		return
	}
	s.setPhaseDebounced(PhaseListening)
}

// setPhaseNow applies a phase immediately, cancelling any pending
// debounced change it would supersede.
func (s *CallSession) setPhaseNow(p Phase) {
	s.pendingPhase.Cancel()
	s.pendingPhase = nil
	s.applyPhase(p)
}

// setPhaseDebounced schedules a phase change after the debounce window,
// replacing any previously pending change. The callback double-checks it
// is still the current pending change: a cancelled timer may already have
// been queued on the loop.
func (s *CallSession) setPhaseDebounced(p Phase) {
	s.pendingPhase.Cancel()
	var tok *timerToken
	tok = s.schedule(s.timings.PhaseDebounce, func() {
		if s.pendingPhase != tok {
			return
		}
		s.pendingPhase = nil
		s.applyPhase(p)
	})
	s.pendingPhase = tok
}

// applyPhase commits a phase transition. Ended is terminal; transitions to
// the current phase are no-ops.
func (s *CallSession) applyPhase(p Phase) {
	s.mu.Lock()
	if s.phase == PhaseEnded || s.phase == p {
		s.mu.Unlock()
		return
	}
	s.phase = p
	s.mu.Unlock()

	if p == PhaseThinking {
		s.armThinkingTimeout()
	} else {
		s.thinkingToken.Cancel()
		s.thinkingToken = nil
	}

	s.log.Debug("phase changed", "phase", p.String())
	if h := s.cfg.Handlers.OnPhaseChanged; h != nil {
		h(p)
	}
}

// armThinkingTimeout guards against the agent silently failing to respond:
// if Thinking persists past the timeout, fall back to Listening. The token
// is cancelled whenever the phase leaves Thinking, so a stale timer can
// never re-fire after manual recovery.
func (s *CallSession) armThinkingTimeout() {
	s.thinkingToken.Cancel()
	s.thinkingToken = s.schedule(s.timings.ThinkingTimeout, func() {
		s.thinkingToken = nil
		if s.Phase() == PhaseThinking {
			s.log.Warn("no agent response; leaving thinking phase")
			s.applyPhase(PhaseListening)
		}
	})
}

// forwardTranscription delivers a finalized entry to the caller and, in
// the background, to the persistence collaborator. Persistence failures
// are logged and never block or roll back the in-memory transcript.
func (s *CallSession) forwardTranscription(e TranscriptionEntry) {
	if h := s.cfg.Handlers.OnTranscription; h != nil {
		h(e)
	}
	rec := TranscriptionRecord{
		RoomName:      s.cfg.RoomName,
		CreatorID:     s.cfg.CreatorID,
		ParticipantID: e.Speaker,
		Text:          e.Text,
		TrackID:       e.TrackID,
		Timestamp:     e.Timestamp,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.cfg.Backend.SaveTranscription(ctx, rec); err != nil {
			s.log.Error("transcription persistence failed", "speaker", e.Speaker, "error", err)
		}
	}()
}

func (s *CallSession) onTimeWarning(remaining time.Duration) {
	s.log.Info("call time warning", "remaining", remaining)
	if h := s.cfg.Handlers.OnTimeWarning; h != nil {
		h(remaining)
	}
}

// onExpired routes expiry through the same graceful teardown as an
// explicit hangup.
func (s *CallSession) onExpired() {
	s.log.Info("max call duration reached; ending call")
	s.requestEnd(EndReasonMaxDuration)
}

// requestEnd routes teardown through the loop when it is running so no
// event handler races the cleanup; otherwise it tears down inline.
func (s *CallSession) requestEnd(reason EndReason) {
	if s.loopRunning.Load() {
		s.post(func() { s.finish(reason) })
		return
	}
	s.finish(reason)
}

// finish tears the session down exactly once: timers first (so no timer
// callback fires against a dead session), then the loop, sinks, capture
// stream, transport, and finally the best-effort end notification.
func (s *CallSession) finish(reason EndReason) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.phase = PhaseEnded
		s.endReason = reason
		established := !s.startedAt.IsZero()
		capture := s.capture
		s.capture = nil
		s.mu.Unlock()

		s.connected.Store(false)
		s.cancelAllTimers()
		s.pendingPhase = nil
		s.thinkingToken = nil
		close(s.done)

		s.playback.closeAll()
		if capture != nil {
			capture.Close()
		}
		if err := s.cfg.Transport.Disconnect(); err != nil {
			s.log.Warn("transport disconnect failed", "error", err)
		}
		liveRooms.release(s.cfg.RoomName)

		if established {
			go s.notifySessionEnd(reason)
		}

		s.log.Info("call ended", "reason", string(reason))
		if h := s.cfg.Handlers.OnPhaseChanged; h != nil {
			h(PhaseEnded)
		}
		if h := s.cfg.Handlers.OnDisconnected; h != nil {
			h(reason)
		}
	})
}

// notifySessionEnd tells the backend the call terminated so the server
// can reap the agent session. Best-effort only.
func (s *CallSession) notifySessionEnd(reason EndReason) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.cfg.Backend.NotifySessionEnd(ctx, s.cfg.RoomName, reason); err != nil {
		s.log.Error("session-end notification failed", "error", err)
	}
}
