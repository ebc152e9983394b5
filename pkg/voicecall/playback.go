package voicecall

import "log/slog"

// Sink is a playback destination for one remote audio track. Its lifetime
// is tied to track subscription, not to the session: it is created on
// subscribe and released on unsubscribe (or at teardown, whichever comes
// first).
type Sink interface {
	// SetMuted mutes or unmutes playback. Orthogonal to microphone
	// mute: this controls inbound audio only.
	SetMuted(muted bool)

	// Close detaches and releases the sink.
	Close() error
}

// SinkFactory creates a playback sink bound to a subscribed track, with
// autoplay enabled. Sinks created while the speaker is muted must inherit
// the mute state; the manager applies it right after creation.
type SinkFactory func(t Track) (Sink, error)

// playbackManager attaches remote audio tracks to playback sinks, keyed
// by participant identity.
type playbackManager struct {
	factory SinkFactory
	log     *slog.Logger

	sinks map[string]Sink
	muted bool
}

func newPlaybackManager(factory SinkFactory, log *slog.Logger) *playbackManager {
	return &playbackManager{
		factory: factory,
		log:     log,
		sinks:   make(map[string]Sink),
	}
}

// attach creates a sink for a newly subscribed track. A track replacing an
// existing one from the same participant releases the old sink first.
func (m *playbackManager) attach(t Track) {
	if m.factory == nil {
		return
	}
	identity := t.ParticipantIdentity()
	if old, ok := m.sinks[identity]; ok {
		old.Close()
		delete(m.sinks, identity)
	}
	sink, err := m.factory(t)
	if err != nil {
		m.log.Error("playback sink create failed", "participant", identity, "track", t.ID(), "error", err)
		return
	}
	sink.SetMuted(m.muted)
	m.sinks[identity] = sink
	m.log.Debug("playback sink attached", "participant", identity, "track", t.ID())
}

// detach releases the sink for a participant whose track unsubscribed.
func (m *playbackManager) detach(identity string) {
	sink, ok := m.sinks[identity]
	if !ok {
		return
	}
	sink.Close()
	delete(m.sinks, identity)
	m.log.Debug("playback sink detached", "participant", identity)
}

// setMuted applies the speaker mute state to all current sinks and records
// it for sinks created later.
func (m *playbackManager) setMuted(muted bool) {
	m.muted = muted
	for _, sink := range m.sinks {
		sink.SetMuted(muted)
	}
}

// closeAll releases every sink. Called once at teardown.
func (m *playbackManager) closeAll() {
	for identity, sink := range m.sinks {
		sink.Close()
		delete(m.sinks, identity)
	}
}
