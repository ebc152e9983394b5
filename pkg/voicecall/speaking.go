package voicecall

import "time"

// speakerState is the per-participant speaking state. Ephemeral, never
// persisted, and mutated only on the session loop.
type speakerState struct {
	identity          string
	isAgent           bool
	joinedAt          time.Time
	rawSpeaking       bool
	confirmedSpeaking bool
	lastTransitionAt  time.Time
	pendingStop       *timerToken
}

// speakingTracker turns raw per-participant speaking flags into confirmed
// start/stop transitions for remote participants.
//
// The debounce is asymmetric: a speaking=true event confirms immediately
// (natural speech must feel responsive), while a speaking=false event only
// confirms after the stop-confirmation window passes with no resumption.
// Micro-pauses inside the window cancel the pending stop and cause no
// transition at all. Events inside the startup-suppression window after a
// participant joins are dropped outright; transports emit noise right
// after connect.
type speakingTracker struct {
	stopConfirmation   time.Duration
	startupSuppression time.Duration

	schedule func(d time.Duration, fn func()) *timerToken
	now      func() time.Time

	onConfirmedStart func(st *speakerState)
	onConfirmedStop  func(st *speakerState)

	speakers map[string]*speakerState
}

func newSpeakingTracker(t Timings, schedule func(time.Duration, func()) *timerToken,
	onStart, onStop func(*speakerState)) *speakingTracker {
	return &speakingTracker{
		stopConfirmation:   t.SpeakingStopConfirmation,
		startupSuppression: t.StartupSuppression,
		schedule:           schedule,
		now:                time.Now,
		onConfirmedStart:   onStart,
		onConfirmedStop:    onStop,
		speakers:           make(map[string]*speakerState),
	}
}

// register starts tracking a participant from the moment it joined. The
// startup-suppression window is measured from this instant.
func (tr *speakingTracker) register(identity string, isAgent bool) *speakerState {
	st := &speakerState{
		identity: identity,
		isAgent:  isAgent,
		joinedAt: tr.now(),
	}
	tr.speakers[identity] = st
	return st
}

// unregister drops a participant and cancels its pending stop timer.
func (tr *speakingTracker) unregister(identity string) {
	st, ok := tr.speakers[identity]
	if !ok {
		return
	}
	st.pendingStop.Cancel()
	st.pendingStop = nil
	delete(tr.speakers, identity)
}

// get returns the tracked state for a participant, registering it on the
// fly if the transport never announced the join.
func (tr *speakingTracker) get(identity string, isAgent bool) *speakerState {
	if st, ok := tr.speakers[identity]; ok {
		return st
	}
	return tr.register(identity, isAgent)
}

// handle processes one raw speaking-change event for a remote participant.
func (tr *speakingTracker) handle(identity string, isAgent, speaking bool) {
	st := tr.get(identity, isAgent)
	now := tr.now()

	if now.Sub(st.joinedAt) < tr.startupSuppression {
		return
	}

	st.rawSpeaking = speaking

	if speaking {
		if st.pendingStop != nil {
			// Resumed within the confirmation window: no state flip.
			st.pendingStop.Cancel()
			st.pendingStop = nil
			return
		}
		if !st.confirmedSpeaking {
			st.confirmedSpeaking = true
			st.lastTransitionAt = now
			tr.onConfirmedStart(st)
		}
		return
	}

	if !st.confirmedSpeaking || st.pendingStop != nil {
		return
	}
	var tok *timerToken
	tok = tr.schedule(tr.stopConfirmation, func() {
		if st.pendingStop != tok {
			return
		}
		st.pendingStop = nil
		if st.rawSpeaking || !st.confirmedSpeaking {
			return
		}
		st.confirmedSpeaking = false
		st.lastTransitionAt = tr.now()
		tr.onConfirmedStop(st)
	})
	st.pendingStop = tok
}

// anyAgentSpeaking reports whether any tracked agent participant is in a
// confirmed speaking state.
func (tr *speakingTracker) anyAgentSpeaking() bool {
	for _, st := range tr.speakers {
		if st.isAgent && st.confirmedSpeaking {
			return true
		}
	}
	return false
}
