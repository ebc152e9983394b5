package voicecall

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// testTimings shrinks every window so tests run in milliseconds.
func testTimings() Timings {
	return Timings{
		SpeakingStopConfirmation: 60 * time.Millisecond,
		PhaseDebounce:            20 * time.Millisecond,
		StartupSuppression:       40 * time.Millisecond,
		ThinkingTimeout:          150 * time.Millisecond,
		Heartbeat:                30 * time.Millisecond,
		VideoPoll:                30 * time.Millisecond,
		ConnectBackoffBase:       20 * time.Millisecond,
		ConnectBackoffMax:        200 * time.Millisecond,
		Tick:                     20 * time.Millisecond,
	}
}

type fakeTransport struct {
	mu sync.Mutex

	events chan Event

	connectErrs  []error // consumed one per Connect attempt
	connectTimes []time.Time
	connectHold  chan struct{} // when set, Connect blocks on it mid-handshake
	connected    bool

	enableMicErr    error
	enableMicCalls  int
	publishCalls    int
	disconnectCalls int

	micPublished bool
	micMuted     bool

	localIdentity string
	remotes       []ParticipantInfo
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events:        make(chan Event, 64),
		localIdentity: "user-1",
	}
}

func (t *fakeTransport) Connect(ctx context.Context, serverURL, token string) error {
	t.mu.Lock()
	t.connectTimes = append(t.connectTimes, time.Now())
	var err error
	if len(t.connectErrs) > 0 {
		err = t.connectErrs[0]
		t.connectErrs = t.connectErrs[1:]
	}
	hold := t.connectHold
	t.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnectCalls++
	t.connected = false
	return nil
}

func (t *fakeTransport) LocalIdentity() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localIdentity
}

func (t *fakeTransport) RemoteParticipants() []ParticipantInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ParticipantInfo(nil), t.remotes...)
}

func (t *fakeTransport) EnableMicrophone(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enableMicCalls++
	if t.enableMicErr != nil {
		return t.enableMicErr
	}
	t.micPublished = true
	return nil
}

func (t *fakeTransport) PublishCapture(ctx context.Context, stream CaptureStream) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishCalls++
	t.micPublished = true
	return nil
}

func (t *fakeTransport) MicrophonePublished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.micPublished
}

func (t *fakeTransport) SetMicrophoneMuted(muted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.micMuted = muted
	return nil
}

func (t *fakeTransport) Events() <-chan Event { return t.events }

func (t *fakeTransport) emit(ev Event) { t.events <- ev }

func (t *fakeTransport) dropMic() {
	t.mu.Lock()
	t.micPublished = false
	t.mu.Unlock()
}

func (t *fakeTransport) isConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.connectTimes)
}

func (t *fakeTransport) stats() (enables, publishes, disconnects int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enableMicCalls, t.publishCalls, t.disconnectCalls
}

type fakeBackend struct {
	mu sync.Mutex

	tokenErr error

	endNotifies []EndReason
	saved       []TranscriptionRecord
	videoQueue  []*VideoInstruction
}

func (b *fakeBackend) CreateAccessToken(ctx context.Context, roomName, creatorID string) (AccessToken, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokenErr != nil {
		return AccessToken{}, b.tokenErr
	}
	return AccessToken{Token: "tok-" + roomName, ServerURL: "wss://rtc.test"}, nil
}

func (b *fakeBackend) NotifySessionEnd(ctx context.Context, roomName string, reason EndReason) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.endNotifies = append(b.endNotifies, reason)
	return nil
}

func (b *fakeBackend) SaveTranscription(ctx context.Context, rec TranscriptionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = append(b.saved, rec)
	return nil
}

func (b *fakeBackend) PollVideoDisplay(ctx context.Context, roomName string) (*VideoInstruction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.videoQueue) == 0 {
		return nil, nil
	}
	v := b.videoQueue[0]
	b.videoQueue = b.videoQueue[1:]
	return v, nil
}

func (b *fakeBackend) endNotifyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.endNotifies)
}

func (b *fakeBackend) savedRecords() []TranscriptionRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]TranscriptionRecord(nil), b.saved...)
}

type fakeCaptureStream struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeCaptureStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	return len(p), nil
}

func (s *fakeCaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeCaptureStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeMicrophone struct {
	mu       sync.Mutex
	err      error
	requests int
	stream   *fakeCaptureStream
}

func (m *fakeMicrophone) RequestAccess(ctx context.Context) (CaptureStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if m.err != nil {
		return nil, m.err
	}
	m.stream = &fakeCaptureStream{}
	return m.stream, nil
}

type fakeTrack struct {
	id       string
	identity string
	kind     TrackKind
}

func (t fakeTrack) ID() string                  { return t.id }
func (t fakeTrack) ParticipantIdentity() string { return t.identity }
func (t fakeTrack) Kind() TrackKind             { return t.kind }

type fakeSink struct {
	mu     sync.Mutex
	muted  bool
	closed bool
}

func (s *fakeSink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) state() (muted, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted, s.closed
}

// phaseRecorder collects phase transitions delivered via OnPhaseChanged.
type phaseRecorder struct {
	mu     sync.Mutex
	phases []Phase
}

func (r *phaseRecorder) record(p Phase) {
	r.mu.Lock()
	r.phases = append(r.phases, p)
	r.mu.Unlock()
}

func (r *phaseRecorder) snapshot() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Phase(nil), r.phases...)
}

func (r *phaseRecorder) count(p Phase) int {
	n := 0
	for _, got := range r.snapshot() {
		if got == p {
			n++
		}
	}
	return n
}

type testEnv struct {
	session   *CallSession
	transport *fakeTransport
	backend   *fakeBackend
	mic       *fakeMicrophone
	phases    *phaseRecorder
}

// newTestEnv builds a session wired to fakes. The returned session is not
// yet connected; mutate the config via fn before NewCallSession runs.
func newTestEnv(t *testing.T, fn func(*SessionConfig)) *testEnv {
	t.Helper()

	transport := newFakeTransport()
	backend := &fakeBackend{}
	mic := &fakeMicrophone{}
	phases := &phaseRecorder{}

	cfg := SessionConfig{
		UserID:     "user-1",
		CreatorID:  "creator-1",
		RoomName:   "room-" + t.Name(),
		Transport:  transport,
		Backend:    backend,
		Microphone: mic,
		Timings:    testTimings(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Handlers: Handlers{
			OnPhaseChanged: phases.record,
		},
	}
	if fn != nil {
		fn(&cfg)
	}

	s, err := NewCallSession(cfg)
	if err != nil {
		t.Fatalf("NewCallSession: %v", err)
	}
	t.Cleanup(s.EndCall)
	return &testEnv{session: s, transport: transport, backend: backend, mic: mic, phases: phases}
}

// connect establishes the session and waits for the Listening phase.
func (e *testEnv) connect(t *testing.T) {
	t.Helper()
	if err := e.session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, time.Second, func() bool { return e.session.Phase() == PhaseListening })
}

// joinAgent announces the agent participant and waits out the startup
// suppression window so speaking events are honored.
func (e *testEnv) joinAgent(t *testing.T) {
	t.Helper()
	e.transport.emit(ParticipantJoinedEvent{Participant: ParticipantInfo{Identity: "agent-7", DisplayName: "Creator Agent"}})
	time.Sleep(e.session.timings.StartupSuppression + 20*time.Millisecond)
}

func (e *testEnv) agentSpeaking(speaking bool) {
	e.transport.emit(SpeakingChangedEvent{Identity: "agent-7", Speaking: speaking})
}

func (e *testEnv) userSpeaking(speaking bool) {
	e.transport.emit(SpeakingChangedEvent{Identity: "user-1", Local: true, Speaking: speaking})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

var errBoom = errors.New("boom")
