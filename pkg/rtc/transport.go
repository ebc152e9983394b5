package rtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/danieledinun/aitreon-sub001/pkg/voicecall"
)

// DefaultHandshakeTimeout bounds the signaling and SDP handshake.
const DefaultHandshakeTimeout = 15 * time.Second

var defaultICEServers = []string{"stun:stun.l.google.com:19302"}

// Transport is the pion-backed voicecall.Transport. One Transport
// serves one connection; the session owns its lifecycle.
type Transport struct {
	log              *slog.Logger
	capture          voicecall.CaptureDevice
	handshakeTimeout time.Duration
	iceServers       []string

	events  chan voicecall.Event
	closeCh chan struct{}

	closeOnce sync.Once

	mu            sync.Mutex
	sig           *signalClient
	pc            *webrtc.PeerConnection
	dc            *webrtc.DataChannel
	localIdentity string
	remotes       map[string]voicecall.ParticipantInfo
	mic           *micPublisher
	micSender     *webrtc.RTPSender
	micMuted      bool
}

var _ voicecall.Transport = (*Transport)(nil)

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) TransportOption {
	return func(t *Transport) { t.log = log }
}

// WithCaptureDevice wires the device used by EnableMicrophone. Without
// it EnableMicrophone fails and callers fall back to PublishCapture.
func WithCaptureDevice(dev voicecall.CaptureDevice) TransportOption {
	return func(t *Transport) { t.capture = dev }
}

// WithHandshakeTimeout bounds the connect handshake.
func WithHandshakeTimeout(d time.Duration) TransportOption {
	return func(t *Transport) { t.handshakeTimeout = d }
}

// WithICEServers sets fallback ICE servers used when the signaling
// server does not supply its own.
func WithICEServers(urls []string) TransportOption {
	return func(t *Transport) { t.iceServers = urls }
}

// NewTransport creates an unconnected transport.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		log:              slog.Default(),
		handshakeTimeout: DefaultHandshakeTimeout,
		iceServers:       defaultICEServers,
		events:           make(chan voicecall.Event, 64),
		closeCh:          make(chan struct{}),
		remotes:          make(map[string]voicecall.ParticipantInfo),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect dials the signaling channel, joins the room encoded in the
// token, and completes the SDP handshake. Network-level failures are
// transient; handshake rejections are not.
func (t *Transport) Connect(ctx context.Context, serverURL, token string) error {
	ctx, cancel := context.WithTimeout(ctx, t.handshakeTimeout)
	defer cancel()

	sig, err := dialSignaling(ctx, serverURL, token, t.handshakeTimeout, t.log)
	if err != nil {
		return err
	}

	if err := t.handshake(ctx, sig); err != nil {
		sig.close()
		if errors.Is(err, context.DeadlineExceeded) {
			return markTransient(err)
		}
		return err
	}
	return nil
}

func (t *Transport) handshake(ctx context.Context, sig *signalClient) error {
	if err := sig.send(&signalMessage{Type: msgJoin}); err != nil {
		return markTransient(fmt.Errorf("rtc: send join: %w", err))
	}
	joined, err := sig.await(ctx, msgJoined)
	if err != nil {
		return err
	}

	iceServers := joined.ICEServers
	if len(iceServers) == 0 {
		iceServers = t.iceServers
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	})
	if err != nil {
		return fmt.Errorf("rtc: create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return fmt.Errorf("rtc: add audio transceiver: %w", err)
	}

	dc, err := pc.CreateDataChannel("call-events", nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("rtc: create data channel: %w", err)
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		parsed, err := decodeMessage(msg.Data)
		if err != nil {
			t.log.Warn("dropping malformed data-channel message", "error", err)
			return
		}
		t.handleSignal(parsed)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		t.log.Debug("remote track subscribed",
			"track", track.ID(), "stream", track.StreamID(), "codec", track.Codec().MimeType)
		t.emit(voicecall.TrackSubscribedEvent{Track: &remoteTrack{
			track: track,
			// SFU convention: the stream ID is the publisher's identity.
			identity: track.StreamID(),
		}})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.log.Info("peer connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateConnected:
			t.emit(voicecall.ConnectedEvent{})
		case webrtc.PeerConnectionStateDisconnected:
			t.emit(voicecall.ReconnectingEvent{})
		case webrtc.PeerConnectionStateFailed:
			t.emit(voicecall.DisconnectedEvent{Reason: "peer connection failed"})
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("rtc: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return fmt.Errorf("rtc: set local description: %w", err)
	}
	<-webrtc.GatheringCompletePromise(pc)

	if err := sig.send(&signalMessage{Type: msgOffer, SDP: pc.LocalDescription().SDP}); err != nil {
		pc.Close()
		return markTransient(fmt.Errorf("rtc: send offer: %w", err))
	}
	answer, err := sig.await(ctx, msgAnswer)
	if err != nil {
		pc.Close()
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer.SDP,
	}); err != nil {
		pc.Close()
		return fmt.Errorf("rtc: set remote description: %w", err)
	}

	t.mu.Lock()
	t.sig = sig
	t.pc = pc
	t.dc = dc
	t.localIdentity = joined.Identity
	for _, p := range joined.Participants {
		t.remotes[p.Identity] = voicecall.ParticipantInfo{
			Identity:    p.Identity,
			DisplayName: p.DisplayName,
		}
	}
	t.mu.Unlock()

	for _, msg := range sig.deferred {
		t.handleSignal(msg)
	}
	sig.deferred = nil
	go t.runLoop(sig)

	return nil
}

// runLoop dispatches signaling messages until the connection dies.
func (t *Transport) runLoop(sig *signalClient) {
	for {
		select {
		case <-t.closeCh:
			return
		case msg, ok := <-sig.msgCh:
			if !ok {
				select {
				case <-t.closeCh:
					// Local teardown, not a connection loss.
				default:
					reason := "signaling connection lost"
					select {
					case err := <-sig.errCh:
						reason = err.Error()
					default:
					}
					t.emit(voicecall.DisconnectedEvent{Reason: reason})
				}
				return
			}
			t.handleSignal(msg)
		}
	}
}

// handleSignal translates a wire message into a transport event. Shared
// by the signaling run loop and the data channel.
func (t *Transport) handleSignal(msg *signalMessage) {
	switch msg.Type {
	case msgParticipantJoined:
		info := voicecall.ParticipantInfo{Identity: msg.Identity, DisplayName: msg.DisplayName}
		t.mu.Lock()
		t.remotes[msg.Identity] = info
		t.mu.Unlock()
		t.emit(voicecall.ParticipantJoinedEvent{Participant: info})

	case msgParticipantLeft:
		t.mu.Lock()
		delete(t.remotes, msg.Identity)
		t.mu.Unlock()
		t.emit(voicecall.ParticipantLeftEvent{Identity: msg.Identity})

	case msgSpeaking:
		if msg.Speaking == nil {
			return
		}
		t.emit(voicecall.SpeakingChangedEvent{
			Identity: msg.Identity,
			Local:    msg.Identity != "" && msg.Identity == t.LocalIdentity(),
			Speaking: *msg.Speaking,
		})

	case msgTranscription:
		t.emit(voicecall.TranscriptionEvent{
			SpeakerIdentity: msg.Identity,
			Text:            msg.Text,
			Final:           msg.Final,
			TrackID:         msg.TrackID,
			Timestamp:       timestampOf(msg.Timestamp),
		})

	case msgBye:
		t.emit(voicecall.DisconnectedEvent{Reason: msg.Reason})

	default:
		t.log.Debug("ignoring signaling message", "type", string(msg.Type))
	}
}

// emit delivers an event unless the transport is torn down.
func (t *Transport) emit(ev voicecall.Event) {
	select {
	case <-t.closeCh:
	case t.events <- ev:
	}
}

// Events returns the transport event stream.
func (t *Transport) Events() <-chan voicecall.Event { return t.events }

// LocalIdentity returns the identity the server assigned at join.
func (t *Transport) LocalIdentity() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localIdentity
}

// RemoteParticipants enumerates currently connected remote participants.
func (t *Transport) RemoteParticipants() []voicecall.ParticipantInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]voicecall.ParticipantInfo, 0, len(t.remotes))
	for _, p := range t.remotes {
		out = append(out, p)
	}
	return out
}

// EnableMicrophone acquires the configured capture device and publishes
// it as the local audio track.
func (t *Transport) EnableMicrophone(ctx context.Context) error {
	if t.capture == nil {
		return fmt.Errorf("rtc: no capture device configured")
	}
	if t.MicrophonePublished() {
		return nil
	}
	stream, err := t.capture.RequestAccess(ctx)
	if err != nil {
		return fmt.Errorf("rtc: microphone access: %w", err)
	}
	if err := t.publishStream(stream); err != nil {
		stream.Close()
		return err
	}
	return nil
}

// PublishCapture publishes an externally acquired capture stream as the
// local audio track. The transport takes ownership of the stream.
func (t *Transport) PublishCapture(ctx context.Context, stream voicecall.CaptureStream) error {
	return t.publishStream(stream)
}

func (t *Transport) publishStream(stream voicecall.CaptureStream) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pc == nil {
		return fmt.Errorf("rtc: not connected")
	}
	if t.mic != nil {
		t.mic.stop()
		t.mic = nil
	}
	// Remove the stale sender before adding the replacement; stacking
	// AddTrack calls leaks one RTPSender per republish.
	if t.micSender != nil {
		if err := t.pc.RemoveTrack(t.micSender); err != nil {
			t.log.Warn("removing stale mic sender failed", "error", err)
		}
		t.micSender = nil
	}
	mic, err := newMicPublisher(stream, t.log)
	if err != nil {
		return err
	}
	sender, err := t.pc.AddTrack(mic.track)
	if err != nil {
		return fmt.Errorf("rtc: add mic track: %w", err)
	}
	mic.setMuted(t.micMuted)
	t.mic = mic
	t.micSender = sender
	go mic.run()
	return nil
}

// MicrophonePublished reports whether the local audio track is live: the
// pump dying (device unplugged, stream error) reads as unpublished so the
// heartbeat can re-enable. A deliberate mute keeps the track published;
// it must not trigger recovery.
func (t *Transport) MicrophonePublished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mic == nil {
		return false
	}
	select {
	case <-t.mic.doneCh:
		return false
	default:
		return true
	}
}

// SetMicrophoneMuted mutes or unmutes the local audio track.
func (t *Transport) SetMicrophoneMuted(muted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.micMuted = muted
	if t.mic != nil {
		t.mic.setMuted(muted)
	}
	return nil
}

// Disconnect tears the transport down. Safe to call repeatedly.
func (t *Transport) Disconnect() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)

		t.mu.Lock()
		sig, pc, dc, mic := t.sig, t.pc, t.dc, t.mic
		t.sig, t.pc, t.dc, t.mic, t.micSender = nil, nil, nil, nil, nil
		t.mu.Unlock()

		if sig != nil {
			sig.send(&signalMessage{Type: msgBye, Reason: "client hangup"})
		}
		if mic != nil {
			mic.stop()
		}
		if dc != nil {
			dc.Close()
		}
		if pc != nil {
			err = pc.Close()
		}
		if sig != nil {
			sig.close()
		}
	})
	return err
}
