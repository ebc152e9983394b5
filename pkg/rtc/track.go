package rtc

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/danieledinun/aitreon-sub001/pkg/audio/pcm"
	"github.com/danieledinun/aitreon-sub001/pkg/voicecall"
)

const (
	micFrameMs = 20

	opusPayloadType = 111
)

// RTP timestamp units per frame at the mic clock rate.
var micFrameSamples = uint32(pcm.L16Mono48K.SamplesFor(micFrameMs * time.Millisecond))

// PacketReader is implemented by the remote tracks this transport
// hands to playback sinks. Sinks type-assert to it to consume the raw
// packet stream.
type PacketReader interface {
	ReadRTP() (*rtp.Packet, error)
}

// remoteTrack adapts a pion remote track to the voicecall Track
// interface. ReadRTP is exposed for playback sinks that consume the
// raw packet stream.
type remoteTrack struct {
	track    *webrtc.TrackRemote
	identity string
}

func (t *remoteTrack) ID() string                  { return t.track.ID() }
func (t *remoteTrack) ParticipantIdentity() string { return t.identity }

func (t *remoteTrack) Kind() voicecall.TrackKind {
	if t.track.Kind() == webrtc.RTPCodecTypeAudio {
		return voicecall.TrackMicrophone
	}
	return voicecall.TrackOther
}

// ReadRTP reads the next media packet from the remote track.
func (t *remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := t.track.ReadRTP()
	return pkt, err
}

var (
	_ voicecall.Track = (*remoteTrack)(nil)
	_ PacketReader    = (*remoteTrack)(nil)
)

// micPublisher pumps encoded microphone frames from a capture stream
// into a local RTP track. Capture streams deliver one 20ms Opus frame
// per Read; encoding is the device's concern, not ours.
type micPublisher struct {
	track  *webrtc.TrackLocalStaticRTP
	stream voicecall.CaptureStream
	log    *slog.Logger

	ssrc      uint32
	seq       uint32
	timestamp uint32
	muted     atomic.Bool
	stopped   atomic.Bool
	doneCh    chan struct{}
}

func newMicPublisher(stream voicecall.CaptureStream, log *slog.Logger) (*micPublisher, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"aitreon-mic",
	)
	if err != nil {
		return nil, fmt.Errorf("rtc: create mic track: %w", err)
	}
	return &micPublisher{
		track:  track,
		stream: stream,
		log:    log,
		ssrc:   rand.Uint32(),
		doneCh: make(chan struct{}),
	}, nil
}

// run reads frames until the stream ends. Muted frames are dropped
// while the RTP clock keeps advancing, so unmuting does not glitch.
func (p *micPublisher) run() {
	defer close(p.doneCh)
	buf := make([]byte, 1500)
	for {
		n, err := p.stream.Read(buf)
		if err != nil {
			if err != io.EOF && !p.stopped.Load() {
				p.log.Warn("microphone capture read failed", "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		p.timestamp += micFrameSamples
		if p.muted.Load() {
			continue
		}

		p.seq++
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    opusPayloadType,
				SequenceNumber: uint16(p.seq),
				Timestamp:      p.timestamp,
				SSRC:           p.ssrc,
			},
			Payload: append([]byte(nil), buf[:n]...),
		}
		if err := p.track.WriteRTP(pkt); err != nil {
			if !p.stopped.Load() {
				p.log.Warn("microphone rtp write failed", "error", err)
			}
			return
		}
	}
}

func (p *micPublisher) setMuted(muted bool) { p.muted.Store(muted) }

// stop ends the pump by closing the capture stream.
func (p *micPublisher) stop() {
	if p.stopped.Swap(true) {
		return
	}
	p.stream.Close()
	<-p.doneCh
}
