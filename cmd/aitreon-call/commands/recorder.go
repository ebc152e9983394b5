package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danieledinun/aitreon-sub001/pkg/audio/pcm"
	"github.com/danieledinun/aitreon-sub001/pkg/rtc"
	"github.com/danieledinun/aitreon-sub001/pkg/voicecall"
)

// recordRingFrames buffers about two seconds of 20ms Opus frames,
// decoupling the RTP reader from disk stalls. The ring holds whole
// frames so overflow drops the oldest audio frame by frame and never
// tears the length-prefixed framing mid-record.
const recordRingFrames = 100

// newRecorderFactory returns a sink factory that records each remote
// audio track to a frame file under dir. Recorded files use the same
// framing the mic capture source reads.
func newRecorderFactory(dir string, log *slog.Logger) voicecall.SinkFactory {
	return func(t voicecall.Track) (voicecall.Sink, error) {
		pr, ok := t.(rtc.PacketReader)
		if !ok {
			return nil, fmt.Errorf("track %s does not expose a packet stream", t.ID())
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create record dir: %w", err)
		}
		name := fmt.Sprintf("%s-%s-%d.opusfr", t.ParticipantIdentity(), t.ID(), time.Now().Unix())
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("create recording: %w", err)
		}

		r := &recorder{
			file: f,
			ring: pcm.NewRing[[]byte](recordRingFrames),
			log:  log.With("recording", name),
		}
		go r.pump(pr)
		go r.drain()
		return r, nil
	}
}

// recorder writes one remote track's frames to disk. The ring sits
// between the RTP reader and the file writer so a slow disk can never
// back-pressure the media path.
type recorder struct {
	file *os.File
	ring *pcm.Ring[[]byte]
	log  *slog.Logger

	muted     atomic.Bool
	closeOnce sync.Once
}

// pump copies RTP payloads into the ring until the track ends. One ring
// element is one frame, so the framing stays intact however the ring
// overflows.
func (r *recorder) pump(pr rtc.PacketReader) {
	for {
		pkt, err := pr.ReadRTP()
		if err != nil {
			r.ring.CloseWrite()
			return
		}
		if r.muted.Load() || len(pkt.Payload) == 0 {
			continue
		}
		frame := append([]byte(nil), pkt.Payload...)
		if _, err := r.ring.Write([][]byte{frame}); err != nil {
			return
		}
	}
}

// drain flushes ring frames to the file in the length-prefixed format.
func (r *recorder) drain() {
	defer r.file.Close()
	frames := make([][]byte, 16)
	for {
		n, err := r.ring.Read(frames)
		for _, frame := range frames[:n] {
			if werr := writeFrame(r.file, frame); werr != nil {
				r.log.Warn("recording write failed", "error", werr)
				r.ring.CloseWithError(werr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// SetMuted pauses recording while playback is muted.
func (r *recorder) SetMuted(muted bool) {
	r.muted.Store(muted)
}

// Close stops recording. The pump keeps running until the track itself
// ends; frames arriving after Close are discarded by the closed ring.
func (r *recorder) Close() error {
	r.closeOnce.Do(func() {
		r.ring.CloseWrite()
	})
	return nil
}
