package commands

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtp"

	"github.com/danieledinun/aitreon-sub001/pkg/audio/pcm"
	"github.com/danieledinun/aitreon-sub001/pkg/voicecall"
)

// packetTrack is a Track whose packet stream is a fixed list.
type packetTrack struct {
	id       string
	identity string
	packets  []*rtp.Packet
}

func (t *packetTrack) ID() string                  { return t.id }
func (t *packetTrack) ParticipantIdentity() string { return t.identity }
func (t *packetTrack) Kind() voicecall.TrackKind   { return voicecall.TrackMicrophone }

func (t *packetTrack) ReadRTP() (*rtp.Packet, error) {
	if len(t.packets) == 0 {
		return nil, io.EOF
	}
	pkt := t.packets[0]
	t.packets = t.packets[1:]
	return pkt, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForRecording(t *testing.T, dir string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 1 {
			path := filepath.Join(dir, entries[0].Name())
			// Wait for the drain goroutine to finish writing.
			var last int64 = -1
			for time.Now().Before(deadline) {
				info, err := os.Stat(path)
				if err == nil && info.Size() > 0 && info.Size() == last {
					return path
				}
				if err == nil {
					last = info.Size()
				}
				time.Sleep(10 * time.Millisecond)
			}
			return path
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no recording file appeared")
	return ""
}

func TestRecorderWritesFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")
	factory := newRecorderFactory(dir, discardLogger())

	track := &packetTrack{
		id:       "tr-1",
		identity: "agent-7",
		packets: []*rtp.Packet{
			{Payload: []byte{0x01, 0x02}},
			{Payload: nil}, // empty payloads are skipped
			{Payload: []byte{0x03}},
		},
	}
	sink, err := factory(track)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer sink.Close()

	path := waitForRecording(t, dir)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	r := bytes.NewReader(data)
	p := make([]byte, 16)
	n, err := readFrame(r, p)
	if err != nil || n != 2 || p[0] != 0x01 {
		t.Fatalf("first frame: n=%d err=%v", n, err)
	}
	n, err = readFrame(r, p)
	if err != nil || n != 1 || p[0] != 0x03 {
		t.Fatalf("second frame: n=%d err=%v", n, err)
	}
	if _, err := readFrame(r, p); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestRecorderOverflowDropsWholeFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overflow.opusfr")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	r := &recorder{
		file: f,
		ring: pcm.NewRing[[]byte](2),
		log:  discardLogger(),
	}
	track := &packetTrack{
		id:       "tr-1",
		identity: "agent-7",
		packets: []*rtp.Packet{
			{Payload: []byte{0x01, 0x01}},
			{Payload: []byte{0x02}},
			{Payload: []byte{0x03, 0x03, 0x03}},
			{Payload: []byte{0x04}},
		},
	}

	// Pump everything before the drain runs so the tiny ring overflows;
	// the file must still parse cleanly, holding the newest frames whole.
	r.pump(track)
	r.drain()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	fr := bytes.NewReader(data)
	p := make([]byte, 16)
	n, err := readFrame(fr, p)
	if err != nil || n != 3 || p[0] != 0x03 {
		t.Fatalf("first surviving frame: n=%d err=%v", n, err)
	}
	n, err = readFrame(fr, p)
	if err != nil || n != 1 || p[0] != 0x04 {
		t.Fatalf("second surviving frame: n=%d err=%v", n, err)
	}
	if _, err := readFrame(fr, p); err != io.EOF {
		t.Errorf("err = %v, want io.EOF (no torn frame at the tail)", err)
	}
}

func TestRecorderRejectsOpaqueTrack(t *testing.T) {
	factory := newRecorderFactory(t.TempDir(), discardLogger())
	if _, err := factory(opaqueTrack{}); err == nil {
		t.Error("track without a packet stream accepted")
	}
}

type opaqueTrack struct{}

func (opaqueTrack) ID() string                  { return "tr-x" }
func (opaqueTrack) ParticipantIdentity() string { return "agent-7" }
func (opaqueTrack) Kind() voicecall.TrackKind   { return voicecall.TrackOther }
