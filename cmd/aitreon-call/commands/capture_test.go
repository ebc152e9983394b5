package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/danieledinun/aitreon-sub001/pkg/voicecall"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{{0x01}, {0xaa, 0xbb, 0xcc}, make([]byte, 960)}
	for _, f := range frames {
		if err := writeFrame(&buf, f); err != nil {
			t.Fatalf("writeFrame: %v", err)
		}
	}

	p := make([]byte, 1500)
	for i, want := range frames {
		n, err := readFrame(&buf, p)
		if err != nil {
			t.Fatalf("readFrame[%d]: %v", i, err)
		}
		if !bytes.Equal(p[:n], want) {
			t.Errorf("frame[%d] = %d bytes, want %d", i, n, len(want))
		}
	}
	if _, err := readFrame(&buf, p); err != io.EOF {
		t.Errorf("err = %v, want io.EOF at end of stream", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:4])
	if _, err := readFrame(truncated, make([]byte, 16)); err != io.ErrUnexpectedEOF {
		t.Errorf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	if err := writeFrame(io.Discard, make([]byte, maxFramePayload+1)); err == nil {
		t.Error("oversized payload accepted")
	}
}

func TestFrameCaptureMissingSource(t *testing.T) {
	ctx := context.Background()

	if _, err := newFrameCapture("").RequestAccess(ctx); !errors.Is(err, voicecall.ErrDeviceNotFound) {
		t.Errorf("empty path err = %v, want ErrDeviceNotFound", err)
	}

	missing := filepath.Join(t.TempDir(), "nope.opusfr")
	if _, err := newFrameCapture(missing).RequestAccess(ctx); !errors.Is(err, voicecall.ErrDeviceNotFound) {
		t.Errorf("missing file err = %v, want ErrDeviceNotFound", err)
	}
}

func TestFrameCaptureReadsFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mic.opusfr")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, payload := range [][]byte{{0x10, 0x20}, {0x30}} {
		if err := writeFrame(f, payload); err != nil {
			t.Fatalf("writeFrame: %v", err)
		}
	}
	f.Close()

	stream, err := newFrameCapture(path).RequestAccess(context.Background())
	if err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}
	defer stream.Close()

	p := make([]byte, 16)
	n, err := stream.Read(p)
	if err != nil || n != 2 || p[0] != 0x10 {
		t.Fatalf("first frame: n=%d err=%v", n, err)
	}
	n, err = stream.Read(p)
	if err != nil || n != 1 || p[0] != 0x30 {
		t.Fatalf("second frame: n=%d err=%v", n, err)
	}
	if _, err := stream.Read(p); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
