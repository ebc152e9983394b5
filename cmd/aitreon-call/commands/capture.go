package commands

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danieledinun/aitreon-sub001/pkg/voicecall"
)

// Frame files carry length-prefixed Opus frames: a uint16 big-endian
// payload length followed by the payload. The mic capture source reads
// this format and the call recorder writes it, so a recorded call can
// be fed back in as a mic source.
const maxFramePayload = 1 << 12

// writeFrame writes one length-prefixed frame.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFramePayload {
		return fmt.Errorf("frame payload %d exceeds %d bytes", len(payload), maxFramePayload)
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads one length-prefixed frame into p.
func readFrame(r io.Reader, p []byte) (int, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, err
	}
	n := int(binary.BigEndian.Uint16(hdr[:]))
	if n > maxFramePayload {
		return 0, fmt.Errorf("frame payload %d exceeds %d bytes", n, maxFramePayload)
	}
	if n > len(p) {
		return 0, io.ErrShortBuffer
	}
	if _, err := io.ReadFull(r, p[:n]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return n, nil
}

// frameCapture acquires microphone audio from a frame file or FIFO.
// A FIFO fed by a live encoder paces itself; a regular file is paced
// here to one frame per 20ms so replayed audio runs at real speed.
type frameCapture struct {
	path string
}

func newFrameCapture(path string) *frameCapture {
	return &frameCapture{path: path}
}

// RequestAccess opens the capture source. Open failures map onto the
// sentinel errors the session lifecycle classifies.
func (c *frameCapture) RequestAccess(ctx context.Context) (voicecall.CaptureStream, error) {
	if c.path == "" {
		return nil, fmt.Errorf("no mic source configured: %w", voicecall.ErrDeviceNotFound)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, fmt.Errorf("open mic source %s: %w", c.path, voicecall.ErrDeviceNotFound)
		case os.IsPermission(err):
			return nil, fmt.Errorf("open mic source %s: %w", c.path, voicecall.ErrPermissionDenied)
		default:
			return nil, fmt.Errorf("open mic source %s: %w", c.path, err)
		}
	}

	paced := true
	if info, err := f.Stat(); err == nil && info.Mode()&os.ModeNamedPipe != 0 {
		paced = false
	}
	return &frameStream{
		f:     f,
		r:     bufio.NewReader(f),
		paced: paced,
	}, nil
}

// frameStream delivers one frame per Read.
type frameStream struct {
	f     *os.File
	r     *bufio.Reader
	paced bool
	last  time.Time
}

func (s *frameStream) Read(p []byte) (int, error) {
	if s.paced {
		if wait := 20*time.Millisecond - time.Since(s.last); wait > 0 && !s.last.IsZero() {
			time.Sleep(wait)
		}
		s.last = time.Now()
	}
	return readFrame(s.r, p)
}

func (s *frameStream) Close() error {
	return s.f.Close()
}
