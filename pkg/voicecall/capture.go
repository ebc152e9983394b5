package voicecall

import "context"

// CaptureStream is a raw microphone capture stream acquired from the
// platform. Acquiring one doubles as the permission check: the platform
// prompt happens inside CaptureDevice.RequestAccess.
//
// The stream is released unconditionally during session cleanup, even if
// it was never published.
type CaptureStream interface {
	// Read fills p with raw audio samples.
	Read(p []byte) (int, error)

	// Close releases the underlying device.
	Close() error
}

// CaptureDevice acquires microphone capture streams. RequestAccess errors
// must be classifiable: implementations return errors wrapping
// ErrPermissionDenied or ErrDeviceNotFound where applicable so the
// lifecycle controller can map them to the closed error taxonomy.
type CaptureDevice interface {
	RequestAccess(ctx context.Context) (CaptureStream, error)
}
