// Package pcm holds the small PCM primitives used by playback sinks:
// a sample format descriptor and a sliding-window ring buffer.
package pcm

import "time"

// Format describes linear 16-bit PCM framing.
type Format struct {
	SampleRate int
	Channels   int
}

// L16Mono48K is the call audio format: 48kHz mono, 16-bit samples.
var L16Mono48K = Format{SampleRate: 48000, Channels: 1}

// Duration returns the play time of n samples in this format.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate*f.Channels)
}

// SamplesFor returns the sample count covering duration d.
func (f Format) SamplesFor(d time.Duration) int {
	return int(d * time.Duration(f.SampleRate*f.Channels) / time.Second)
}
