package voicecall

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TranscriptionEntry is one ingested transcription. Final entries are
// immutable once created and forwarded to the persistence collaborator
// exactly once; interim entries are replaced in place by later interim
// text from the same speaker.
type TranscriptionEntry struct {
	ID        string
	Speaker   string
	Text      string
	Final     bool
	TrackID   string
	Timestamp time.Time
}

// transcriptIngestor merges interim/final streamed transcriptions.
//
// Merge rule: at most one interim entry per speaker; a new interim replaces
// the prior one; a final entry is appended, clears the speaker's interim,
// and is forwarded once. Entries are append-only per speaker in arrival
// order; there is no cross-speaker ordering.
type transcriptIngestor struct {
	mu      sync.Mutex
	interim map[string]*TranscriptionEntry
	final   []TranscriptionEntry

	// forward receives each final entry exactly once. Best-effort: the
	// session wires this to asynchronous persistence whose failures are
	// logged, never propagated.
	forward func(TranscriptionEntry)

	// onCurrent receives the current-transcript display value: the last
	// interim text prefixed by speaker, or "" once the speaker finalizes.
	onCurrent func(speaker, display string)
}

func newTranscriptIngestor(forward func(TranscriptionEntry), onCurrent func(speaker, display string)) *transcriptIngestor {
	return &transcriptIngestor{
		interim:   make(map[string]*TranscriptionEntry),
		forward:   forward,
		onCurrent: onCurrent,
	}
}

// handle ingests one streamed transcription result.
func (g *transcriptIngestor) handle(speaker, text string, final bool, trackID string, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := TranscriptionEntry{
		ID:        uuid.New().String(),
		Speaker:   speaker,
		Text:      text,
		Final:     final,
		TrackID:   trackID,
		Timestamp: ts,
	}

	if !final {
		// Last interim wins; keep the first interim's ID so the entry
		// reads as an update, not a new utterance.
		g.mu.Lock()
		if prev, ok := g.interim[speaker]; ok {
			entry.ID = prev.ID
		}
		g.interim[speaker] = &entry
		g.mu.Unlock()
		if g.onCurrent != nil {
			g.onCurrent(speaker, speaker+": "+text)
		}
		return
	}

	g.mu.Lock()
	delete(g.interim, speaker)
	g.final = append(g.final, entry)
	g.mu.Unlock()
	if g.onCurrent != nil {
		g.onCurrent(speaker, "")
	}
	if g.forward != nil {
		g.forward(entry)
	}
}

// snapshot returns a copy of all finalized entries in arrival order.
func (g *transcriptIngestor) snapshot() []TranscriptionEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]TranscriptionEntry, len(g.final))
	copy(out, g.final)
	return out
}

// interimFor returns the pending interim entry for a speaker, if any.
func (g *transcriptIngestor) interimFor(speaker string) (TranscriptionEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.interim[speaker]
	if !ok {
		return TranscriptionEntry{}, false
	}
	return *e, true
}
