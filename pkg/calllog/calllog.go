// Package calllog is the local call journal: call records and finalized
// transcripts persisted in BadgerDB so past calls can be replayed
// offline. It is write-through storage for the CLI, not a cache of the
// server-side history.
package calllog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a call record does not exist.
var ErrNotFound = errors.New("calllog: not found")

const (
	callPrefix       = "call:"
	transcriptPrefix = "ts:"
)

// CallRecord is one journaled call.
type CallRecord struct {
	SessionID string    `msgpack:"sid"`
	RoomName  string    `msgpack:"room"`
	UserID    string    `msgpack:"uid"`
	CreatorID string    `msgpack:"cid"`
	StartedAt time.Time `msgpack:"start"`
	EndedAt   time.Time `msgpack:"end,omitempty"`
	EndReason string    `msgpack:"reason,omitempty"`
}

// TranscriptEntry is one finalized transcription line of a call.
type TranscriptEntry struct {
	Seq       uint64    `msgpack:"seq"`
	Speaker   string    `msgpack:"spk"`
	Text      string    `msgpack:"txt"`
	TrackID   string    `msgpack:"trk,omitempty"`
	Timestamp time.Time `msgpack:"ts"`
}

// Options configures the journal.
type Options struct {
	// Dir is the directory for the data files. Required unless InMemory.
	Dir string

	// InMemory runs the journal without disk persistence. For tests.
	InMemory bool
}

// Journal is the BadgerDB-backed call journal.
type Journal struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (or creates) the journal.
func Open(opts Options) (*Journal, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("calllog: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("calllog: open: %w", err)
	}
	seq, err := db.GetSequence([]byte("seq:transcript"), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("calllog: sequence: %w", err)
	}
	return &Journal{db: db, seq: seq}, nil
}

// Close releases the journal.
func (j *Journal) Close() error {
	j.seq.Release()
	return j.db.Close()
}

// RecordCall inserts or updates a call record. Called once when a call
// starts and again at teardown with the end time and reason.
func (j *Journal) RecordCall(_ context.Context, rec CallRecord) error {
	if rec.SessionID == "" {
		return errors.New("calllog: CallRecord.SessionID is required")
	}
	val, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("calllog: encode call record: %w", err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(callKey(rec.SessionID), val)
	})
}

// Call returns one call record.
func (j *Journal) Call(_ context.Context, sessionID string) (CallRecord, error) {
	var rec CallRecord
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(callKey(sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return CallRecord{}, ErrNotFound
	}
	if err != nil {
		return CallRecord{}, fmt.Errorf("calllog: read call record: %w", err)
	}
	return rec, nil
}

// Calls iterates all journaled calls, most recent first.
func (j *Journal) Calls(_ context.Context) iter.Seq2[CallRecord, error] {
	return func(yield func(CallRecord, error) bool) {
		var recs []CallRecord
		err := j.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = []byte(callPrefix)
			it := txn.NewIterator(iterOpts)
			defer it.Close()
			for it.Seek(iterOpts.Prefix); it.ValidForPrefix(iterOpts.Prefix); it.Next() {
				var rec CallRecord
				if err := it.Item().Value(func(val []byte) error {
					return msgpack.Unmarshal(val, &rec)
				}); err != nil {
					return err
				}
				recs = append(recs, rec)
			}
			return nil
		})
		if err != nil {
			yield(CallRecord{}, fmt.Errorf("calllog: list calls: %w", err))
			return
		}
		sort.Slice(recs, func(i, k int) bool {
			return recs[i].StartedAt.After(recs[k].StartedAt)
		})
		for _, rec := range recs {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// AppendTranscript journals one finalized transcription line. Entries
// get a journal-wide monotonic sequence number so replay order is
// stable even when timestamps collide.
func (j *Journal) AppendTranscript(_ context.Context, sessionID string, entry TranscriptEntry) error {
	if sessionID == "" {
		return errors.New("calllog: sessionID is required")
	}
	seq, err := j.seq.Next()
	if err != nil {
		return fmt.Errorf("calllog: next sequence: %w", err)
	}
	entry.Seq = seq
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	val, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("calllog: encode transcript entry: %w", err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(transcriptKey(sessionID, seq), val)
	})
}

// Transcript returns all journaled transcript lines of a call in append
// order.
func (j *Journal) Transcript(_ context.Context, sessionID string) ([]TranscriptEntry, error) {
	prefix := []byte(transcriptPrefix + sessionID + ":")
	var entries []TranscriptEntry
	err := j.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry TranscriptEntry
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calllog: read transcript: %w", err)
	}
	return entries, nil
}

func callKey(sessionID string) []byte {
	return []byte(callPrefix + sessionID)
}

// transcriptKey orders entries lexicographically by fixed-width
// sequence number.
func transcriptKey(sessionID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%016x", transcriptPrefix, sessionID, seq))
}
