package calllog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestCallRecordRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	rec := CallRecord{
		SessionID: "user-1_creator-1_1755691200000",
		RoomName:  "room-1",
		UserID:    "user-1",
		CreatorID: "creator-1",
		StartedAt: started,
	}
	if err := j.RecordCall(ctx, rec); err != nil {
		t.Fatalf("RecordCall: %v", err)
	}

	// Teardown updates the same record in place.
	rec.EndedAt = started.Add(3 * time.Minute)
	rec.EndReason = "user_hangup"
	if err := j.RecordCall(ctx, rec); err != nil {
		t.Fatalf("RecordCall update: %v", err)
	}

	got, err := j.Call(ctx, rec.SessionID)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.EndReason != "user_hangup" || !got.EndedAt.Equal(rec.EndedAt) {
		t.Errorf("record = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started = %v, want %v", got.StartedAt, started)
	}
}

func TestCallNotFound(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Call(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordCallRequiresSessionID(t *testing.T) {
	j := openTestJournal(t)
	if err := j.RecordCall(context.Background(), CallRecord{RoomName: "room-1"}); err == nil {
		t.Error("empty session id accepted")
	}
}

func TestCallsMostRecentFirst(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := j.RecordCall(ctx, CallRecord{
			SessionID: id,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("RecordCall %s: %v", id, err)
		}
	}

	var got []string
	for rec, err := range j.Calls(ctx) {
		if err != nil {
			t.Fatalf("Calls: %v", err)
		}
		got = append(got, rec.SessionID)
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTranscriptAppendOrder(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	lines := []TranscriptEntry{
		{Speaker: "user-1", Text: "hi there", Timestamp: ts},
		{Speaker: "agent-7", Text: "hello!", Timestamp: ts}, // same timestamp
		{Speaker: "user-1", Text: "how are you?", Timestamp: ts.Add(time.Second)},
	}
	for _, line := range lines {
		if err := j.AppendTranscript(ctx, "sess-1", line); err != nil {
			t.Fatalf("AppendTranscript: %v", err)
		}
	}
	// Another session's entries must not leak in.
	if err := j.AppendTranscript(ctx, "sess-2", TranscriptEntry{Speaker: "x", Text: "other"}); err != nil {
		t.Fatalf("AppendTranscript: %v", err)
	}

	got, err := j.Transcript(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3", len(got))
	}
	for i, want := range lines {
		if got[i].Text != want.Text || got[i].Speaker != want.Speaker {
			t.Errorf("entry[%d] = %+v, want %+v", i, got[i], want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq <= got[i-1].Seq {
			t.Errorf("sequence not monotonic: %d after %d", got[i].Seq, got[i-1].Seq)
		}
	}
}

func TestTranscriptEmpty(t *testing.T) {
	j := openTestJournal(t)
	got, err := j.Transcript(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("entries = %v, want none", got)
	}
}

func TestAppendTranscriptFillsTimestamp(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	if err := j.AppendTranscript(ctx, "sess-1", TranscriptEntry{Speaker: "a", Text: "x"}); err != nil {
		t.Fatalf("AppendTranscript: %v", err)
	}
	got, err := j.Transcript(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("zero timestamp not filled")
	}
}
