package rtc

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessageRoundTrip(t *testing.T) {
	speaking := true
	cases := []*signalMessage{
		{Type: msgJoin, Token: "tok-1"},
		{Type: msgJoined, Room: "room-1", Identity: "user-1",
			Participants: []participantPayload{{Identity: "agent-7", DisplayName: "Creator Agent"}},
			ICEServers:   []string{"stun:stun.example.com:3478"}},
		{Type: msgOffer, SDP: "v=0..."},
		{Type: msgAnswer, SDP: "v=0..."},
		{Type: msgSpeaking, Identity: "agent-7", Speaking: &speaking},
		{Type: msgTranscription, Identity: "agent-7", Text: "hello", Final: true,
			TrackID: "tr-1", Timestamp: time.Now().UnixMilli()},
		{Type: msgBye, Reason: "server shutdown"},
	}
	for _, in := range cases {
		data, err := encodeMessage(in)
		if err != nil {
			t.Fatalf("encode %s: %v", in.Type, err)
		}
		out, err := decodeMessage(data)
		if err != nil {
			t.Fatalf("decode %s: %v", in.Type, err)
		}
		if out.Type != in.Type {
			t.Errorf("type = %s, want %s", out.Type, in.Type)
		}
		if out.ID == "" {
			t.Errorf("%s: encode did not fill the message ID", in.Type)
		}
	}
}

func TestDecodeMessageValidation(t *testing.T) {
	if _, err := decodeMessage([]byte("{not json")); err == nil {
		t.Error("malformed JSON accepted")
	}
	if _, err := decodeMessage([]byte(`{"id":"msg_1"}`)); err == nil {
		t.Error("message without type accepted")
	}
}

func TestSpeakingFlagIsTristate(t *testing.T) {
	// A speaking message without the flag must decode with a nil
	// pointer, not false: the transport drops it instead of emitting a
	// bogus stop event.
	m, err := decodeMessage([]byte(`{"id":"msg_1","type":"speaking","identity":"agent-7"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Speaking != nil {
		t.Errorf("speaking = %v, want nil", *m.Speaking)
	}
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	data, err := encodeMessage(&signalMessage{Type: msgJoin, Token: "tok-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"sdp", "participants", "speaking", "text", "reason"} {
		if _, ok := raw[key]; ok {
			t.Errorf("empty field %q serialized: %s", key, data)
		}
	}
}

func TestTimestampOf(t *testing.T) {
	ms := int64(1755600000000)
	if got := timestampOf(ms); got.UnixMilli() != ms {
		t.Errorf("timestampOf(%d) = %v", ms, got)
	}
	if got := timestampOf(0); got.IsZero() {
		t.Error("timestampOf(0) returned zero time, want now")
	}
}

func TestWebsocketURL(t *testing.T) {
	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "wss://rtc.example.com", want: "wss://rtc.example.com/rtc"},
		{in: "ws://127.0.0.1:8080", want: "ws://127.0.0.1:8080/rtc"},
		{in: "https://rtc.example.com/media/", want: "wss://rtc.example.com/media/rtc"},
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080/rtc"},
		{in: "ftp://rtc.example.com", wantErr: true},
	}
	for _, tc := range cases {
		got, err := websocketURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("websocketURL(%q) accepted", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("websocketURL(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
