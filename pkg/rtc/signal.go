// Package rtc is the WebRTC implementation of the voicecall Transport:
// a websocket signaling channel for the SDP exchange and room presence,
// a pion peer connection for media, and a data channel carrying
// speaking and transcription events.
package rtc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// messageType discriminates signaling messages.
type messageType string

const (
	msgJoin              messageType = "join"
	msgJoined            messageType = "joined"
	msgOffer             messageType = "offer"
	msgAnswer            messageType = "answer"
	msgParticipantJoined messageType = "participant_joined"
	msgParticipantLeft   messageType = "participant_left"
	msgSpeaking          messageType = "speaking"
	msgTranscription     messageType = "transcription"
	msgBye               messageType = "bye"
)

// participantPayload is the wire form of a participant.
type participantPayload struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName,omitempty"`
}

// signalMessage is the envelope for every signaling and data-channel
// message. Unused fields are omitted on the wire.
type signalMessage struct {
	ID   string      `json:"id"`
	Type messageType `json:"type"`

	// join / joined
	Room         string               `json:"room,omitempty"`
	Token        string               `json:"token,omitempty"`
	Identity     string               `json:"identity,omitempty"`
	DisplayName  string               `json:"displayName,omitempty"`
	Participants []participantPayload `json:"participants,omitempty"`
	ICEServers   []string             `json:"iceServers,omitempty"`

	// offer / answer
	SDP string `json:"sdp,omitempty"`

	// speaking
	Speaking *bool `json:"speaking,omitempty"`

	// transcription
	Text      string `json:"text,omitempty"`
	Final     bool   `json:"final,omitempty"`
	TrackID   string `json:"trackId,omitempty"`
	Timestamp int64  `json:"ts,omitempty"` // unix milliseconds

	// bye
	Reason string `json:"reason,omitempty"`
}

// generateMessageID generates a unique signaling message ID.
func generateMessageID() string {
	return "msg_" + uuid.New().String()[:12]
}

// encodeMessage marshals a message, filling the ID when empty.
func encodeMessage(m *signalMessage) ([]byte, error) {
	if m.ID == "" {
		m.ID = generateMessageID()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("rtc: marshal %s message: %w", m.Type, err)
	}
	return data, nil
}

// decodeMessage unmarshals a message and validates its type tag.
func decodeMessage(data []byte) (*signalMessage, error) {
	var m signalMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("rtc: parse message: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("rtc: message without type: %s", truncateForLog(data))
	}
	return &m, nil
}

// timestampOf converts the wire timestamp, defaulting to now.
func timestampOf(ms int64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}

func truncateForLog(data []byte) string {
	const max = 200
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}
