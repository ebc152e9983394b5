package backend

// Wire types for the voice-call endpoints. Field names follow the web
// backend's JSON conventions.

type tokenRequest struct {
	RoomName  string `json:"roomName"`
	CreatorID string `json:"creatorId"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
}

type sessionEndRequest struct {
	RoomName string `json:"roomName"`
	Reason   string `json:"reason"`
}

type transcriptionRequest struct {
	RoomName      string `json:"roomName"`
	CreatorID     string `json:"creatorId"`
	ParticipantID string `json:"participantId"`
	Text          string `json:"text"`
	TrackID       string `json:"trackId,omitempty"`
	Timestamp     string `json:"timestamp"`
}

type videoDisplayResponse struct {
	Video *videoPayload `json:"video"`
}

type videoPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}
