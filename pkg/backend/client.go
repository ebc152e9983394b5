// Package backend is the HTTP client for the server-side voice-call
// collaborators: access-token issuance, session-end notification,
// transcription persistence, and the video-display poll.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/danieledinun/aitreon-sub001/pkg/voicecall"
)

const (
	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second

	tokenPath         = "/api/voice-call/token"
	sessionEndPath    = "/api/voice-call/session-end"
	transcriptionPath = "/api/voice-call/transcription"
	videoDisplayPath  = "/api/voice-call/video-display"
)

// Client talks to the aitreon web backend. It implements
// voicecall.Backend.
type Client struct {
	config *clientConfig
}

var _ voicecall.Backend = (*Client)(nil)

// clientConfig holds the client configuration.
type clientConfig struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
}

// Option is a function that configures the client.
type Option func(*clientConfig)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:   baseURL,
		userAgent: "aitreon-call-go/1.0",
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: cfg.timeout}
	}
	return &Client{config: cfg}
}

// CreateAccessToken exchanges room and creator identifiers for a
// transport access token and the media server URL.
func (c *Client) CreateAccessToken(ctx context.Context, roomName, creatorID string) (voicecall.AccessToken, error) {
	req := tokenRequest{RoomName: roomName, CreatorID: creatorID}
	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, tokenPath, req, &resp); err != nil {
		return voicecall.AccessToken{}, fmt.Errorf("create access token: %w", err)
	}
	if resp.Token == "" || resp.ServerURL == "" {
		return voicecall.AccessToken{}, fmt.Errorf("create access token: incomplete response (token=%t, url=%t)",
			resp.Token != "", resp.ServerURL != "")
	}
	return voicecall.AccessToken{Token: resp.Token, ServerURL: resp.ServerURL}, nil
}

// NotifySessionEnd tells the server a call terminated so it can reap
// the agent session.
func (c *Client) NotifySessionEnd(ctx context.Context, roomName string, reason voicecall.EndReason) error {
	req := sessionEndRequest{RoomName: roomName, Reason: string(reason)}
	if err := c.doJSON(ctx, http.MethodPost, sessionEndPath, req, nil); err != nil {
		return fmt.Errorf("notify session end: %w", err)
	}
	return nil
}

// SaveTranscription persists one finalized transcription entry.
func (c *Client) SaveTranscription(ctx context.Context, rec voicecall.TranscriptionRecord) error {
	req := transcriptionRequest{
		RoomName:      rec.RoomName,
		CreatorID:     rec.CreatorID,
		ParticipantID: rec.ParticipantID,
		Text:          rec.Text,
		TrackID:       rec.TrackID,
		Timestamp:     rec.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if err := c.doJSON(ctx, http.MethodPost, transcriptionPath, req, nil); err != nil {
		return fmt.Errorf("save transcription: %w", err)
	}
	return nil
}

// PollVideoDisplay returns a pending video instruction for the room,
// or nil if there is none.
func (c *Client) PollVideoDisplay(ctx context.Context, roomName string) (*voicecall.VideoInstruction, error) {
	path := videoDisplayPath + "?room=" + url.QueryEscape(roomName)
	var resp videoDisplayResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("poll video display: %w", err)
	}
	if resp.Video == nil {
		return nil, nil
	}
	return &voicecall.VideoInstruction{
		VideoID: resp.Video.ID,
		Title:   resp.Video.Title,
		URL:     resp.Video.URL,
	}, nil
}

// doJSON performs a single JSON request against the backend.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.userAgent)
	if c.config.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseError(resp.StatusCode, respBody)
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
