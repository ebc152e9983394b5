package rtc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// signalClient is the websocket signaling channel. One goroutine reads;
// writes are serialized with a mutex. Incoming messages land on a
// buffered channel consumed by the transport.
type signalClient struct {
	conn    *websocket.Conn
	log     *slog.Logger
	msgCh   chan *signalMessage
	closeCh chan struct{}
	errCh   chan error

	closeOnce sync.Once
	writeMu   sync.Mutex

	// deferred collects presence messages that arrived while await was
	// waiting for a handshake message. Only touched before the
	// transport's run loop starts, so no locking.
	deferred []*signalMessage
}

// dialSignaling opens the signaling websocket. serverURL is the media
// server base (ws:// or wss:// or http(s), which is rewritten); the
// token, which encodes room and identity, is carried in the
// Authorization header.
func dialSignaling(ctx context.Context, serverURL, token string, timeout time.Duration, log *slog.Logger) (*signalClient, error) {
	u, err := websocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(ctx, u, headers)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Rejected handshake: retrying with the same token is pointless.
			return nil, fmt.Errorf("rtc: signaling rejected (status %d): %w", resp.StatusCode, err)
		}
		return nil, markTransient(fmt.Errorf("rtc: signaling dial: %w", err))
	}

	c := &signalClient{
		conn:    conn,
		log:     log,
		msgCh:   make(chan *signalMessage, 64),
		closeCh: make(chan struct{}),
		errCh:   make(chan error, 1),
	}
	go c.readLoop()
	return c, nil
}

// websocketURL rewrites the server URL to the signaling endpoint.
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("rtc: parse server url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("rtc: unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rtc"
	return u.String(), nil
}

// readLoop reads until the connection dies. The terminal error is
// published on errCh for the transport to classify.
func (c *signalClient) readLoop() {
	defer close(c.msgCh)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case c.errCh <- err:
			default:
			}
			return
		}
		msg, err := decodeMessage(data)
		if err != nil {
			c.log.Warn("dropping malformed signaling message", "error", err)
			continue
		}
		select {
		case <-c.closeCh:
			return
		case c.msgCh <- msg:
		}
	}
}

// send writes one message. Serialized; gorilla connections do not
// support concurrent writers.
func (c *signalClient) send(m *signalMessage) error {
	data, err := encodeMessage(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closeCh:
		return fmt.Errorf("rtc: signaling closed")
	default:
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// await blocks until a message of the wanted type arrives, skipping
// presence messages that may interleave with the SDP handshake.
func (c *signalClient) await(ctx context.Context, want messageType) (*signalMessage, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closeCh:
			return nil, fmt.Errorf("rtc: signaling closed")
		case msg, ok := <-c.msgCh:
			if !ok {
				return nil, markTransient(fmt.Errorf("rtc: signaling connection lost awaiting %s", want))
			}
			if msg.Type == want {
				return msg, nil
			}
			if msg.Type == msgBye {
				return nil, fmt.Errorf("rtc: server ended session during handshake: %s", msg.Reason)
			}
			c.log.Debug("deferring signaling message during handshake", "type", string(msg.Type))
			c.deferred = append(c.deferred, msg)
		}
	}
}

// close tears the signaling channel down. Safe to call repeatedly.
func (c *signalClient) close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// transientErr marks signaling failures the lifecycle may retry.
type transientErr struct{ err error }

func (e *transientErr) Error() string   { return e.err.Error() }
func (e *transientErr) Unwrap() error   { return e.err }
func (e *transientErr) Transient() bool { return true }

func markTransient(err error) error {
	return &transientErr{err: err}
}
