package api

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ErrStreamClosed is returned by Stream.ReadMessage once the peer closed the stream.
var ErrStreamClosed = errors.New("stream closed")

const closeWriteTimeout = time.Second

// Stream is a full-duplex binary message stream.
type Stream interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	// CloseGracefully sends a close frame and lets the peer finish the closing handshake.
	CloseGracefully() error
	Close() error
}

// DialStream opens an authenticated websocket to path, which may carry a query string.
// A handshake rejected with 401 triggers one token refresh and one retry.
func (c *Client) DialStream(ctx context.Context, path string) (Stream, error) {
	record, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if !record.IsConfigured() {
		return nil, ErrNoSession
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.HandshakeTimeout,
	}
	if c.config.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	attempt := &requestAttempt{}
	for {
		target := WebsocketURL(BaseURL(record.Server) + path)
		header := http.Header{}
		header.Set("Authorization", "Bearer "+record.AccessToken)

		c.logger.Debug().Str("url", target).Msg("Dialing stream")

		conn, resp, err := dialer.DialContext(ctx, target, header)
		if err == nil {
			return &wsStream{conn: conn}, nil
		}

		if resp == nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, connectivityError(err)
		}

		if resp.StatusCode == http.StatusUnauthorized && !attempt.refreshed {
			attempt.refreshed = true
			record, err = c.refresh(ctx, record)
			if err != nil {
				return nil, err
			}
			continue
		}

		return nil, &Error{Kind: statusError(resp.StatusCode, nil).Kind, Status: resp.StatusCode, Message: "stream handshake rejected", Err: err}
	}
}

// WebsocketURL maps an http(s) URL to its ws(s) equivalent.
func WebsocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}

// wsStream adapts a gorilla connection to Stream. Writes must come from a single goroutine.
type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, ErrStreamClosed
		}
		return nil, err
	}
	return data, nil
}

func (s *wsStream) WriteMessage(data []byte) error {
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *wsStream) CloseGracefully() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
