package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func TestDialStream_EchoAndRemoteClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer old-token", r.Header.Get("Authorization"))
		assert.Equal(t, "raw=1", r.URL.RawQuery)

		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if !assert.NoError(t, err) {
			return
		}
		assert.NoError(t, conn.WriteMessage(websocket.BinaryMessage, append([]byte("echo:"), data...)))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	stream, err := client.DialStream(context.Background(), "/v3/users/alice/devices/d1/resources/$terminal/s1?raw=1")
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.WriteMessage([]byte("ls\r")))

	data, err := stream.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo:ls\r", string(data))

	_, err = stream.ReadMessage()
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestDialStream_RefreshOnRejectedHandshake(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			tokenCalls.Add(1)
			w.Write([]byte(`{"access_token":"new-token"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer new-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if assert.NoError(t, err) {
			conn.Close()
		}
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	stream, err := client.DialStream(context.Background(), "/stream")
	require.NoError(t, err)
	stream.Close()
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestDialStream_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	_, err := client.DialStream(context.Background(), "/stream")
	assert.ErrorIs(t, err, ErrNotFound)
}
