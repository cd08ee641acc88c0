package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/iotctl/pkg/session"
)

// memStore is an in-memory session.Store.
type memStore struct {
	mu     sync.Mutex
	record session.Record
	saves  int
}

func (m *memStore) Load() (*session.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.record
	return &r, nil
}

func (m *memStore) Save(record *session.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = *record
	m.saves++
	return nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = session.Record{}
	return nil
}

func newTestClient(server string) (*Client, *memStore) {
	store := &memStore{record: session.Record{
		Server:       server,
		Username:     "alice",
		AccessToken:  "old-token",
		RefreshToken: "refresh-1",
	}}
	return NewClient(store, Config{}, zerolog.Nop()), store
}

func TestClient_DoInjectsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer old-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/users/alice/devices", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"device":"d1"}]`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	var out []map[string]string
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/v1/users/alice/devices", nil, &out))
	assert.Equal(t, "d1", out[0]["device"])
}

func TestClient_DoRefreshesOnceAndRetries(t *testing.T) {
	var tokenCalls, apiCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tokenPath:
			tokenCalls.Add(1)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
			w.Write([]byte(`{"access_token":"new-token","refresh_token":"refresh-2"}`))
		default:
			apiCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer new-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var body map[string]int
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 7, body["n"])
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	client, store := newTestClient(srv.URL)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.Do(context.Background(), http.MethodPost, "/v1/things", map[string]int{"n": 7}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(1), tokenCalls.Load())
	assert.Equal(t, int32(2), apiCalls.Load())

	record, _ := store.Load()
	assert.Equal(t, "new-token", record.AccessToken)
	assert.Equal(t, "refresh-2", record.RefreshToken)
}

func TestClient_DoSecond401IsAuthError(t *testing.T) {
	var tokenCalls, apiCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			tokenCalls.Add(1)
			w.Write([]byte(`{"access_token":"new-token"}`))
			return
		}
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	err := client.Do(context.Background(), http.MethodGet, "/v1/proxies", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, int32(1), tokenCalls.Load())
	assert.Equal(t, int32(2), apiCalls.Load())
}

func TestClient_DoRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, store := newTestClient(srv.URL)

	err := client.Do(context.Background(), http.MethodGet, "/v1/proxies", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, store.saves)
}

func TestClient_DoClassifiesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"device d9 not found"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	err := client.Do(context.Background(), http.MethodGet, "/missing", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "device d9 not found", apiErr.Message)

	err = client.Do(context.Background(), http.MethodGet, "/broken", nil, nil)
	assert.ErrorIs(t, err, ErrServer)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestClient_DoConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, _ := newTestClient(url)
	err := client.Do(context.Background(), http.MethodGet, "/v1/proxies", nil, nil)
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestClient_DoWithoutSession(t *testing.T) {
	client := NewClient(&memStore{}, Config{}, zerolog.Nop())
	err := client.Do(context.Background(), http.MethodGet, "/v1/proxies", nil, nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tokenPath, r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		if r.PostForm.Get("password") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","token_type":"bearer"}`))
	}))
	defer srv.Close()

	store := &memStore{}
	client := NewClient(store, Config{}, zerolog.Nop())

	_, err := client.Login(context.Background(), srv.URL, "alice", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	record, err := client.Login(context.Background(), srv.URL, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, session.Record{Server: srv.URL, Username: "alice", AccessToken: "a1", RefreshToken: "r1"}, *record)
	assert.Equal(t, 1, store.saves)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://iot.example.com", BaseURL("iot.example.com"))
	assert.Equal(t, "http://localhost:8080", BaseURL("http://localhost:8080/"))
	assert.Equal(t, "wss://iot.example.com/x", WebsocketURL("https://iot.example.com/x"))
	assert.Equal(t, "ws://localhost:8080", WebsocketURL("http://localhost:8080"))
}
