package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/iotctl/pkg/session"
)

const (
	tokenPath = "/oauth/token"

	defaultTimeout          = 30 * time.Second
	defaultHandshakeTimeout = 15 * time.Second
	maxResponseSize         = 8 << 20
)

// Config holds the transport settings.
type Config struct {
	Timeout            time.Duration // Per request timeout
	HandshakeTimeout   time.Duration // Websocket handshake timeout
	InsecureSkipVerify bool          // Skip TLS certificate verification
}

// Client performs authenticated calls against the platform.
type Client struct {
	store      session.Store
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// requestAttempt tracks the refresh state of one logical request.
type requestAttempt struct {
	refreshed bool
}

// NewClient creates a new Client using the session held by store.
func NewClient(store session.Store, config Config, logger zerolog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaultHandshakeTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		store:      store,
		httpClient: &http.Client{Timeout: config.Timeout, Transport: transport},
		config:     config,
		logger:     logger,
	}
}

// BaseURL returns the HTTP base URL of server. A bare host defaults to https.
func BaseURL(server string) string {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if strings.Contains(server, "://") {
		return server
	}
	return "https://" + server
}

// Do sends an authenticated request and decodes a JSON response into out when out is non-nil.
// body may be nil, url.Values (form encoded) or any JSON serializable value.
// A 401 triggers exactly one token refresh followed by one retry.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	record, err := c.store.Load()
	if err != nil {
		return err
	}
	if !record.IsConfigured() {
		return ErrNoSession
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return err
	}

	attempt := &requestAttempt{}
	for {
		status, data, err := c.send(ctx, method, BaseURL(record.Server)+path, payload, contentType, record.AccessToken)
		if err != nil {
			return err
		}

		if status == http.StatusUnauthorized && !attempt.refreshed {
			attempt.refreshed = true
			c.logger.Debug().Str("path", path).Msg("Access token rejected, refreshing")

			record, err = c.refresh(ctx, record)
			if err != nil {
				return err
			}
			continue
		}

		if status < 200 || status > 299 {
			return statusError(status, data)
		}

		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if raw, ok := out.(*json.RawMessage); ok {
			*raw = append((*raw)[:0], data...)
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Kind: KindGeneric, Status: status, Message: "failed to decode response", Err: err}
		}
		return nil
	}
}

// Login performs the password grant against server and stores the resulting session.
func (c *Client) Login(ctx context.Context, server, username, password string) (*session.Record, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)

	tokens, err := c.requestToken(ctx, server, form)
	if err != nil {
		return nil, err
	}

	record := &session.Record{
		Server:       server,
		Username:     username,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}
	if err := c.store.Save(record); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return record, nil
}

// refresh exchanges the refresh token for a new access token and persists it.
func (c *Client) refresh(ctx context.Context, record *session.Record) (*session.Record, error) {
	if record.RefreshToken == "" {
		return nil, &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: "session expired, please log in again"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", record.RefreshToken)

	tokens, err := c.requestToken(ctx, record.Server, form)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Kind != KindConnectivity {
			return nil, &Error{Kind: KindAuth, Status: apiErr.Status, Message: "session expired, please log in again", Err: err}
		}
		return nil, err
	}

	updated := *record
	updated.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		updated.RefreshToken = tokens.RefreshToken
	}
	if err := c.store.Save(&updated); err != nil {
		return nil, fmt.Errorf("failed to save refreshed session: %w", err)
	}

	c.logger.Debug().Str("user", updated.Username).Msg("Access token refreshed")
	return &updated, nil
}

func (c *Client) requestToken(ctx context.Context, server string, form url.Values) (*tokenResponse, error) {
	status, data, err := c.send(ctx, http.MethodPost, BaseURL(server)+tokenPath, []byte(form.Encode()), "application/x-www-form-urlencoded", "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, statusError(status, data)
	}

	var tokens tokenResponse
	if err := json.Unmarshal(data, &tokens); err != nil || tokens.AccessToken == "" {
		return nil, &Error{Kind: KindServer, Status: status, Message: "invalid token response", Err: err}
	}
	return &tokens, nil
}

// send performs one HTTP exchange. Only failures without a response are returned as errors.
func (c *Client) send(ctx context.Context, method, target string, payload []byte, contentType, token string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, &Error{Kind: KindGeneric, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug().Str("method", method).Str("url", target).Msg("Sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, connectivityError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, connectivityError(err)
	}

	return resp.StatusCode, data, nil
}

// tokenResponse is the OAuth token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

func encodeBody(body any) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return []byte(v.Encode()), "application/x-www-form-urlencoded", nil
	case json.RawMessage:
		return v, "application/json", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, "application/json", nil
	}
}
