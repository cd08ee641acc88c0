package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Record is the persisted login state of the CLI.
type Record struct {
	Server       string `json:"server,omitempty"`        // Platform host, optionally with scheme
	Username     string `json:"username,omitempty"`      // Account the tokens belong to
	AccessToken  string `json:"access_token,omitempty"`  // Bearer token for API calls
	RefreshToken string `json:"refresh_token,omitempty"` // Token used to mint a new access token
}

// IsConfigured reports whether the record carries everything needed for an authenticated call.
func (r *Record) IsConfigured() bool {
	return r != nil && r.Server != "" && r.Username != "" && r.AccessToken != ""
}

// ExpiresAt returns the exp claim of the access token. The signature is not verified,
// the platform is the only party that can do that.
func (r *Record) ExpiresAt() (time.Time, error) {
	if r == nil || r.AccessToken == "" {
		return time.Time{}, errors.New("no access token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(r.AccessToken, claims); err != nil {
		return time.Time{}, err
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, errors.New("JWT expiration (exp) claim missing or invalid")
	}

	return time.Unix(int64(exp), 0), nil
}
