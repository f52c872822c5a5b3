package auth

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/amoylab/hublink/internal/common/config"
)

var errInvalidCredential = errors.New("credential is empty or expired")

// NewTokenSource returns a source for the configured static credential,
// or nil when none is configured.
func NewTokenSource(cfg config.AuthConfig) oauth2.TokenSource {
	if cfg.Token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	})
}

// Credential returns the current access token of ts. A nil source yields
// an empty credential.
func Credential(ts oauth2.TokenSource) (string, error) {
	if ts == nil {
		return "", nil
	}
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("failed to obtain credential: %w", err)
	}
	if !tok.Valid() {
		return "", errInvalidCredential
	}
	return tok.AccessToken, nil
}
