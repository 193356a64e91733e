package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoToken is returned when no token has been stored yet.
var ErrNoToken = errors.New("no Google OAuth token found")

const oob = "urn:ietf:wg:oauth:2.0:oob"

// OAuthConfig returns the OAuth2 configuration for the calendar scopes.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  oob,
		Scopes:       CalendarScopes,
	}
}

// AuthURL returns the URL the user visits to authorize access.
func AuthURL(conf *oauth2.Config) string {
	return conf.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it at path.
func Exchange(ctx context.Context, conf *oauth2.Config, path, authCode string) (*oauth2.Token, error) {
	t, err := conf.Exchange(ctx, strings.TrimSpace(authCode))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if err := SaveToken(path, t); err != nil {
		return nil, err
	}
	return t, nil
}

// HasToken reports whether a readable token exists at path.
func HasToken(path string) bool {
	_, err := LoadToken(path)
	return err == nil
}

// LoadToken reads a token from path. Besides JSON it accepts the legacy
// "access refresh" single line format.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, ErrNoToken
	}

	if strings.HasPrefix(trimmed, "{") {
		var t oauth2.Token
		if err := json.Unmarshal([]byte(trimmed), &t); err != nil {
			return nil, fmt.Errorf("invalid token file %s: %w", path, err)
		}
		if t.AccessToken == "" && t.RefreshToken == "" {
			return nil, fmt.Errorf("invalid token file %s: no access or refresh token", path)
		}
		return &t, nil
	}

	f := strings.Fields(trimmed)
	if len(f) != 2 {
		return nil, fmt.Errorf("invalid token format in %s", path)
	}
	return &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	}, nil
}

// SaveToken writes t to path as JSON with owner-only permissions.
func SaveToken(path string, t *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// AuthenticationErrorMessage explains how to re-authorize.
func AuthenticationErrorMessage(path string) string {
	return fmt.Sprintf(
		"Google Calendar OAuth token missing or expired (%s). Run 'tailortalk auth' to authorize calendar access.",
		path,
	)
}
