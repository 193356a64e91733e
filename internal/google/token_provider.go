package google

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// TokenProvider supplies OAuth tokens for Google APIs.
type TokenProvider interface {
	// TokenSource returns a refreshing token source.
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)

	// HasToken reports whether a token is available.
	HasToken() bool
}

// FileTokenProvider reads tokens from a file and writes refreshed tokens
// back to it.
type FileTokenProvider struct {
	path string
	conf *oauth2.Config
}

// NewFileTokenProvider creates a file-based token provider.
func NewFileTokenProvider(path string, conf *oauth2.Config) *FileTokenProvider {
	return &FileTokenProvider{path: path, conf: conf}
}

// Path returns the token file location.
func (p *FileTokenProvider) Path() string {
	return p.path
}

// HasToken checks if the token file holds a token.
func (p *FileTokenProvider) HasToken() bool {
	return HasToken(p.path)
}

// TokenSource returns a source that refreshes through the OAuth config and
// persists every new token.
func (p *FileTokenProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	t, err := LoadToken(p.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", AuthenticationErrorMessage(p.path), err)
	}

	return &persistingSource{
		base: p.conf.TokenSource(ctx, t),
		path: p.path,
		last: t.AccessToken,
	}, nil
}

type persistingSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	t, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccessToken != s.last {
		if err := SaveToken(s.path, t); err != nil {
			return nil, err
		}
		s.last = t.AccessToken
	}
	return t, nil
}

// StaticTokenProvider serves a fixed token.
type StaticTokenProvider struct {
	Token *oauth2.Token
}

// TokenSource returns a static source.
func (p StaticTokenProvider) TokenSource(context.Context) (oauth2.TokenSource, error) {
	if p.Token == nil {
		return nil, ErrNoToken
	}
	return oauth2.StaticTokenSource(p.Token), nil
}

// HasToken reports whether a token is configured.
func (p StaticTokenProvider) HasToken() bool {
	return p.Token != nil
}
