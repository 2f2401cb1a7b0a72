package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken means no unexpired token is saved.
var ErrNoToken = errors.New("no valid token (login required)")

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenStore keeps the single active token in Dir/token.json.
type TokenStore struct {
	Dir string
	now func() time.Time
}

// DefaultDir is $XDG_CONFIG_HOME/invisicipher or ~/.config/invisicipher.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "invisicipher")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "invisicipher")
}

// NewTokenStore returns a store rooted at dir.
func NewTokenStore(dir string) *TokenStore { return &TokenStore{Dir: dir, now: time.Now} }

// Path is the token file location.
func (s *TokenStore) Path() string { return filepath.Join(s.Dir, "token.json") }

// Save replaces the stored token. The expiry is read from the token's exp claim.
func (s *TokenStore) Save(token string) (time.Time, error) {
	exp := s.now().Add(30 * time.Minute)
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return time.Time{}, err
	}
	b, err := json.MarshalIndent(tokenFile{AccessToken: token, ExpiresAt: exp}, "", "  ")
	if err != nil {
		return time.Time{}, err
	}
	return exp, os.WriteFile(s.Path(), b, 0o600)
}

// Load returns the stored token, or ErrNoToken when it is missing or expired.
func (s *TokenStore) Load() (string, error) {
	b, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || !s.now().Before(tf.ExpiresAt) {
		return "", ErrNoToken
	}
	return tf.AccessToken, nil
}

// Delete forgets the token. Deleting a missing token is not an error.
func (s *TokenStore) Delete() error {
	err := os.Remove(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
