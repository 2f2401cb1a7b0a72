package client

import (
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestDefaultDir_UsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, dir+string(os.PathSeparator)+"invisicipher", DefaultDir())
}

func TestTokenStore_SaveLoadDelete(t *testing.T) {
	s := NewTokenStore(t.TempDir())

	_, err := s.Load()
	require.ErrorIs(t, err, ErrNoToken)

	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	tok := signed(t, exp)
	gotExp, err := s.Save(tok)
	require.NoError(t, err)
	assert.True(t, gotExp.Equal(exp), "expiry from exp claim")

	st, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	require.NoError(t, s.Delete())
	_, err = s.Load()
	require.ErrorIs(t, err, ErrNoToken)
	require.NoError(t, s.Delete(), "second delete is a no-op")
}

func TestTokenStore_ExpiredIsNoToken(t *testing.T) {
	s := NewTokenStore(t.TempDir())
	_, err := s.Save(signed(t, time.Now().Add(-time.Minute)))
	require.NoError(t, err)
	_, err = s.Load()
	require.ErrorIs(t, err, ErrNoToken)
}

func TestTokenStore_OpaqueTokenGetsDefaultExpiry(t *testing.T) {
	s := NewTokenStore(t.TempDir())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	exp, err := s.Save("opaque")
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute), exp)

	s.now = func() time.Time { return now.Add(31 * time.Minute) }
	_, err = s.Load()
	require.ErrorIs(t, err, ErrNoToken)
}
