package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/invisicipher/migrations"
)

func TestEmbeddedMigrations_AreGooseFiles(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, n := range names {
		b, err := fs.ReadFile(migrations.FS, n)
		require.NoError(t, err)
		body := string(b)
		require.True(t, strings.Contains(body, "-- +goose Up"), n)
		require.True(t, strings.Contains(body, "-- +goose Down"), n)
	}
}

func TestUsersMigration_HasUniqueIndexes(t *testing.T) {
	b, err := fs.ReadFile(migrations.FS, "00001_users.sql")
	require.NoError(t, err)
	require.Contains(t, string(b), "UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username)")
	require.Contains(t, string(b), "UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email)")
}

func TestUp_BadDSN(t *testing.T) {
	err := Up(t.Context(), "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	require.Error(t, err)
}
