package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/invisicipher/internal/crypto"
	"github.com/and161185/invisicipher/internal/repository/memory"
	httpserver "github.com/and161185/invisicipher/internal/server/http"
	"github.com/and161185/invisicipher/internal/service"
)

type cli struct {
	t    *testing.T
	addr string
}

func setup(t *testing.T) *cli {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	svc, err := service.NewAuthService(memory.NewUserRepo(), []byte("k"),
		service.WithHasher(pkgcrypto.Argon2{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32}))
	require.NoError(t, err)
	srv := httptest.NewServer(httpserver.NewRouter(httpserver.NewHandler(svc, zap.NewNop())))
	t.Cleanup(srv.Close)
	return &cli{t: t, addr: srv.URL}
}

// run executes the CLI with stdin as the given text.
func (c *cli) run(stdin string, args ...string) (int, string, string) {
	c.t.Helper()
	r, w, err := os.Pipe()
	require.NoError(c.t, err)
	_, _ = w.WriteString(stdin)
	require.NoError(c.t, w.Close())
	defer r.Close()

	var out, errOut bytes.Buffer
	code := run(context.Background(), append([]string{"-addr", c.addr}, args...), r, &out, &errOut)
	return code, out.String(), errOut.String()
}

func (c *cli) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	code, out, errOut := c.run(stdin, args...)
	require.Equal(c.t, 0, code, "stderr: %s", errOut)
	return out
}

func TestCLI_UsageAndVersion(t *testing.T) {
	c := setup(t)

	code, _, errOut := c.run("")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Commands:")

	code, _, errOut = c.run("", "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command")

	assert.Contains(t, c.mustRun("", "version"), "invisicipher dev")
}

func TestCLI_SignupLoginMeLogout(t *testing.T) {
	c := setup(t)

	out := c.mustRun("", "signup", "-name", "Alice", "-email", "a@example.com", "-u", "alice", "-p", "longenough1")
	assert.Contains(t, out, `"username": "alice"`)

	code, _, errOut := c.run("", "signup", "-name", "Alice", "-email", "other@example.com", "-u", "alice", "-p", "longenough1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already exists")

	code, _, errOut = c.run("", "me")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "login required")

	code, _, errOut = c.run("wrong-password\n", "login", "-id", "alice")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid credentials")

	// password from stdin prompt
	out = c.mustRun("longenough1\n", "login", "-id", "a@example.com")
	assert.Contains(t, out, "logged in as alice")

	out = c.mustRun("", "me")
	assert.Contains(t, out, `"email": "a@example.com"`)

	assert.Contains(t, c.mustRun("", "logout"), "logged out")
	code, _, _ = c.run("", "me")
	assert.Equal(t, 1, code)
}

func TestCLI_EncryptDecryptGatedByLogin(t *testing.T) {
	c := setup(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	data := bytes.Repeat([]byte("pixels"), 1000)
	require.NoError(t, os.WriteFile(src, data, 0o600))

	code, _, errOut := c.run("", "encrypt", "-in", src, "-cipher", "aes", "-key", "correct-key")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "login required")
	_, err := os.Stat(src + ".enc")
	assert.True(t, os.IsNotExist(err), "nothing encrypted without login")

	c.mustRun("", "signup", "-name", "Alice", "-email", "a@example.com", "-u", "alice", "-p", "longenough1")
	c.mustRun("", "login", "-id", "alice", "-p", "longenough1")

	for _, cipher := range []string{"aes", "blowfish"} {
		enc := strings.TrimSpace(c.mustRun("correct-key\n", "encrypt", "-in", src, "-cipher", cipher))
		assert.Equal(t, src+".enc", enc)

		dec := strings.TrimSpace(c.mustRun("", "decrypt", "-in", enc, "-cipher", cipher, "-key", "correct-key"))
		assert.Equal(t, filepath.Join(dir, "decrypted_photo.png"), dec)
		got, err := os.ReadFile(dec)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		custom := filepath.Join(dir, "out-"+cipher)
		c.mustRun("", "decrypt", "-in", enc, "-cipher", cipher, "-key", "correct-key", "-out", custom)
		got, err = os.ReadFile(custom)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.enc"), []byte("not a real envelope"), 0o600))
	code, _, errOut = c.run("", "decrypt", "-in", filepath.Join(dir, "junk.enc"), "-cipher", "aes", "-key", "k")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "wrong key or corrupted file")

	code, _, errOut = c.run("", "encrypt", "-in", src, "-cipher", "des", "-key", "k")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "des")
}

func TestDescribe_PassesThroughUnknownErrors(t *testing.T) {
	assert.Equal(t, "boom", describe(assertErr("boom")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
