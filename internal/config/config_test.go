package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeJSON(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	assert.Equal(t, ":8000", c.HTTPAddr)
	assert.Equal(t, MemoryDSN, c.DatabaseDSN)
	assert.Equal(t, 30*time.Minute, c.AccessTTL)
	assert.Empty(t, c.JWTKey)
	assert.True(t, c.InMemory())
}

func TestLoad_RequiresJWTKey(t *testing.T) {
	_, err := Load(nil, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt")
}

func TestLoad_Precedence(t *testing.T) {
	path := writeJSON(t, `{
		"http_addr": ":9000",
		"database_dsn": "postgres://file",
		"jwt_key": "from-file",
		"access_ttl": "10m",
		"limit_window": 60000000000,
		"limit_max_fails": 3
	}`)

	got, err := Load(
		[]string{"-config", path, "-dsn", "postgres://flag", "-limit-block", "2m", "-dev"},
		env(map[string]string{EnvJWTKey: "from-env"}),
	)
	require.NoError(t, err)

	want := Defaults()
	want.HTTPAddr = ":9000"              // file
	want.DatabaseDSN = "postgres://flag" // flag beats file
	want.JWTKey = "from-env"             // env beats file
	want.AccessTTL = 10 * time.Minute    // file
	want.LimitWindow = time.Minute       // file, integer nanoseconds
	want.LimitMaxFails = 3               // file
	want.LimitBlockFor = 2 * time.Minute // flag
	want.Dev = true                      // flag
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvBeatsFlags(t *testing.T) {
	got, err := Load(
		[]string{"-addr", ":1", "-dsn", "postgres://flag", "-jwt-key", "flag"},
		env(map[string]string{EnvAddr: ":2", EnvDSN: "postgres://env", EnvJWTKey: "env"}),
	)
	require.NoError(t, err)
	assert.Equal(t, ":2", got.HTTPAddr)
	assert.Equal(t, "postgres://env", got.DatabaseDSN)
	assert.Equal(t, "env", got.JWTKey)
	assert.False(t, got.InMemory())
}

func TestLoad_UnsetFlagsDoNotClobberFile(t *testing.T) {
	path := writeJSON(t, `{"grpc_health_addr": ":7001", "jwt_key": "k"}`)
	got, err := Load([]string{"-config", path}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, ":7001", got.GRPCHealthAddr)
	assert.Equal(t, ":8000", got.HTTPAddr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]string{"-config", filepath.Join(t.TempDir(), "missing.json")}, env(nil))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load([]string{"-config", writeJSON(t, `{"access_ttl": "soon"}`)}, env(nil))
	require.Error(t, err)

	_, err = Load([]string{"-no-such-flag"}, env(nil))
	require.Error(t, err)

	_, err = Load([]string{"-jwt-key", "k", "-access-ttl", "0s", "-limit-max-fails", "0"}, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access-ttl")
	assert.Contains(t, err.Error(), "limit-max-fails")
}

func TestLoad_TrustedProxies(t *testing.T) {
	path := writeJSON(t, `{"jwt_key": "k", "trusted_proxies": ["10.0.0.0/8"]}`)
	got, err := Load([]string{"-config", path}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8"}, got.TrustedProxies)

	got, err = Load([]string{"-config", path, "-trusted-proxies", " 127.0.0.1, ::1 ,192.168.1.7/16"}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1", "::1", "192.168.1.7/16"}, got.TrustedProxies)

	prefixes, err := got.TrustedProxyPrefixes()
	require.NoError(t, err)
	want := []netip.Prefix{
		netip.MustParsePrefix("127.0.0.1/32"),
		netip.MustParsePrefix("::1/128"),
		netip.MustParsePrefix("192.168.0.0/16"),
	}
	assert.Equal(t, want, prefixes)

	got, err = Load([]string{"-jwt-key", "k"}, env(nil))
	require.NoError(t, err)
	assert.Empty(t, got.TrustedProxies)

	_, err = Load([]string{"-jwt-key", "k", "-trusted-proxies", "proxy.local"}, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trusted proxy")
}
