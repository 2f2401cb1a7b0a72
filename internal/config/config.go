// Package config assembles server settings from defaults, an optional JSON file,
// command-line flags and the environment, in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"
)

// MemoryDSN selects the in-memory credential store.
const MemoryDSN = "memory"

// Environment variables that override everything else.
const (
	EnvAddr   = "INVISICIPHER_ADDR"
	EnvDSN    = "DATABASE_DSN"
	EnvJWTKey = "JWT_KEY"
)

// Config holds runtime settings for the auth server.
type Config struct {
	HTTPAddr       string
	GRPCHealthAddr string
	DatabaseDSN    string
	JWTKey         string
	AccessTTL      time.Duration
	HealthInterval time.Duration

	LimitWindow   time.Duration
	LimitMaxFails int
	LimitBlockFor time.Duration

	// TrustedProxies lists peers (IPs or CIDRs) whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the TCP peer is the client.
	TrustedProxies []string

	Dev bool
}

// Defaults returns development defaults. JWTKey is intentionally empty.
func Defaults() Config {
	return Config{
		HTTPAddr:       ":8000",
		GRPCHealthAddr: ":8001",
		DatabaseDSN:    MemoryDSN,
		AccessTTL:      30 * time.Minute,
		HealthInterval: 10 * time.Second,
		LimitWindow:    15 * time.Minute,
		LimitMaxFails:  5,
		LimitBlockFor:  15 * time.Minute,
	}
}

// Duration accepts "30m"-style strings or integer nanoseconds in JSON.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(time.Duration(x))
	case string:
		p, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(p)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

type fileConfig struct {
	HTTPAddr       *string   `json:"http_addr"`
	GRPCHealthAddr *string   `json:"grpc_health_addr"`
	DatabaseDSN    *string   `json:"database_dsn"`
	JWTKey         *string   `json:"jwt_key"`
	AccessTTL      *Duration `json:"access_ttl"`
	HealthInterval *Duration `json:"health_interval"`
	LimitWindow    *Duration `json:"limit_window"`
	LimitMaxFails  *int      `json:"limit_max_fails"`
	LimitBlockFor  *Duration `json:"limit_block_for"`
	TrustedProxies []string  `json:"trusted_proxies"`
	Dev            *bool     `json:"dev"`
}

func (f fileConfig) apply(c *Config) {
	setIf(&c.HTTPAddr, f.HTTPAddr)
	setIf(&c.GRPCHealthAddr, f.GRPCHealthAddr)
	setIf(&c.DatabaseDSN, f.DatabaseDSN)
	setIf(&c.JWTKey, f.JWTKey)
	setIf(&c.LimitMaxFails, f.LimitMaxFails)
	setIf(&c.Dev, f.Dev)
	if f.TrustedProxies != nil {
		c.TrustedProxies = f.TrustedProxies
	}
	for dst, src := range map[*time.Duration]*Duration{
		&c.AccessTTL:      f.AccessTTL,
		&c.HealthInterval: f.HealthInterval,
		&c.LimitWindow:    f.LimitWindow,
		&c.LimitBlockFor:  f.LimitBlockFor,
	} {
		if src != nil {
			*dst = time.Duration(*src)
		}
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Load builds a Config from args (without the program name) and getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	def := Defaults()
	var flags Config
	var path, proxies string

	fs := flag.NewFlagSet("invisicipher-server", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&flags.HTTPAddr, "addr", def.HTTPAddr, "HTTP listen address")
	fs.StringVar(&flags.GRPCHealthAddr, "grpc-addr", def.GRPCHealthAddr, "gRPC health listen address")
	fs.StringVar(&flags.DatabaseDSN, "dsn", def.DatabaseDSN, `PostgreSQL DSN or "memory"`)
	fs.StringVar(&flags.JWTKey, "jwt-key", "", "HS256 signing key (required)")
	fs.DurationVar(&flags.AccessTTL, "access-ttl", def.AccessTTL, "access token TTL")
	fs.DurationVar(&flags.HealthInterval, "health-interval", def.HealthInterval, "store ping interval")
	fs.DurationVar(&flags.LimitWindow, "limit-window", def.LimitWindow, "failed login counting window")
	fs.IntVar(&flags.LimitMaxFails, "limit-max-fails", def.LimitMaxFails, "failed logins before lockout")
	fs.DurationVar(&flags.LimitBlockFor, "limit-block", def.LimitBlockFor, "lockout duration")
	fs.StringVar(&proxies, "trusted-proxies", "", "comma-separated proxy IPs or CIDRs allowed to set X-Forwarded-For")
	fs.BoolVar(&flags.Dev, "dev", false, "development logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := def
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var fc fileConfig
		if err := json.Unmarshal(b, &fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		fc.apply(&cfg)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.HTTPAddr = flags.HTTPAddr
		case "grpc-addr":
			cfg.GRPCHealthAddr = flags.GRPCHealthAddr
		case "dsn":
			cfg.DatabaseDSN = flags.DatabaseDSN
		case "jwt-key":
			cfg.JWTKey = flags.JWTKey
		case "access-ttl":
			cfg.AccessTTL = flags.AccessTTL
		case "health-interval":
			cfg.HealthInterval = flags.HealthInterval
		case "limit-window":
			cfg.LimitWindow = flags.LimitWindow
		case "limit-max-fails":
			cfg.LimitMaxFails = flags.LimitMaxFails
		case "limit-block":
			cfg.LimitBlockFor = flags.LimitBlockFor
		case "trusted-proxies":
			cfg.TrustedProxies = splitList(proxies)
		case "dev":
			cfg.Dev = flags.Dev
		}
	})

	if v := getenv(EnvAddr); v != "" {
		cfg.HTTPAddr = v
	}
	if v := getenv(EnvDSN); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := getenv(EnvJWTKey); v != "" {
		cfg.JWTKey = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or nonsensical settings.
func (c *Config) Validate() error {
	var errList []error
	if strings.TrimSpace(c.JWTKey) == "" {
		errList = append(errList, fmt.Errorf("missing jwt signing key (-jwt-key or %s)", EnvJWTKey))
	}
	if c.AccessTTL <= 0 {
		errList = append(errList, errors.New("access-ttl must be positive"))
	}
	if c.HealthInterval <= 0 {
		errList = append(errList, errors.New("health-interval must be positive"))
	}
	if c.LimitMaxFails < 1 {
		errList = append(errList, errors.New("limit-max-fails must be at least 1"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}

// InMemory reports whether the in-memory store is selected.
func (c *Config) InMemory() bool { return c.DatabaseDSN == MemoryDSN }

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, v := range c.TrustedProxies {
		v = strings.TrimSpace(v)
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
