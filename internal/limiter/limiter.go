// Package limiter throttles repeated failed logins per (identifier, client IP) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and, if not, how long to wait.
	Allow(ctx context.Context, identifier string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, identifier string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, identifier string, ipHash []byte) (bool, time.Duration, error)
}

// Policy is the lockout policy shared by all implementations.
type Policy struct {
	// Window after which the failure counter starts over.
	Window time.Duration
	// MaxFails within Window that trigger a block.
	MaxFails int
	// BlockFor is how long a blocked pair must wait.
	BlockFor time.Duration
}

// DefaultPolicy blocks for 15 minutes after 5 failures within 15 minutes.
func DefaultPolicy() Policy {
	return Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

// Nop never blocks.
type Nop struct{}

func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error) { return true, 0, nil }
func (Nop) Success(context.Context, string, []byte) error                      { return nil }
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}
