// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	// SaltLen is the per-user salt size.
	SaltLen = 16
)

// Argon2 is a salted Argon2id password hasher. The zero value is not usable; use
// DefaultArgon2 or fill every field.
type Argon2 struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultArgon2 returns the production parameters.
func DefaultArgon2() Argon2 {
	return Argon2{Time: argonTime, Memory: argonMemory, Threads: argonThreads, KeyLen: argonKeyLen}
}

// Hash derives a hash of password under a fresh random salt.
func (a Argon2) Hash(password []byte) (hash, salt []byte, err error) {
	salt, err = RandBytes(SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return a.derive(password, salt), salt, nil
}

// Verify reports whether password hashes to expected under salt. Comparison is constant-time.
func (a Argon2) Verify(password, salt, expected []byte) bool {
	got := a.derive(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

func (a Argon2) derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, a.Time, a.Memory, a.Threads, a.KeyLen)
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}
