package filecrypt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Suffix is appended to the plaintext path to name the envelope.
	Suffix = ".enc"

	decryptedPrefix = "decrypted_"
	filePerm        = 0o600
)

// EncryptedPath returns where Encrypt writes the envelope for path.
func EncryptedPath(path string) string { return path + Suffix }

// DecryptedPath returns where Decrypt writes the plaintext recovered from path:
// the Suffix is stripped and the base name gets a "decrypted_" prefix, so the original
// plaintext next to the envelope is never overwritten.
func DecryptedPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, decryptedPrefix+strings.TrimSuffix(base, Suffix))
}

// Encrypt reads the file at path, encrypts it under the key derived from passphrase and
// writes the envelope to EncryptedPath(path). The plaintext file is left untouched.
func Encrypt(path, passphrase string, c Cipher) (string, error) {
	plain, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read plaintext: %w", err)
	}
	env, err := Seal(DeriveKey(passphrase), plain, c)
	if err != nil {
		return "", fmt.Errorf("encrypt %s: %w", c, err)
	}
	out := EncryptedPath(path)
	if err := os.WriteFile(out, env, filePerm); err != nil {
		return "", fmt.Errorf("write envelope: %w", err)
	}
	return out, nil
}

// Decrypt recovers the plaintext of the envelope at path and writes it to DecryptedPath(path).
// A wrong passphrase or a corrupted envelope returns errs.ErrPadding and writes nothing.
func Decrypt(path, passphrase string, c Cipher) (string, error) {
	out := DecryptedPath(path)
	if err := DecryptTo(path, out, passphrase, c); err != nil {
		return "", err
	}
	return out, nil
}

// DecryptTo is Decrypt with an explicit destination.
func DecryptTo(path, dst, passphrase string, c Cipher) error {
	env, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read envelope: %w", err)
	}
	plain, err := Open(DeriveKey(passphrase), env, c)
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", c, err)
	}
	if err := os.WriteFile(dst, plain, filePerm); err != nil {
		return fmt.Errorf("write plaintext: %w", err)
	}
	return nil
}
