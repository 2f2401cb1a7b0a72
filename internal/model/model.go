// Package model defines domain entities used by services and repositories.
package model

import "time"

// User represents an account stored on the server. The password is never stored in plaintext.
type User struct {
	ID        int64  // assigned by the store, immutable
	FullName  string // non-empty
	Email     string // unique
	Phone     string // optional, "" when absent
	Username  string // unique, >= 3 chars
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	CreatedAt time.Time
}

// Summary returns the public view of the user.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
}

// UserSummary is what the API exposes about a user; it never carries the hash.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}
