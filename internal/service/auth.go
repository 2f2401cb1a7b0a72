// Package service contains the authentication service.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/invisicipher/internal/crypto"
	"github.com/and161185/invisicipher/internal/errs"
	"github.com/and161185/invisicipher/internal/limiter"
	"github.com/and161185/invisicipher/internal/model"
	"github.com/and161185/invisicipher/internal/repository"
)

// DefaultAccessTTL is the lifetime of an issued token.
const DefaultAccessTTL = 30 * time.Minute

const (
	minUsernameLen = 3
	minPasswordLen = 8
)

// Hasher is a salted slow password hash.
type Hasher interface {
	Hash(password []byte) (hash, salt []byte, err error)
	Verify(password, salt, expected []byte) bool
}

// SignupInput carries the signup form.
type SignupInput struct {
	FullName string
	Email    string
	Phone    string
	Username string
	Password string
}

// Claims is the JWT payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService signs users up, logs them in and verifies bearer tokens.
type AuthService struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	hasher    Hasher
	now       func() time.Time

	dummyHash []byte
	dummySalt []byte
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithAccessTTL overrides DefaultAccessTTL.
func WithAccessTTL(d time.Duration) Option { return func(s *AuthService) { s.accessTTL = d } }

// WithLimiter enables login throttling.
func WithLimiter(l limiter.Limiter) Option { return func(s *AuthService) { s.lim = l } }

// WithHasher replaces the default Argon2id parameters.
func WithHasher(h Hasher) Option { return func(s *AuthService) { s.hasher = h } }

// WithClock replaces time.Now for token issuance and verification.
func WithClock(now func() time.Time) Option { return func(s *AuthService) { s.now = now } }

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, opts ...Option) (*AuthService, error) {
	if len(signKey) == 0 {
		return nil, errors.New("empty signing key")
	}
	s := &AuthService{
		users:     users,
		signKey:   signKey,
		accessTTL: DefaultAccessTTL,
		lim:       limiter.Nop{},
		hasher:    pkgcrypto.DefaultArgon2(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	// Compared against when the identifier is unknown.
	h, salt, err := s.hasher.Hash([]byte("invisicipher-dummy-password"))
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	s.dummyHash, s.dummySalt = h, salt
	return s, nil
}

// Signup validates the input, hashes the password and stores a new user.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (model.UserSummary, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Username = strings.TrimSpace(in.Username)
	if err := validateSignup(in); err != nil {
		return model.UserSummary{}, err
	}

	hash, salt, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return model.UserSummary{}, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		FullName: in.FullName,
		Email:    in.Email,
		Phone:    in.Phone,
		Username: in.Username,
		PwdHash:  hash,
		SaltAuth: salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.UserSummary{}, err
	}
	return u.Summary(), nil
}

// Login authenticates by username or email with rate limiting by (identifier, ip).
func (s *AuthService) Login(ctx context.Context, identifier, password, ip string) (model.Token, model.UserSummary, error) {
	identifier = strings.TrimSpace(identifier)
	var ve errs.ValidationError
	if identifier == "" {
		ve.Add("identifier", "missing", "Field required")
	}
	if password == "" {
		ve.Add("password", "missing", "Field required")
	}
	if err := ve.OrNil(); err != nil {
		return model.Token{}, model.UserSummary{}, err
	}

	ipHash := limiter.HashIP(ip)
	allowed, retry, err := s.lim.Allow(ctx, identifier, ipHash)
	if err != nil {
		return model.Token{}, model.UserSummary{}, err
	}
	if !allowed {
		return model.Token{}, model.UserSummary{}, &errs.RateLimitError{RetryAfter: retry}
	}

	u, err := s.users.GetByIdentifier(ctx, identifier)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		s.hasher.Verify([]byte(password), s.dummySalt, s.dummyHash)
		return model.Token{}, model.UserSummary{}, s.fail(ctx, identifier, ipHash)
	case err != nil:
		return model.Token{}, model.UserSummary{}, err
	}
	if !s.hasher.Verify([]byte(password), u.SaltAuth, u.PwdHash) {
		return model.Token{}, model.UserSummary{}, s.fail(ctx, identifier, ipHash)
	}

	_ = s.lim.Success(ctx, identifier, ipHash)

	tok, err := s.issueAccessToken(u)
	if err != nil {
		return model.Token{}, model.UserSummary{}, err
	}
	return tok, u.Summary(), nil
}

func (s *AuthService) fail(ctx context.Context, identifier string, ipHash []byte) error {
	if blocked, d, err := s.lim.Failure(ctx, identifier, ipHash); err == nil && blocked {
		return &errs.RateLimitError{RetryAfter: d}
	}
	return errs.ErrInvalidCredentials
}

// issueAccessToken creates a signed HS256 JWT for the given user.
func (s *AuthService) issueAccessToken(u *model.User) (model.Token, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Token{}, err
	}
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti.String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Token{}, fmt.Errorf("sign token: %w", err)
	}
	return model.Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Verify checks the token signature and expiry and resolves its subject.
// Every token problem is reported as errs.ErrInvalidToken.
func (s *AuthService) Verify(ctx context.Context, token string) (*model.User, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errs.ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, errs.ErrInvalidToken
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func validateSignup(in SignupInput) error {
	var ve errs.ValidationError
	if in.FullName == "" {
		ve.Add("full_name", "string_too_short", "String should have at least 1 character")
	}
	if !validEmail(in.Email) {
		ve.Add("email", "value_error", "value is not a valid email address")
	}
	if utf8.RuneCountInString(in.Username) < minUsernameLen {
		ve.Add("username", "string_too_short", "String should have at least 3 characters")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		ve.Add("password", "string_too_short", "String should have at least 8 characters")
	}
	return ve.OrNil()
}

// validEmail accepts a bare local@domain address whose domain has a dot.
func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	a, err := mail.ParseAddress(s)
	if err != nil || a.Name != "" || a.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	return at > 0 && strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
