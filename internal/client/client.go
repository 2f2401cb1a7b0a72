// Package client talks to the auth API and keeps the bearer token on disk.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/invisicipher/internal/errs"
	"github.com/and161185/invisicipher/internal/model"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// Client is an HTTP client for /api/auth.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for baseURL (e.g. "http://127.0.0.1:8000").
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// SignupRequest is the signup form.
type SignupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string            `json:"token"`
	User  model.UserSummary `json:"user"`
}

// FieldDetail is one entry of a 422 response.
type FieldDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// APIError is a non-2xx response. errors.Is matches the errs sentinel for its status.
type APIError struct {
	Status int
	Detail string
	Fields []FieldDetail
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%d: %s", e.Status, e.Detail)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, strings.Join(f.Loc[min(1, len(f.Loc)):], ".")+": "+f.Msg)
	}
	return fmt.Sprintf("%d: %s", e.Status, strings.Join(parts, "; "))
}

// Unwrap maps the status to a sentinel.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return errs.ErrAlreadyExists
	case http.StatusUnauthorized:
		return errs.ErrInvalidCredentials
	case http.StatusUnprocessableEntity:
		return errs.ErrValidation
	case http.StatusTooManyRequests:
		return errs.ErrRateLimited
	}
	return nil
}

// Signup registers a new account. Signup does not log in.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (model.UserSummary, error) {
	var out model.UserSummary
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", "", req, &out)
	return out, err
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"identifier": identifier, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &out)
	return out, err
}

// Me returns the account the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (model.UserSummary, error) {
	var out model.UserSummary
	err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	var raw struct {
		Detail json.RawMessage `json:"detail"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(b, &raw) != nil || len(raw.Detail) == 0 {
		return apiErr
	}
	var s string
	if json.Unmarshal(raw.Detail, &s) == nil {
		apiErr.Detail = s
		return apiErr
	}
	var fields []FieldDetail
	if json.Unmarshal(raw.Detail, &fields) == nil {
		apiErr.Fields = fields
	}
	return apiErr
}

// IsUnauthorized reports whether err means the token or credentials were rejected.
func IsUnauthorized(err error) bool {
	var e *APIError
	return errors.As(err, &e) && e.Status == http.StatusUnauthorized
}
