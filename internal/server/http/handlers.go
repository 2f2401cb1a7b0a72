package httpserver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/invisicipher/internal/errs"
	"github.com/and161185/invisicipher/internal/model"
	"github.com/and161185/invisicipher/internal/service"
)

type signupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  model.UserSummary `json:"user"`
}

// Signup handles POST /api/auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}

	sum, err := h.auth.Signup(r.Context(), service.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Username: req.Username,
		Password: req.Password,
	})
	h.metrics.observeAuth("signup", err)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, sum)
	case errors.Is(err, errs.ErrAlreadyExists):
		writeDetail(w, http.StatusBadRequest, "Username or email already exists")
	default:
		h.writeError(w, r, err)
	}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	tok, sum, err := h.auth.Login(r.Context(), req.Identifier, req.Password, clientIP(r))
	h.metrics.observeAuth("login", err)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			h.log.Info("login failed", zap.String("request_id", requestID(r)))
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: tok.AccessToken, User: sum})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromCtx(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, u.Summary())
}

// decode reads a JSON body into dst and answers 422 (or 413) itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, validationBody{Detail: []fieldDetail{{
		Loc:  []string{"body"},
		Msg:  "JSON decode error",
		Type: "json_invalid",
	}}})
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
