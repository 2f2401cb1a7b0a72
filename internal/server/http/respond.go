package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/and161185/invisicipher/internal/errs"
)

type detailBody struct {
	Detail string `json:"detail"`
}

type fieldDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type validationBody struct {
	Detail []fieldDetail `json:"detail"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, detailBody{Detail: msg})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
}

// writeError maps service errors to responses. Unknown errors are logged and hidden.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *errs.ValidationError
	var rl *errs.RateLimitError
	switch {
	case errors.As(err, &ve):
		body := validationBody{Detail: make([]fieldDetail, 0, len(ve.Fields))}
		for _, f := range ve.Fields {
			body.Detail = append(body.Detail, fieldDetail{Loc: []string{"body", f.Field}, Msg: f.Message, Type: f.Kind})
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", retryAfter(rl))
		writeDetail(w, http.StatusTooManyRequests, "Too many login attempts")
	case errors.Is(err, errs.ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		writeDetail(w, http.StatusTooManyRequests, "Too many login attempts")
	case errors.Is(err, errs.ErrInvalidCredentials), errors.Is(err, errs.ErrInvalidToken):
		writeUnauthorized(w)
	default:
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

func retryAfter(e *errs.RateLimitError) string {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
