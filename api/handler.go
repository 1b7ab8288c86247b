package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/KanavDutta/tokenfence/pkg/tokenfence"
)

// Lookup resolves limiters by name. *tokenfence.Registry implements it.
type Lookup interface {
	Get(name string) (*tokenfence.IntervalRateLimiter, bool)
}

// Handler handles token check and time recording requests
type Handler struct {
	limiters Lookup
	logger   *slog.Logger
}

// NewHandler creates a new API handler. logger may be nil.
func NewHandler(limiters Lookup, logger *slog.Logger) *Handler {
	return &Handler{
		limiters: limiters,
		logger:   logger,
	}
}

// CheckRequest represents the incoming token check request
type CheckRequest struct {
	// Required: configured limiter name
	Limiter string `json:"limiter" validate:"required"`

	// Optional: tokens to spend, default 1
	Count *int64 `json:"count,omitempty" validate:"omitempty,gte=1"`
}

// CheckResponse represents the token check response
type CheckResponse struct {
	Allowed   bool            `json:"allowed"`   // Whether the tokens were granted
	Limit     int64           `json:"limit"`     // Per-window token cap
	Remaining int64           `json:"remaining"` // Tokens the current window can still grant
	Stat      tokenfence.Stat `json:"stat"`      // Last finished window
}

// TimeRequest reports how long work done under granted tokens took
type TimeRequest struct {
	Limiter string `json:"limiter" validate:"required"`
	Ms      int64  `json:"ms" validate:"gte=0,lte=86400000"` // at most one day
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Fields  tokenfence.FieldErrors `json:"fields,omitempty"`
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/check", h.CheckTokens)
	mux.HandleFunc("/time", h.AddTime)
}

// CheckTokens handles POST /check requests
func (h *Handler) CheckTokens(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)

	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST requests are allowed")
		return
	}

	var req CheckRequest
	if !decode(w, r, &req) {
		return
	}

	limiter, ok := h.limiters.Get(req.Limiter)
	if !ok {
		sendError(w, http.StatusNotFound, "unknown_limiter", fmt.Sprintf("%v: %s", tokenfence.ErrUnknownLimiter, req.Limiter))
		return
	}

	count := int64(1)
	if req.Count != nil {
		count = *req.Count
	}

	allowed := limiter.Accept(count)

	if !allowed && h.logger != nil {
		h.logger.Debug("tokens denied", "limiter", req.Limiter, "count", count, "request_id", w.Header().Get(requestIDHeader))
	}

	response := CheckResponse{
		Allowed:   allowed,
		Limit:     limiter.Limit(),
		Remaining: limiter.Remaining(),
		Stat:      limiter.Stat(),
	}

	statusCode := http.StatusOK
	if !allowed {
		statusCode = http.StatusTooManyRequests
	}

	sendJSON(w, statusCode, response)
}

// AddTime handles POST /time requests
func (h *Handler) AddTime(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)

	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST requests are allowed")
		return
	}

	var req TimeRequest
	if !decode(w, r, &req) {
		return
	}

	limiter, ok := h.limiters.Get(req.Limiter)
	if !ok {
		sendError(w, http.StatusNotFound, "unknown_limiter", fmt.Sprintf("%v: %s", tokenfence.ErrUnknownLimiter, req.Limiter))
		return
	}

	limiter.AddTime(time.Duration(req.Ms) * time.Millisecond)
	w.WriteHeader(http.StatusNoContent)
}

// decode reads and validates a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return false
	}

	if err := tokenfence.Validate(v); err != nil {
		var fields tokenfence.FieldErrors
		if errors.As(err, &fields) {
			sendJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_failed",
				Message: fields.Error(),
				Fields:  fields,
			})
			return false
		}
		sendError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}

	return true
}

const requestIDHeader = "X-Request-ID"

// setRequestID echoes a valid incoming request ID or assigns a new one.
func setRequestID(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.New().String()
	}
	w.Header().Set(requestIDHeader, id)
}

func sendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	sendJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
