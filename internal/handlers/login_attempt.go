package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

const maxCheckBodyBytes = 16 << 10

// LoginRecorder records reported login outcomes
type LoginRecorder interface {
	RecordOutcome(ctx context.Context, report services.LoginReport) (*services.Outcome, error)
}

// CheckLoginAttemptRequest is the body of POST /check-login-attempt.
// A missing success field is treated as a failed login.
type CheckLoginAttemptRequest struct {
	Email   string `json:"email" validate:"required,max=320"`
	Success *bool  `json:"success"`
}

// LockedResponse is returned with 403 while an identifier is locked
type LockedResponse struct {
	Locked            bool   `json:"locked"`
	LockedUntil       string `json:"locked_until"`
	Reason            string `json:"reason"`
	AttemptsRemaining int    `json:"attempts_remaining"`
}

// NotLockedResponse is returned with 200 after a failure that did not lock
type NotLockedResponse struct {
	Locked            bool    `json:"locked"`
	AttemptsRemaining int     `json:"attempts_remaining"`
	Warning           *string `json:"warning"`
}

// SuccessResponse is returned with 200 after a successful login report
type SuccessResponse struct {
	Success bool `json:"success"`
}

// LoginAttemptHandler serves the login attempt check endpoint
type LoginAttemptHandler struct {
	recorder LoginRecorder
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewLoginAttemptHandler creates a new LoginAttemptHandler
func NewLoginAttemptHandler(recorder LoginRecorder, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *LoginAttemptHandler {
	return &LoginAttemptHandler{
		recorder: recorder,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// CheckLoginAttempt handles POST /check-login-attempt
func (h *LoginAttemptHandler) CheckLoginAttempt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCheckBodyBytes)

	var req CheckLoginAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	client := pkghttp.ExtractClientInfo(r, h.ipConfig)
	report := services.LoginReport{
		Identifier:  req.Email,
		Success:     req.Success != nil && *req.Success,
		SourceIP:    client.IP,
		ClientAgent: client.Agent,
	}

	outcome, err := h.recorder.RecordOutcome(r.Context(), report)
	if err != nil {
		h.writeRecordError(w, r, err)
		return
	}

	switch outcome.Kind {
	case services.OutcomeSuccess:
		pkghttp.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
	case services.OutcomeLocked:
		pkghttp.WriteJSON(w, http.StatusForbidden, LockedResponse{
			Locked:            true,
			LockedUntil:       outcome.LockedUntil.UTC().Format(time.RFC3339),
			Reason:            outcome.Reason,
			AttemptsRemaining: 0,
		})
	default:
		resp := NotLockedResponse{AttemptsRemaining: outcome.AttemptsRemaining}
		if outcome.Warning {
			msg := remainingWarning(outcome.AttemptsRemaining)
			resp.Warning = &msg
		}
		pkghttp.WriteJSON(w, http.StatusOK, resp)
	}
}

func (h *LoginAttemptHandler) writeRecordError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		pkghttp.WriteBadRequest(w, ve.Message)
		return
	}

	var se *models.StoreError
	if errors.As(err, &se) && se.Transient() {
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable, please retry")
		return
	}

	h.logger.ErrorContext(r.Context(), "login attempt check failed",
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	pkghttp.WriteInternalError(w, "Internal server error")
}

func remainingWarning(remaining int) string {
	if remaining == 1 {
		return "1 attempt remaining before the account is locked"
	}
	return fmt.Sprintf("%d attempts remaining before the account is locked", remaining)
}
