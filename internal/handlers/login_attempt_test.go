package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/handlers"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLoginAttemptHandler(recorder handlers.LoginRecorder) *handlers.LoginAttemptHandler {
	return handlers.NewLoginAttemptHandler(recorder, &pkghttp.IPConfig{}, discardLogger())
}

func TestCheckLoginAttempt_Success(t *testing.T) {
	mock := &handlers.MockLoginRecorder{}
	h := newLoginAttemptHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/check-login-attempt", map[string]interface{}{
		"email":   "a@x.com",
		"success": true,
	})
	req.RemoteAddr = "203.0.113.4:51000"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	w := httptest.NewRecorder()
	h.CheckLoginAttempt(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	require.Len(t, mock.Reports, 1)
	assert.Equal(t, services.LoginReport{
		Identifier:  "a@x.com",
		Success:     true,
		SourceIP:    "203.0.113.4",
		ClientAgent: "Mozilla/5.0",
	}, mock.Reports[0])
}

func TestCheckLoginAttempt_NotLockedWithoutWarning(t *testing.T) {
	mock := &handlers.MockLoginRecorder{
		RecordOutcomeFunc: func(ctx context.Context, report services.LoginReport) (*services.Outcome, error) {
			return &services.Outcome{Kind: services.OutcomeNotLocked, AttemptsRemaining: 4}, nil
		},
	}
	h := newLoginAttemptHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/check-login-attempt", map[string]interface{}{
		"email":   "a@x.com",
		"success": false,
	})
	w := httptest.NewRecorder()
	h.CheckLoginAttempt(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"locked":false,"attempts_remaining":4,"warning":null}`, w.Body.String())
}

func TestCheckLoginAttempt_NotLockedWithWarning(t *testing.T) {
	mock := &handlers.MockLoginRecorder{
		RecordOutcomeFunc: func(ctx context.Context, report services.LoginReport) (*services.Outcome, error) {
			return &services.Outcome{Kind: services.OutcomeNotLocked, AttemptsRemaining: 1, Warning: true}, nil
		},
	}
	h := newLoginAttemptHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/check-login-attempt", map[string]interface{}{
		"email":   "a@x.com",
		"success": false,
	})
	w := httptest.NewRecorder()
	h.CheckLoginAttempt(w, req)

	var resp handlers.NotLockedResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.False(t, resp.Locked)
	assert.Equal(t, 1, resp.AttemptsRemaining)
	require.NotNil(t, resp.Warning)
	assert.Equal(t, "1 attempt remaining before the account is locked", *resp.Warning)
}

func TestCheckLoginAttempt_Locked(t *testing.T) {
	until := time.Date(2026, 2, 1, 10, 34, 0, 0, time.UTC)
	mock := &handlers.MockLoginRecorder{
		RecordOutcomeFunc: func(ctx context.Context, report services.LoginReport) (*services.Outcome, error) {
			return &services.Outcome{Kind: services.OutcomeLocked, LockedUntil: until, Reason: "5 failed attempts"}, nil
		},
	}
	h := newLoginAttemptHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/check-login-attempt", map[string]interface{}{
		"email":   "a@x.com",
		"success": false,
	})
	w := httptest.NewRecorder()
	h.CheckLoginAttempt(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t,
		`{"locked":true,"locked_until":"2026-02-01T10:34:00Z","reason":"5 failed attempts","attempts_remaining":0}`,
		w.Body.String())
}

func TestCheckLoginAttempt_MissingSuccessIsFailure(t *testing.T) {
	mock := &handlers.MockLoginRecorder{
		RecordOutcomeFunc: func(ctx context.Context, report services.LoginReport) (*services.Outcome, error) {
			return &services.Outcome{Kind: services.OutcomeNotLocked, AttemptsRemaining: 4}, nil
		},
	}
	h := newLoginAttemptHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/check-login-attempt", map[string]interface{}{"email": "a@x.com"})
	w := httptest.NewRecorder()
	h.CheckLoginAttempt(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mock.Reports, 1)
	assert.False(t, mock.Reports[0].Success)
}

func TestCheckLoginAttempt_MissingEmail(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"absent", `{"success":false}`},
		{"empty", `{"email":"","success":false}`},
		{"whitespace", `{"email":"   ","success":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &handlers.MockLoginRecorder{}
			h := newLoginAttemptHandler(mock)

			req := httptest.NewRequest("POST", "/check-login-attempt", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.CheckLoginAttempt(w, req)

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "Email is required")
			assert.JSONEq(t, `{"error":"Email is required"}`, w.Body.String())
			assert.Empty(t, mock.Reports, "recorder must not be called")
		})
	}
}

func TestCheckLoginAttempt_MalformedBody(t *testing.T) {
	for _, body := range []string{`{"email":`, `not json`, `{"email":"a@x.com","success":"yes"}`} {
		mock := &handlers.MockLoginRecorder{}
		h := newLoginAttemptHandler(mock)

		req := httptest.NewRequest("POST", "/check-login-attempt", strings.NewReader(body))
		w := httptest.NewRecorder()
		h.CheckLoginAttempt(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "Invalid request body")
		assert.Empty(t, mock.Reports)
	}
}

func TestCheckLoginAttempt_ServiceValidationError(t *testing.T) {
	mock := &handlers.MockLoginRecorder{
		RecordOutcomeFunc: func(ctx context.Context, report services.LoginReport) (*services.Outcome, error) {
			return nil, models.ErrIdentifierRequired
		},
	}
	h := newLoginAttemptHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/check-login-attempt", map[string]interface{}{"email": "a@x.com"})
	w := httptest.NewRecorder()
	h.CheckLoginAttempt(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "Email is required")
}

func TestCheckLoginAttempt_TransientStoreErrorIs503(t *testing.T) {
	mock := &handlers.MockLoginRecorder{
		RecordOutcomeFunc: func(ctx context.Context, report services.LoginReport) (*services.Outcome, error) {
			return nil, &models.StoreError{Op: "transaction", Err: context.DeadlineExceeded}
		},
	}
	h := newLoginAttemptHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/check-login-attempt", map[string]interface{}{"email": "a@x.com"})
	w := httptest.NewRecorder()
	h.CheckLoginAttempt(w, req)

	resp := handlers.AssertServerErrorResponse(t, w, http.StatusServiceUnavailable)
	assert.NotContains(t, resp.Error, "deadline")
}

func TestCheckLoginAttempt_StoreErrorIsSanitized500(t *testing.T) {
	mock := &handlers.MockLoginRecorder{
		RecordOutcomeFunc: func(ctx context.Context, report services.LoginReport) (*services.Outcome, error) {
			return nil, &models.StoreError{Op: "insert failure", Err: errors.New(`relation "failed_login_attempts" does not exist`)}
		},
	}
	h := newLoginAttemptHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/check-login-attempt", map[string]interface{}{"email": "a@x.com"})
	w := httptest.NewRecorder()
	h.CheckLoginAttempt(w, req)

	resp := handlers.AssertServerErrorResponse(t, w, http.StatusInternalServerError)
	assert.Equal(t, "Internal server error", resp.Error)
	assert.NotContains(t, w.Body.String(), "failed_login_attempts")

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Len(t, raw, 2, "only error and timestamp are exposed")
}

func TestCheckLoginAttempt_UnknownClientDefaults(t *testing.T) {
	mock := &handlers.MockLoginRecorder{}
	h := newLoginAttemptHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/check-login-attempt", map[string]interface{}{"email": "a@x.com", "success": true})
	req.RemoteAddr = ""
	req.Header.Del("User-Agent")
	w := httptest.NewRecorder()
	h.CheckLoginAttempt(w, req)

	require.Len(t, mock.Reports, 1)
	assert.Equal(t, pkghttp.Unknown, mock.Reports[0].SourceIP)
	assert.Equal(t, pkghttp.Unknown, mock.Reports[0].ClientAgent)
}
