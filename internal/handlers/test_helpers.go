package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAdminContext adds operator claims to request context
func WithAdminContext(req *http.Request, subject string) *http.Request {
	claims := &models.TokenClaims{Role: models.RoleAdmin}
	claims.Subject = subject
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is an error with the given message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error message mismatch")
}

// AssertServerErrorResponse checks a sanitized 5xx answer carrying an RFC3339 timestamp
func AssertServerErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.NotEmpty(t, resp.Error)
	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err, "timestamp should be RFC3339")
	return resp
}

// MockLoginRecorder implements LoginRecorder for testing
type MockLoginRecorder struct {
	RecordOutcomeFunc func(ctx context.Context, report services.LoginReport) (*services.Outcome, error)
	Reports           []services.LoginReport
}

func (m *MockLoginRecorder) RecordOutcome(ctx context.Context, report services.LoginReport) (*services.Outcome, error) {
	m.Reports = append(m.Reports, report)
	if m.RecordOutcomeFunc != nil {
		return m.RecordOutcomeFunc(ctx, report)
	}
	return &services.Outcome{Kind: services.OutcomeSuccess}, nil
}

// MockLockoutAdminService implements LockoutAdminServiceInterface for testing
type MockLockoutAdminService struct {
	StatusFunc       func(ctx context.Context, identifier string, limit int) (*services.LockoutStatus, error)
	UnlockFunc       func(ctx context.Context, identifier, actor string) (*models.Lockout, error)
	RecentAlertsFunc func(ctx context.Context, limit, offset int) ([]*models.SecurityAlert, error)
}

func (m *MockLockoutAdminService) Status(ctx context.Context, identifier string, limit int) (*services.LockoutStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, identifier, limit)
	}
	return &services.LockoutStatus{Identifier: identifier, History: []*models.Lockout{}}, nil
}

func (m *MockLockoutAdminService) Unlock(ctx context.Context, identifier, actor string) (*models.Lockout, error) {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, identifier, actor)
	}
	return nil, models.ErrNotFound
}

func (m *MockLockoutAdminService) RecentAlerts(ctx context.Context, limit, offset int) ([]*models.SecurityAlert, error) {
	if m.RecentAlertsFunc != nil {
		return m.RecentAlertsFunc(ctx, limit, offset)
	}
	return []*models.SecurityAlert{}, nil
}

// WithChiRouteContext adds chi route context with URL parameters to the request
//
// Example usage:
//
//	req := httptest.NewRequest("GET", "/admin/lockouts/a@x.com", nil)
//	req = WithChiRouteContext(req, map[string]string{
//	    "identifier": "a@x.com",
//	})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
