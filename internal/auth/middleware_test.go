package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func protected(t *testing.T, tm *TokenManager) (http.Handler, *string) {
	t.Helper()
	var subject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := GetClaimsFromContext(r); claims != nil {
			subject = claims.Subject
		}
		w.WriteHeader(http.StatusOK)
	})
	return AuthMiddleware(tm)(RequireRole(models.RoleAdmin)(next)), &subject
}

func TestAuthMiddleware_AdminTokenPasses(t *testing.T) {
	tm := NewTokenManager(testSecret)
	token, err := tm.GenerateToken("ops@example.com", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	handler, subject := protected(t, tm)
	req := httptest.NewRequest("GET", "/admin/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops@example.com", *subject)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tm := NewTokenManager(testSecret)

	userToken, err := tm.GenerateToken("someone", "user", time.Hour)
	require.NoError(t, err)
	expired, err := tm.GenerateToken("ops@example.com", models.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	foreign, err := NewTokenManager("another-secret-another-secret-xx").GenerateToken("ops@example.com", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"non-admin role", "Bearer " + userToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := protected(t, tm)
			req := httptest.NewRequest("GET", "/admin/alerts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	tm := NewTokenManager(testSecret)

	claims := &models.TokenClaims{
		Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RequiresSubject(t *testing.T) {
	tm := NewTokenManager(testSecret)
	token, err := tm.GenerateToken("", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestRequireRole_WithoutClaims(t *testing.T) {
	handler := RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/admin/alerts", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
