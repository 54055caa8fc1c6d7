package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/go-chi/chi/v5"
)

// LockoutAdminServiceInterface defines the operator service contract
type LockoutAdminServiceInterface interface {
	Status(ctx context.Context, identifier string, limit int) (*services.LockoutStatus, error)
	Unlock(ctx context.Context, identifier, actor string) (*models.Lockout, error)
	RecentAlerts(ctx context.Context, limit, offset int) ([]*models.SecurityAlert, error)
}

// AlertListResponse is the body of GET /admin/alerts
type AlertListResponse struct {
	Alerts []*models.SecurityAlert `json:"alerts"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// UnlockResponse is the body of a successful unlock
type UnlockResponse struct {
	Unlocked bool            `json:"unlocked"`
	Lockout  *models.Lockout `json:"lockout"`
}

// AdminLockoutHandler handles operator lockout requests
type AdminLockoutHandler struct {
	service LockoutAdminServiceInterface
	logger  *slog.Logger
}

// NewAdminLockoutHandler creates a new AdminLockoutHandler
func NewAdminLockoutHandler(service LockoutAdminServiceInterface, logger *slog.Logger) *AdminLockoutHandler {
	return &AdminLockoutHandler{service: service, logger: logger}
}

// GetLockoutStatus handles GET /admin/lockouts/{identifier}
// Accepts optional query param ?limit=N for the history length.
func (h *AdminLockoutHandler) GetLockoutStatus(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	limit := queryInt(r, "limit", 0)

	status, err := h.service.Status(r.Context(), identifier, limit)
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve lockout status")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// UnlockIdentifier handles POST /admin/lockouts/{identifier}/unlock
func (h *AdminLockoutHandler) UnlockIdentifier(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	actor := "unknown"
	if claims := auth.GetClaimsFromContext(r); claims != nil {
		actor = claims.Subject
	}

	lockout, err := h.service.Unlock(r.Context(), identifier, actor)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No active lockout for identifier")
			return
		}
		h.writeError(w, r, err, "Failed to unlock identifier")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, UnlockResponse{Unlocked: true, Lockout: lockout})
}

// ListAlerts handles GET /admin/alerts
// Accepts optional query params ?limit=N&offset=M.
func (h *AdminLockoutHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	alerts, err := h.service.RecentAlerts(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve security alerts")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AlertListResponse{
		Alerts: alerts,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *AdminLockoutHandler) writeError(w http.ResponseWriter, r *http.Request, err error, message string) {
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

	h.logger.ErrorContext(r.Context(), message, slog.String("path", r.URL.Path), slog.Any("error", err))
	pkghttp.WriteInternalError(w, message)
}

// queryInt parses a non-negative integer query param, returning def when absent or invalid
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
