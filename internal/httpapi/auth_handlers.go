package httpapi

import (
	"errors"
	"net/http"
	"time"

	"sidesa.id/internal/audit"
	"sidesa.id/internal/auth"
)

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	DeviceType string `json:"device_type"`
	DeviceInfo string `json:"device_info"`
}

type loginResponse struct {
	AccessToken      string              `json:"access_token"`
	RefreshToken     string              `json:"refresh_token"`
	SessionID        string              `json:"session_id"`
	AccessExpiresAt  time.Time           `json:"access_expires_at"`
	RefreshExpiresAt time.Time           `json:"refresh_expires_at"`
	User             auth.PublicIdentity `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken     string              `json:"access_token"`
	AccessExpiresAt time.Time           `json:"access_expires_at"`
	User            auth.PublicIdentity `json:"user"`
}

type verifyResponse struct {
	Valid bool                `json:"valid"`
	User  auth.PublicIdentity `json:"user"`
}

type permissionsResponse struct {
	User        auth.PublicIdentity          `json:"user"`
	Permissions map[string]auth.Capabilities `json:"permissions"`
	Areas       auth.AreaScope               `json:"accessible_areas"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.auth.Login(r.Context(), auth.LoginInput{
		Username:   req.Username,
		Password:   req.Password,
		DeviceType: req.DeviceType,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredential) {
			_ = audit.LogEvent(r.Context(), "auth.login.denied", map[string]any{
				"username": req.Username,
			})
		}
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login.success", map[string]any{
		"username":   result.Identity.Username,
		"session_id": result.SessionID,
		"expires_at": result.AccessExpiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:      result.AccessToken,
		RefreshToken:     result.RefreshToken,
		SessionID:        result.SessionID,
		AccessExpiresAt:  result.AccessExpiresAt,
		RefreshExpiresAt: result.RefreshExpiresAt,
		User:             result.Identity,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			_ = audit.LogEvent(r.Context(), "auth.token.rejected", map[string]any{
				"kind":    "refresh",
				"expired": errors.Is(err, auth.ErrTokenExpired),
			})
		}
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.token.refreshed", map[string]any{
		"username":   result.Identity.Username,
		"expires_at": result.AccessExpiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:     result.AccessToken,
		AccessExpiresAt: result.AccessExpiresAt,
		User:            result.Identity,
	})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, err := bearerFromRequest(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	result, err := a.auth.Verify(r.Context(), token)
	if err != nil {
		// Expired vs malformed is visible in the audit log only; the
		// response body stays uniform.
		if errors.Is(err, auth.ErrInvalidToken) {
			_ = audit.LogEvent(r.Context(), "auth.token.rejected", map[string]any{
				"kind":    "access",
				"expired": errors.Is(err, auth.ErrTokenExpired),
			})
		}
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Valid: true,
		User:  result.Identity,
	})
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, err := bearerFromRequest(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	result, err := a.auth.Permissions(r.Context(), token)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, permissionsResponse{
		User:        result.Identity,
		Permissions: result.Resolved.Menus,
		Areas:       result.Resolved.Areas,
	})
}

func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingInput):
		writeError(w, r, http.StatusBadRequest, "required fields are missing")
	case errors.Is(err, auth.ErrInvalidCredential):
		writeError(w, r, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "insufficient privileges")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
