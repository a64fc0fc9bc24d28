package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sante-travail/convocations/internal/apperr"
	httpmiddleware "github.com/sante-travail/convocations/internal/http/middleware"
	"github.com/sante-travail/convocations/internal/repo"
	"github.com/sante-travail/convocations/internal/service"
)

const refreshCookie = "rh_refresh"

// Login authentifie un utilisateur par e-mail et mot de passe.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		WriteError(w, http.StatusBadRequest, apperr.Message(err))
		return
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		WriteError(w, http.StatusBadRequest, "email et mot de passe obligatoires")
		return
	}

	result, err := h.Auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

// Refresh renouvelle la session depuis le cookie de refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookie)
	if err != nil || c.Value == "" {
		WriteError(w, http.StatusUnauthorized, "Session absente")
		return
	}

	result, err := h.Auth.Refresh(r.Context(), c.Value)
	if err != nil {
		if errors.Is(err, service.ErrRefreshInvalid) {
			h.clearRefreshCookie(w)
		}
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

// Logout révoque le refresh token courant.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		if err := h.Auth.Logout(r.Context(), c.Value); err != nil {
			log.Warn().Err(err).Msg("logout: révocation impossible")
		}
	}
	h.clearRefreshCookie(w)
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me renvoie le profil de l'utilisateur authentifié.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Auth.GetMe(r.Context(), httpmiddleware.GetSubject(r.Context()))
	if errors.Is(err, repo.ErrNotFound) {
		WriteError(w, http.StatusUnauthorized, "Session invalide ou expirée")
		return
	}
	if err != nil {
		writeServiceError(w, r, "me", err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "Identifiants invalides")
	case errors.Is(err, service.ErrRefreshInvalid):
		WriteError(w, http.StatusUnauthorized, "Session invalide ou expirée")
	case errors.Is(err, service.ErrAccountDisabled):
		WriteError(w, http.StatusForbidden, "Compte désactivé")
	default:
		writeServiceError(w, r, "auth", err)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, result *service.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)
	WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken": result.AccessToken,
		"user":        result.Profile,
	})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, h.cookie(token, expires, 0))
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie("", time.Time{}, -1))
}

func (h *Handler) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Path:     "/api/auth",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !h.devCookies,
		SameSite: sameSite,
	}
}
