package handler

import (
	"net/http"
	"time"

	"github.com/crmportal/crmportal/shared/domain"
	"github.com/crmportal/crmportal/shared/middleware"
)

const (
	refreshTokenCookie = "refreshToken"
	// the refresh cookie is only sent to the endpoints that consume it
	refreshCookiePath = "/v1/auth"
)

func (h *Handler) tokenCookie(name, path string, token domain.Token) *http.Cookie {
	maxAge := int(time.Until(token.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     name,
		Value:    token.Value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *Handler) setAccessCookie(w http.ResponseWriter, token domain.Token) {
	http.SetCookie(w, h.tokenCookie(middleware.AccessTokenCookie, "/", token))
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token domain.Token) {
	http.SetCookie(w, h.tokenCookie(refreshTokenCookie, refreshCookiePath, token))
}

func (h *Handler) clearCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{middleware.AccessTokenCookie, "/"},
		{refreshTokenCookie, refreshCookiePath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cfg.Public.SecureCookies,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
