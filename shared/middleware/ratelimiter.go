package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/crmportal/crmportal/shared/errors"
	"github.com/crmportal/crmportal/shared/logger"
	"github.com/crmportal/crmportal/shared/middleware/ratelimiter"
	"github.com/crmportal/crmportal/shared/utils"
)

// maxIdentityBody bounds how much of a request body is buffered to find the email.
const maxIdentityBody = 1 << 16

var errRateLimited = errors.New(errors.CodeRateLimited, http.StatusTooManyRequests, "Too many requests, try again later")

// RateLimit applies rl per identity. Requests whose identity cannot be
// derived are passed on, the handler validates them.
func RateLimit(rl *ratelimiter.Limiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				logger.Log.Debug("rate limit identity unavailable", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !rl.Allow(identity) {
				logger.Log.Warn("rate limit exceeded", "path", r.URL.Path)
				utils.WriteErrorAndStatusCode(w, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIP extracts the real client IP from RemoteAddr
// Does NOT trust X-Real-IP or X-Forwarded-For headers
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// no port
		ip = r.RemoteAddr
	}

	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}

	return ip, nil
}

// GetEmailFromBody extracts the email from a JSON body and restores the
// body so the handler can read it again.
func GetEmailFromBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", fmt.Errorf("empty request body")
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIdentityBody))
	if err != nil {
		return "", fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

	var data struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("invalid request body: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(data.Email))
	if email == "" {
		return "", fmt.Errorf("email field is required")
	}
	return "email:" + email, nil
}
