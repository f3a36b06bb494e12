package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/crmportal/crmportal/shared/domain"
	"github.com/crmportal/crmportal/shared/utils"
)

// AccessTokenCookie is where browser clients keep the access token.
const AccessTokenCookie = "accessToken"

// Authenticator resolves an access token to a live user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.UserSummary, error)
}

// Key to store the user in the request context
type key int

const userKey key = 0

type Auth struct {
	authenticator Authenticator
}

func NewAuth(authenticator Authenticator) *Auth {
	return &Auth{authenticator: authenticator}
}

// NeedAuth rejects requests without a valid access token.
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.authenticate(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// authenticate tries the cookie (browser clients) first and then the
// Authorization header (API clients), so a stale cookie does not shadow a
// valid bearer token. The last rejection is returned.
func (a *Auth) authenticate(r *http.Request) (domain.UserSummary, error) {
	tokens := extractTokens(r)
	if len(tokens) == 0 {
		return a.authenticator.Authenticate(r.Context(), "")
	}
	var err error
	for _, token := range tokens {
		var user domain.UserSummary
		if user, err = a.authenticator.Authenticate(r.Context(), token); err == nil {
			return user, nil
		}
	}
	return domain.UserSummary{}, err
}

func extractTokens(r *http.Request) []string {
	var tokens []string
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}
	if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func WithUser(ctx context.Context, user domain.UserSummary) context.Context {
	return context.WithValue(ctx, userKey, &user)
}

// GetUserFromContext returns nil outside of NeedAuth.
func GetUserFromContext(r *http.Request) *domain.UserSummary {
	user, ok := r.Context().Value(userKey).(*domain.UserSummary)
	if !ok {
		return nil
	}
	return user
}
