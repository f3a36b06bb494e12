package middleware

import (
	"net/http"

	"github.com/crmportal/crmportal/shared/errors"
	"github.com/crmportal/crmportal/shared/utils"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminOnly admits requests carrying the configured admin token. With an
// empty token every request is refused.
func AdminOnly(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(AdminTokenHeader)
			if adminToken == "" || provided == "" || !utils.ConstantTimeEqual(provided, adminToken) {
				utils.WriteErrorAndStatusCode(w, errors.New(errors.CodeForbidden, http.StatusForbidden, "Access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
