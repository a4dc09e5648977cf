package middleware

import (
	"net/http"

	"github.com/moneywright/moneywright/internal/server/api"
)

// RequireFeature guards mode-specific routes. Disabled features answer 403
// so clients can tell "wrong deployment mode" from a missing route.
func RequireFeature(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			api.Error(w, http.StatusForbidden, "feature_disabled", "endpoint disabled in the current auth mode")
		})
	}
}
