package rbac

import (
	"net/http"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

// RequirePermission wraps a handler and denies the request unless the
// authenticated user holds the named permission. Requests without an
// authenticated user are denied outright (fail-closed).
func RequirePermission(checker *Checker, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := observability.GetUserID(r.Context())
			if !ok {
				forbidden(w)
				return
			}
			if !checker.HasPermission(r.Context(), userID, permission, nil) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"forbidden"}`))
}
