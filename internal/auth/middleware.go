package auth

import (
	"net/http"
	"strings"

	"github.com/castellan-io/castellan/internal/platform/httpx"
	"github.com/castellan-io/castellan/internal/shared"
)

// Middleware turns a Bearer token into a request Principal. Requests without
// a valid token never reach protected handlers.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				httpx.Error(w, shared.Unauthorized("missing bearer token"))
				return
			}
			claims, err := tokens.Verify(raw)
			if err != nil {
				httpx.Error(w, err)
				return
			}
			principal := shared.Principal{UserID: claims.UserID, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}
