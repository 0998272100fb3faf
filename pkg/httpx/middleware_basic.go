package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// CredentialChecker resolves a username and password to a principal.
type CredentialChecker func(ctx context.Context, username, password string) (Principal, error)

// BasicAuthMiddleware authenticates with HTTP Basic credentials instead of a
// bearer token. The resolved principal is stored like AuthnMiddleware does.
func BasicAuthMiddleware(check CredentialChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			username, password, ok := r.BasicAuth()
			if !ok || username == "" {
				writeBasicError(w)
				return
			}

			p, err := check(ctx, username, password)
			if err != nil || p.IsZero() {
				slogx.FromContext(ctx).Info("basic auth rejected", "username", username, "err", err)
				writeBasicError(w)
				return
			}

			ctx = WithPrincipal(ctx, p)
			ctx = slogx.With(ctx, "principal", p.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeBasicError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="gatekeep", charset="UTF-8"`)
	WriteError(w, http.StatusUnauthorized, MsgUnauthorized)
}
