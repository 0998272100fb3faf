package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// Caller-facing rejection messages. They name the reason and nothing else.
const (
	MsgInvalidToken  = "Invalid authentication token"
	MsgTokenOutdated = "Token is outdated. Please generate a new one."
	MsgUnauthorized  = "Unauthorized"
)

// AllowAnonymous marks a route as open. Place it before AuthnMiddleware in
// the chain; the gate then lets the request through without looking for a
// credential.
func AllowAnonymous() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxKeyAnonymous, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthnMiddleware runs the gate and either forwards the request with the
// principal in its context or answers 401.
func AuthnMiddleware(g *Gate) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			d := g.Authenticate(r)
			switch {
			case d.Authenticated() && d.Anonymous:
				next.ServeHTTP(w, r)

			case d.Authenticated():
				ctx = WithPrincipal(ctx, d.Principal)
				ctx = slogx.With(ctx, "principal", d.Principal.Email)
				next.ServeHTTP(w, r.WithContext(ctx))

			case d.Reason == ReasonTokenOutdated:
				// A well-formed token with a stale version is either an old
				// session or a replay of a revoked token.
				log.Warn("outdated token presented",
					"email", d.Principal.Email,
					"token_fp", cryptox.FingerprintToken(d.Token),
					"err", d.Err,
				)
				writeBearerError(w, "token is outdated", MsgTokenOutdated)

			default:
				log.Debug("authentication rejected", "reason", d.Reason.String(), "err", d.Err)
				writeBearerError(w, "token verification failed", MsgInvalidToken)
			}
		})
	}
}

// RFC 6750 challenge plus the JSON envelope.
func writeBearerError(w http.ResponseWriter, desc, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, msg)
}
