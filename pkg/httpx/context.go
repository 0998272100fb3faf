package httpx

import "context"

type ctxKey string

const (
	ctxKeyPrincipal ctxKey = "principal"
	ctxKeyAnonymous ctxKey = "anonymous"
)

// Principal is the minimal identity handed to handlers. The bearer gate
// fills only Email; the Basic path also knows the Username.
type Principal struct {
	Email    string
	Username string
}

func (p Principal) IsZero() bool { return p.Email == "" }

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok && !p.IsZero()
}

func isAnonymousAllowed(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyAnonymous).(bool)
	return v
}
