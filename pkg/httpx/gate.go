package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
)

// State is a step of the per-request authentication state machine.
type State int

const (
	StateUnauthenticated State = iota
	StateExtracting
	StateValidating
	StateVersionChecking
	StateAuthenticated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateExtracting:
		return "extracting"
	case StateValidating:
		return "validating"
	case StateVersionChecking:
		return "version_checking"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Reason explains a rejection.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInvalidToken
	ReasonTokenOutdated
)

func (r Reason) String() string {
	switch r {
	case ReasonInvalidToken:
		return "invalid_token"
	case ReasonTokenOutdated:
		return "token_outdated"
	default:
		return "none"
	}
}

var (
	ErrNoCredential        = errors.New("httpx: no credential")
	ErrMalformedCredential = errors.New("httpx: malformed credential")
	ErrMissingClaims       = errors.New("httpx: token lacks email or version")
)

// Decision is the outcome of Gate.Authenticate.
type Decision struct {
	State     State
	Reason    Reason
	Principal Principal

	// Anonymous is set when the route allowed anonymous access and no
	// credential was examined.
	Anonymous bool

	// Token is the raw credential, when one was extracted.
	Token string

	// Err is the internal cause of a rejection. It is for logs only.
	Err error
}

func (d Decision) Authenticated() bool { return d.State == StateAuthenticated }

// CredentialExtractor pulls the raw token out of a request.
type CredentialExtractor func(*http.Request) (string, error)

// VersionReader yields the version a principal's tokens must carry.
type VersionReader interface {
	GetVersion(ctx context.Context, principal string) string
}

// BearerToken reads "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return "", ErrNoCredential
	}
	raw, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok {
		return "", ErrMalformedCredential
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMalformedCredential
	}
	return raw, nil
}

// Gate makes the authentication decision for one request. It holds only
// capabilities: how to extract a credential, how to verify it, and where to
// read the current version from.
type Gate struct {
	Extract  CredentialExtractor
	Verifier jwtx.Verifier
	Versions VersionReader

	// OnDecision, when set, observes every terminal decision.
	OnDecision func(context.Context, Decision)
}

// Authenticate runs Extracting, Validating and VersionChecking in order and
// returns the terminal decision. It never panics on bad input and never
// returns raw verification errors to the caller other than through
// Decision.Err.
func (g *Gate) Authenticate(r *http.Request) Decision {
	d := g.authenticate(r)
	if g.OnDecision != nil {
		g.OnDecision(r.Context(), d)
	}
	return d
}

func (g *Gate) authenticate(r *http.Request) Decision {
	ctx := r.Context()

	// Extracting
	if isAnonymousAllowed(ctx) {
		return Decision{State: StateAuthenticated, Anonymous: true}
	}

	extract := g.Extract
	if extract == nil {
		extract = BearerToken
	}
	raw, err := extract(r)
	if err != nil {
		return reject(ReasonInvalidToken, "", err)
	}

	// Validating
	claims, err := g.Verifier.Verify(raw)
	if err != nil {
		return reject(ReasonInvalidToken, raw, err)
	}
	if claims.Email == "" || claims.Version == "" {
		return reject(ReasonInvalidToken, raw, ErrMissingClaims)
	}

	// VersionChecking
	if current := g.Versions.GetVersion(ctx, claims.Email); current != claims.Version {
		d := reject(ReasonTokenOutdated, raw, errors.New("httpx: version "+claims.Version+" != "+current))
		d.Principal = Principal{Email: claims.Email}
		return d
	}

	return Decision{
		State:     StateAuthenticated,
		Principal: Principal{Email: claims.Email},
		Token:     raw,
	}
}

func reject(reason Reason, token string, err error) Decision {
	return Decision{State: StateRejected, Reason: reason, Token: token, Err: err}
}
