package http_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpapi "github.com/aussiebroadwan/gatekeep/internal/api/http"
	"github.com/aussiebroadwan/gatekeep/internal/api/service"
	"github.com/aussiebroadwan/gatekeep/internal/api/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/revocation"
	"github.com/aussiebroadwan/gatekeep/pkg/transportx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fixture struct {
	router   *httpapi.Router
	registry *revocation.Registry
	tokens   *service.TokenService
	upstream *httptest.Server
	handle   func(w http.ResponseWriter, r *http.Request)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{
		Issuer:   "gatekeep",
		Audience: []string{"gatekeep-clients"},
	})

	f := &fixture{registry: revocation.New()}
	f.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.handle(w, r)
	}))
	t.Cleanup(f.upstream.Close)
	f.handle = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Cats have five toes on their front paws."}`))
	}

	f.tokens = &service.TokenService{
		Signer:   signer,
		Verifier: verifier,
		Versions: f.registry,
		Issuer:   "gatekeep",
		Audience: "gatekeep-clients",
	}

	gate := &httpx.Gate{
		Extract:  httpx.BearerToken,
		Verifier: verifier,
		Versions: f.registry,
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := httpapi.NewRouter(gate, signer, httpx.RateLimitProfiles{}, "test", st, logger)
	r.TokenService = f.tokens
	r.UserService = &service.UserService{Store: st, Hasher: cryptox.NewPasswordHasher("pepper")}
	r.CatFactsService = &service.CatFactsService{
		Transport: transportx.New(transportx.Config{
			MaxAttempts: 2,
			Timeout:     2 * time.Second,
			Backoff:     transportx.Fixed(time.Millisecond),
		}),
		URL: f.upstream.URL,
	}
	r.Versions = f.registry
	r.ApplyRoutes()
	f.router = r

	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header http.Header) (*httptest.ResponseRecorder, authsdk.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env authsdk.Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func bearer(tok string) http.Header {
	return http.Header{"Authorization": {"Bearer " + tok}}
}

func (f *fixture) signUp(t *testing.T, username, email string) authsdk.TokenPair {
	t.Helper()
	body := `{"username":"` + username + `","email":"` + email + `","password":"hunter2"}`
	rec, env := f.do(t, http.MethodPost, "/user", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, httpx.StatusOK, env.Status)

	var pair authsdk.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	require.NotEmpty(t, pair.AuthToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

func TestCreateUserAndRead(t *testing.T) {
	f := newFixture(t)
	pair := f.signUp(t, "alice", "alice@example.com")

	rec, env := f.do(t, http.MethodGet, "/user", "", bearer(pair.AuthToken))
	require.Equal(t, http.StatusOK, rec.Code)

	var user authsdk.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEmpty(t, user.ID)
}

func TestCreateUserFailures(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "alice", "alice@example.com")

	cases := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"empty body", "", http.StatusBadRequest, "Empty payload received"},
		{"bad json", `{"username":`, http.StatusBadRequest, "Invalid JSON format received"},
		{"wrong type", `{"username":42}`, http.StatusBadRequest, "Incorrect datatype received for parameter: 'username'"},
		{"missing username", `{"email":"b@example.com","password":"x"}`, http.StatusBadRequest, "User name is required"},
		{"long username", `{"username":"abcdefghijklmno","email":"b@example.com","password":"x"}`, http.StatusBadRequest, "User name cannot be more than 14 characters"},
		{"missing email", `{"username":"bob","password":"x"}`, http.StatusBadRequest, "User email is required"},
		{"missing password", `{"username":"bob","email":"b@example.com"}`, http.StatusBadRequest, "Password is required"},
		{"duplicate", `{"username":"alice","email":"alice@example.com","password":"x"}`, http.StatusConflict, "User already exists"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := f.do(t, http.MethodPost, "/user", tc.body, nil)
			require.Equal(t, tc.code, rec.Code)
			require.Equal(t, httpx.StatusError, env.Status)
			require.Equal(t, tc.msg, env.Error)
		})
	}
}

func TestCreateUserIgnoresBearer(t *testing.T) {
	f := newFixture(t)

	body := `{"username":"bob","email":"bob@example.com","password":"x"}`
	rec, env := f.do(t, http.MethodPost, "/user", body, bearer("garbage"))
	require.Equal(t, http.StatusOK, rec.Code, "anonymous routes skip credential checks")
	require.Equal(t, httpx.StatusOK, env.Status)
}

func TestReadUserRequiresToken(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/user", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, httpx.MsgInvalidToken, env.Error)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec, env = f.do(t, http.MethodGet, "/user", "", bearer("not.a.jwt"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, httpx.MsgInvalidToken, env.Error)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "alice", "alice@example.com")

	req := httptest.NewRequest(http.MethodPost, "/user/login", nil)
	req.SetBasicAuth("alice", "hunter2")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/user/login", nil)
	req.SetBasicAuth("alice", "wrong")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
}

func TestGenerateNewTokenRevokesEarlierTokens(t *testing.T) {
	f := newFixture(t)
	pair := f.signUp(t, "alice", "alice@example.com")

	body := `{"refreshToken":"` + pair.RefreshToken + `"}`
	rec, env := f.do(t, http.MethodPost, "/user/generate-new-token", body, bearer(pair.AuthToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var next authsdk.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &next))
	require.Equal(t, "2", f.registry.GetVersion(t.Context(), "alice@example.com"))

	// The old access token now carries a stale version.
	rec, env = f.do(t, http.MethodGet, "/user", "", bearer(pair.AuthToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, httpx.MsgTokenOutdated, env.Error)

	rec, _ = f.do(t, http.MethodGet, "/user", "", bearer(next.AuthToken))
	require.Equal(t, http.StatusOK, rec.Code)

	// Replaying the consumed refresh token fails.
	rec, env = f.do(t, http.MethodPost, "/user/generate-new-token", body, bearer(next.RefreshToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid refresh token", env.Error)
}

func TestGenerateNewTokenBadInput(t *testing.T) {
	f := newFixture(t)
	pair := f.signUp(t, "alice", "alice@example.com")

	rec, env := f.do(t, http.MethodPost, "/user/generate-new-token", `{}`, bearer(pair.AuthToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "refreshToken is required", env.Error)

	rec, env = f.do(t, http.MethodPost, "/user/generate-new-token", `{"refreshToken":"junk"}`, bearer(pair.AuthToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid refresh token", env.Error)
}

func TestCatFacts(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/misc/cat-facts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"text":"Cats have five toes on their front paws."}`, string(env.Data))

	rec, env = f.do(t, http.MethodGet, "/misc/cat-facts", "", bearer("garbage"))
	require.Equal(t, http.StatusOK, rec.Code, "anonymous routes skip credential checks")
	require.Equal(t, httpx.StatusOK, env.Status)
}

func TestCatFactsUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.handle = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	rec, env := f.do(t, http.MethodGet, "/misc/cat-facts", "", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "Upstream service unavailable", env.Error)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var live authsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &live))
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var ready authsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
	require.Equal(t, "ok", ready.Checks.Versions)
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t)

	limits := httpx.RateLimitProfiles{
		Strict: httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1},
	}
	r := httpapi.NewRouter(&httpx.Gate{Extract: httpx.BearerToken}, nil, limits, "test", nil,
		slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	r.UserService = f.router.UserService
	r.TokenService = f.tokens
	r.CatFactsService = f.router.CatFactsService
	r.ApplyRoutes()

	attempt := func() int {
		req := httptest.NewRequest(http.MethodPost, "/user/login", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.SetBasicAuth("nobody", "nothing")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, attempt())
	require.Equal(t, http.StatusTooManyRequests, attempt())
}
