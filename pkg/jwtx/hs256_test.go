package jwtx_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "gatekeep"
	testAudience = "gatekeep-clients"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newPair(t *testing.T) (*jwtx.HS256Signer, *jwtx.HS256Verifier) {
	t.Helper()
	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{
		Issuer:   testIssuer,
		Audience: []string{testAudience},
	})
	return signer, verifier
}

func TestHS256SignAndVerify(t *testing.T) {
	signer, verifier := newPair(t)
	require.Equal(t, "HS256", signer.Alg())
	require.NoError(t, signer.Validate())

	now := time.Now().UTC()
	claims := jwtx.NewTokenClaims("alice@example.com", "1", 5*time.Minute, testIssuer, testAudience, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(token, "."))

	parsed, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, claims.Subject, parsed.Subject)
	require.Equal(t, claims.Email, parsed.Email)
	require.Equal(t, claims.Version, parsed.Version)
	require.Equal(t, claims.ID, parsed.ID)
	require.ElementsMatch(t, claims.Audience, parsed.Audience)
}

func TestHS256PayloadShape(t *testing.T) {
	signer, _ := newPair(t)
	now := time.Unix(1700000000, 0).UTC()
	token, err := signer.Sign(jwtx.NewTokenClaims("alice@example.com", "7", time.Hour, testIssuer, testAudience, now))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	require.Contains(t, string(header), `"alg":"HS256"`)

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))

	// iat is integer seconds and version travels as a string.
	require.Contains(t, string(raw), `"iat":1700000000`)
	require.Equal(t, "7", payload["version"])
	require.Equal(t, "alice@example.com", payload["email"])
	require.Equal(t, "alice@example.com", payload["sub"])
	require.NotEmpty(t, payload["jti"])
	require.NotNil(t, payload["nbf"])
	require.NotNil(t, payload["exp"])
}

func TestHS256VerifyFailures(t *testing.T) {
	signer, verifier := newPair(t)
	now := time.Now().UTC()

	sign := func(t *testing.T, c jwtx.Claims) string {
		t.Helper()
		tok, err := signer.Sign(c)
		require.NoError(t, err)
		return tok
	}

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwtx.NewSignerHS256([]byte("ffffffffffffffffffffffffffffffff"))
		require.NoError(t, err)
		tok, err := other.Sign(jwtx.NewTokenClaims("a@b.c", "1", time.Minute, testIssuer, testAudience, now))
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tok := sign(t, jwtx.NewTokenClaims("a@b.c", "1", time.Minute, testIssuer, testAudience, now))
		parts := strings.Split(tok, ".")
		forged, err := json.Marshal(jwtx.NewTokenClaims("mallory@b.c", "1", time.Minute, testIssuer, testAudience, now))
		require.NoError(t, err)
		parts[1] = base64.RawURLEncoding.EncodeToString(forged)

		_, err = verifier.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("expired", func(t *testing.T) {
		tok := sign(t, jwtx.NewTokenClaims("a@b.c", "1", time.Minute, testIssuer, testAudience, now.Add(-time.Hour)))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("not yet valid", func(t *testing.T) {
		tok := sign(t, jwtx.NewTokenClaims("a@b.c", "1", time.Hour, testIssuer, testAudience, now.Add(10*time.Minute)))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrNotYetValid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok := sign(t, jwtx.NewTokenClaims("a@b.c", "1", time.Minute, "someone-else", testAudience, now))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		tok := sign(t, jwtx.NewTokenClaims("a@b.c", "1", time.Minute, testIssuer, "elsewhere", now))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("missing exp", func(t *testing.T) {
		c := jwtx.NewTokenClaims("a@b.c", "1", time.Minute, testIssuer, testAudience, now)
		c.ExpiresAt = nil
		_, err := verifier.Verify(sign(t, c))
		require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
	})

	t.Run("alg none", func(t *testing.T) {
		c := jwtx.NewTokenClaims("a@b.c", "1", time.Minute, testIssuer, testAudience, now)
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrAlgMismatch)
	})

	t.Run("other hmac alg", func(t *testing.T) {
		c := jwtx.NewTokenClaims("a@b.c", "1", time.Minute, testIssuer, testAudience, now)
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, c).SignedString(testSecret)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrAlgMismatch)
	})

	t.Run("garbage", func(t *testing.T) {
		for _, tok := range []string{"", "abc", "a.b", "a.b.c"} {
			_, err := verifier.Verify(tok)
			require.ErrorIs(t, err, jwtx.ErrMalformed, "token %q", tok)
		}
	})
}

func TestHS256LeewayAllowsSkew(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{Leeway: time.Minute})

	tok, err := signer.Sign(jwtx.NewTokenClaims("a@b.c", "1", time.Second, "", "", time.Now().Add(-10*time.Second)))
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	require.NoError(t, err)
}

func TestNewSignerHS256RejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewSignerHS256([]byte("short"))
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)

	_, err = jwtx.NewSignerHS256(nil)
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}
