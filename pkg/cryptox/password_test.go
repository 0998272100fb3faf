package cryptox_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const testPepper = "test-pepper-value"

func TestHash(t *testing.T) {
	h := cryptox.NewPasswordHasher(testPepper)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6)
			require.Equal(t, "m=19456,t=2,p=1", parts[3])
			require.NotEmpty(t, parts[4])
			require.NotEmpty(t, parts[5])

			require.NoError(t, h.Verify(tt.password, hash))
		})
	}
}

func TestHashUsesUniqueSalts(t *testing.T) {
	h := cryptox.NewPasswordHasher(testPepper)

	a, err := h.Hash("samepassword")
	require.NoError(t, err)
	b, err := h.Hash("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NoError(t, h.Verify("samepassword", a))
	require.NoError(t, h.Verify("samepassword", b))
}

func TestVerifyWrongPassword(t *testing.T) {
	h := cryptox.NewPasswordHasher(testPepper)
	hash, err := h.Hash("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{
		"wrong-password",
		"Correct-Password",
		"correct-password ",
		"",
		strings.Repeat("x", 10000),
	} {
		require.ErrorIs(t, h.Verify(wrong, hash), cryptox.ErrPasswordMismatch, "password %q", wrong)
	}
}

func TestVerifyDependsOnPepper(t *testing.T) {
	hash, err := cryptox.NewPasswordHasher("pepper-one").Hash("hunter2")
	require.NoError(t, err)

	require.NoError(t, cryptox.NewPasswordHasher("pepper-one").Verify("hunter2", hash))
	require.ErrorIs(t, cryptox.NewPasswordHasher("pepper-two").Verify("hunter2", hash), cryptox.ErrPasswordMismatch)
}

func TestVerifyInvalidHashFormat(t *testing.T) {
	h := cryptox.NewPasswordHasher(testPepper)

	tests := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing version", "$argon2id$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, h.Verify("test-password", tt.hash), cryptox.ErrHashFormat)
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	h := cryptox.NewPasswordHasher(testPepper)

	hash, err := h.Hash("hunter2")
	require.NoError(t, err)
	require.False(t, h.NeedsRehash(hash))

	weaker := strings.Replace(hash, ",t=2,", ",t=1,", 1)
	require.NotEqual(t, hash, weaker)
	require.True(t, h.NeedsRehash(weaker))

	require.True(t, h.NeedsRehash("$bcrypt$whatever"))
	require.True(t, h.NeedsRehash(""))
}
