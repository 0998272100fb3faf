package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	s, err := cryptox.GenerateSecret(cryptox.SecretSize)
	require.NoError(t, err)
	require.Len(t, s, 43)

	other, err := cryptox.GenerateSecret(cryptox.SecretSize)
	require.NoError(t, err)
	require.NotEqual(t, s, other)

	for _, size := range []int{0, -1} {
		_, err := cryptox.GenerateSecret(size)
		require.Error(t, err)
	}
}

func TestFingerprintToken(t *testing.T) {
	a := cryptox.FingerprintToken("token-a")
	require.Equal(t, a, cryptox.FingerprintToken("token-a"))
	require.NotEqual(t, a, cryptox.FingerprintToken("token-b"))
	require.Len(t, a, 16)
}

func TestLoadOrCreatePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	created, err := cryptox.LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, created)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := cryptox.LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, created, loaded)
}

func TestLoadOrCreatePepperRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := cryptox.LoadOrCreatePepper(path)
	require.Error(t, err)
}
