package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prod-01-deploy-key"), []byte("KEY MATERIAL"), 0o600))

	cred, err := NewStore(dir).Resolve("prod-01-deploy-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("KEY MATERIAL"), cred.Key)
	assert.Equal(t, filepath.Join(dir, "prod-01-deploy-key"), cred.KeyPath)
	assert.Nil(t, cred.Passphrase)
}

func TestResolveWithPassphrase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enc-key"), []byte("KEY"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enc-key.passphrase"), []byte("s3cret\n"), 0o600))

	cred, err := NewStore(dir).Resolve("enc-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), cred.Passphrase, "trailing whitespace is trimmed")
}

func TestResolveUnknownReference(t *testing.T) {
	_, err := NewStore(t.TempDir()).Resolve("nope")
	require.Error(t, err)
}

func TestResolveRejectsEmptyReference(t *testing.T) {
	_, err := NewStore(t.TempDir()).Resolve("")
	require.Error(t, err)
}

func TestResolveRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "keys"))

	for _, ref := range []string{"../outside", "sub/key", `..\key`} {
		_, err := store.Resolve(ref)
		require.Error(t, err, "ref %q", ref)
	}
}
