package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/autoseed-cli/internal/domain"
)

const testKey = "autoseed/accounts/100001/credential"

func TestStoreRejectsKeysOutsideCredentialLayout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	testCases := []struct {
		name string
		key  string
	}{
		{name: "empty", key: ""},
		{name: "whitespace", key: "   "},
		{name: "absolute", key: "/autoseed/accounts/100001/credential"},
		{name: "traversal", key: "../accounts/100001/credential"},
		{name: "parent account", key: "autoseed/accounts/../credential"},
		{name: "dot account", key: "autoseed/accounts/./credential"},
		{name: "padded account", key: "autoseed/accounts/ 1 /credential"},
		{name: "backslash account", key: `autoseed/accounts/a\b/credential`},
		{name: "missing account", key: "autoseed/accounts//credential"},
		{name: "wrong collection", key: "autoseed/profiles/100001/credential"},
		{name: "wrong leaf", key: "autoseed/accounts/100001/token"},
		{name: "too deep", key: "autoseed/accounts/100001/credential/extra"},
		{name: "bare name", key: "credential"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, store.Put(context.Background(), tc.key, "blob"), ErrInvalidKey)
			_, err := store.Get(context.Background(), tc.key)
			require.ErrorIs(t, err, ErrInvalidKey)
			require.ErrorIs(t, store.Delete(context.Background(), tc.key), ErrInvalidKey)
		})
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreRejectsEmptyBlob(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)

	err := store.Put(context.Background(), testKey, "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "account 100001")

	_, err = os.Stat(filepath.Join(root, "autoseed"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStoreGetTrimsHandEditedNewline(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	path := filepath.Join(root, "autoseed", "accounts", "100001", "credential")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))

	require.NoError(t, os.WriteFile(path, []byte("AQIDBAU=\n"), 0o600))
	got, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "AQIDBAU=", got)

	require.NoError(t, os.WriteFile(path, []byte("\r\n"), 0o600))
	_, err = store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStorePutGetRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	want := "AQIDBAU="

	require.NoError(t, store.Put(context.Background(), testKey, want))
	require.NoError(t, store.Put(context.Background(), testKey, want+"x"))

	got, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, want+"x", got)

	info, err := os.Stat(filepath.Join(root, testKey))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(secretFileMod), info.Mode().Perm())
}

func TestStoreGetMissingReturnsSecretNotFound(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "credential for account 100001")
}

func TestStoreDeleteIsIdempotentWhenSecretMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	require.NoError(t, store.Put(context.Background(), testKey, "blob"))

	require.NoError(t, store.Delete(context.Background(), testKey))
	require.NoError(t, store.Delete(context.Background(), testKey))

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreDeletePrunesEmptyAccountDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	sibling := "autoseed/accounts/100002/credential"

	require.NoError(t, store.Put(context.Background(), testKey, "blob"))
	require.NoError(t, store.Put(context.Background(), sibling, "blob"))

	require.NoError(t, store.Delete(context.Background(), testKey))

	_, err := os.Stat(filepath.Join(root, "autoseed", "accounts", "100001"))
	require.ErrorIs(t, err, os.ErrNotExist)

	got, err := store.Get(context.Background(), sibling)
	require.NoError(t, err)
	assert.Equal(t, "blob", got)

	require.NoError(t, store.Delete(context.Background(), sibling))
	_, err = os.Stat(filepath.Join(root, "autoseed"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = os.Stat(root)
	require.NoError(t, err)
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Put(ctx, testKey, "blob"), context.Canceled)
	_, err := store.Get(ctx, testKey)
	require.ErrorIs(t, err, context.Canceled)
}
