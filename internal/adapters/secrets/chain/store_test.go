package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	passstore "github.com/bnema/autoseed-cli/internal/adapters/secrets/pass"
	"github.com/bnema/autoseed-cli/internal/domain"
	portmocks "github.com/bnema/autoseed-cli/internal/ports/mocks"
)

const testKey = "autoseed/accounts/100001/credential"

func newTestStore(t *testing.T) (*Store, *portmocks.MockSecretStore, *portmocks.MockSecretStore) {
	t.Helper()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store, err := New(primary, fallback, zap.NewNop())
	require.NoError(t, err)
	return store, primary, fallback
}

func TestNewRejectsNilBackends(t *testing.T) {
	t.Parallel()

	_, err := New(nil, portmocks.NewMockSecretStore(t), nil)
	require.ErrorIs(t, err, errNilPrimaryStore)

	_, err = New(portmocks.NewMockSecretStore(t), nil, nil)
	require.ErrorIs(t, err, errNilFallbackStore)
}

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", errors.New("pass unavailable")).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetKeepsNotFoundWhenBothBackendsMiss(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", errors.New("pass failed")).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("", domain.ErrSecretNotFound).Once()

	_, err := store.Get(context.Background(), testKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "primary backend get failed: pass failed")
	assert.ErrorContains(t, err, "fallback backend get failed")
}

func TestStorePutFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Put(mock.Anything, testKey, "blob").Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Put(mock.Anything, testKey, "blob").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), testKey, "blob"))
}

func TestStorePutDoesNotCallFallbackWhenPrimarySucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newTestStore(t)
	primary.EXPECT().Put(mock.Anything, testKey, "blob").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), testKey, "blob"))
}

func TestStoreDeleteRemovesFromBothBackends(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestStoreDeleteReportsEachFailingBackend(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Delete(mock.Anything, testKey).Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Delete(mock.Anything, testKey).Return(errors.New("disk full")).Once()

	err := store.Delete(context.Background(), testKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend delete failed: pass failed")
	assert.ErrorContains(t, err, "fallback backend delete failed: disk full")
}

func TestStoreSkipsUnavailablePrimaryAfterFirstFailure(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	unavailable := fmt.Errorf("%w: pass", passstore.ErrUnavailable)
	primary.EXPECT().Put(mock.Anything, testKey, "blob").Return(unavailable).Once()
	fallback.EXPECT().Put(mock.Anything, testKey, "blob").Return(nil).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("blob", nil).Once()
	fallback.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), testKey, "blob"))

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "blob", value)

	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestStoreGetReportsOnlyFallbackErrorWhenPrimaryUnavailable(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", passstore.ErrUnavailable).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("", domain.ErrSecretNotFound).Once()

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.NotContains(t, err.Error(), "primary backend")
}

func TestStoreDoesNotFallbackOnContextErrors(t *testing.T) {
	t.Parallel()

	for _, ctxErr := range []error{context.Canceled, context.DeadlineExceeded} {
		store, primary, _ := newTestStore(t)
		primary.EXPECT().Get(mock.Anything, testKey).Return("", ctxErr).Once()

		_, err := store.Get(context.Background(), testKey)
		require.ErrorIs(t, err, ctxErr)
	}
}
