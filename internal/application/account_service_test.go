package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/autoseed-cli/internal/bridge"
	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports/mocks"
)

func TestAccountServiceSetCredentialSuccess(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store, reverseCodec{})

	account := domain.Account{ID: "100", Name: "Lan"}
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("100")).Return(account, nil)
	store.EXPECT().Put(mockAnyContext(), "autoseed/accounts/100/credential", "enc:001=resu_c").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{
		ID:        "100",
		Name:      "Lan",
		SecretRef: "autoseed/accounts/100/credential",
	}).Return(nil)

	err := service.SetCredential(context.Background(), "100", "c_user=100")
	require.NoError(t, err)
}

func TestAccountServiceSetCredentialRollsBackSecretWhenSaveFails(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store, reverseCodec{})

	saveErr := errors.New("disk full")
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("100")).Return(domain.Account{ID: "100", Name: "Lan"}, nil)
	store.EXPECT().Put(mockAnyContext(), "autoseed/accounts/100/credential", "enc:x").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{ID: "100", Name: "Lan", SecretRef: "autoseed/accounts/100/credential"}).Return(saveErr)
	store.EXPECT().Delete(mockAnyContext(), "autoseed/accounts/100/credential").Return(nil)

	err := service.SetCredential(context.Background(), "100", "x")
	require.ErrorIs(t, err, saveErr)
}

func TestAccountServiceSetCredentialJoinsRollbackFailure(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store, reverseCodec{})

	saveErr := errors.New("disk full")
	deleteErr := errors.New("pass locked")
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("100")).Return(domain.Account{ID: "100"}, nil)
	store.EXPECT().Put(mockAnyContext(), "autoseed/accounts/100/credential", "enc:x").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{ID: "100", SecretRef: "autoseed/accounts/100/credential"}).Return(saveErr)
	store.EXPECT().Delete(mockAnyContext(), "autoseed/accounts/100/credential").Return(deleteErr)

	err := service.SetCredential(context.Background(), "100", "x")
	require.ErrorIs(t, err, saveErr)
	require.ErrorIs(t, err, deleteErr)
}

func TestAccountServiceSetCredentialRotationDeletesPreviousRef(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store, reverseCodec{})

	account := domain.Account{ID: "100", Name: "Lan", SecretRef: "legacy/100"}
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("100")).Return(account, nil)
	store.EXPECT().Put(mockAnyContext(), "autoseed/accounts/100/credential", "enc:x").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{ID: "100", Name: "Lan", SecretRef: "autoseed/accounts/100/credential"}).Return(nil)
	store.EXPECT().Delete(mockAnyContext(), "legacy/100").Return(nil)

	require.NoError(t, service.SetCredential(context.Background(), "100", "x"))
}

func TestAccountServiceSetCredentialRestoresAccountWhenPreviousDeleteFails(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store, reverseCodec{})

	deleteErr := errors.New("delete old secret failed")
	account := domain.Account{ID: "100", Name: "Lan", SecretRef: "legacy/100"}
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("100")).Return(account, nil)
	store.EXPECT().Put(mockAnyContext(), "autoseed/accounts/100/credential", "enc:x").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{ID: "100", Name: "Lan", SecretRef: "autoseed/accounts/100/credential"}).Return(nil)
	store.EXPECT().Delete(mockAnyContext(), "legacy/100").Return(deleteErr)
	repo.EXPECT().Save(mockAnyContext(), account).Return(nil)
	store.EXPECT().Delete(mockAnyContext(), "autoseed/accounts/100/credential").Return(nil)

	err := service.SetCredential(context.Background(), "100", "x")
	require.ErrorIs(t, err, deleteErr)
}

func TestAccountServiceRemoveCredentialRestoresRefOnDeleteFailure(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewAccountService(repo, store, reverseCodec{})

	deleteErr := errors.New("delete failed")
	account := domain.Account{ID: "100", SecretRef: "autoseed/accounts/100/credential"}
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("100")).Return(account, nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{ID: "100"}).Return(nil)
	store.EXPECT().Delete(mockAnyContext(), "autoseed/accounts/100/credential").Return(deleteErr)
	repo.EXPECT().Save(mockAnyContext(), account).Return(nil)

	err := service.RemoveCredential(context.Background(), "100")
	require.ErrorIs(t, err, deleteErr)
}

func TestAccountServiceAddDerivesIDFromCredential(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{}
	store := &inMemorySecretStore{}
	service := NewAccountService(repo, store, reverseCodec{})

	account, err := service.Add(context.Background(), AddAccountCommand{Credential: "xs=1; c_user=100042; fr=2"})
	require.NoError(t, err)

	assert.Equal(t, domain.AccountID("100042"), account.ID)
	assert.Equal(t, "Account 100042", account.Name)
	assert.Equal(t, domain.LivenessUnknown, account.Liveness)
	assert.True(t, account.HasCredential())

	raw, err := service.ResolveCredential(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "xs=1; c_user=100042; fr=2", raw)
}

func TestAccountServiceAddRequiresID(t *testing.T) {
	t.Parallel()

	service := NewAccountService(&inMemoryAccountRepo{}, &inMemorySecretStore{}, reverseCodec{})

	_, err := service.Add(context.Background(), AddAccountCommand{Credential: "no uid here"})
	require.ErrorIs(t, err, domain.ErrMissingAccountID)
}

func TestAccountServiceImportDeduplicates(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{accounts: []domain.Account{{ID: "1", Name: "Existing"}}}
	service := NewAccountService(repo, &inMemorySecretStore{}, reverseCodec{})

	result, err := service.Import(context.Background(), []AddAccountCommand{
		{ID: "1", Name: "Dup of existing", Credential: "c_user=1"},
		{Name: "Two", Credential: "c_user=2"},
		{ID: " 2 ", Name: "Two again", Credential: "c_user=2"},
		{ID: "3", Name: "Three"},
		{Name: "No id"},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.AccountID{"2", "3"}, result.Added)
	assert.Equal(t, []domain.AccountID{"1", "2"}, result.Skipped)

	accounts, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "Existing", accounts[0].Name)
	assert.Equal(t, "Two", accounts[1].Name)
	assert.False(t, accounts[2].HasCredential())
}

func TestAccountServiceDeleteRemovesSecret(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{}
	store := &inMemorySecretStore{}
	service := NewAccountService(repo, store, reverseCodec{})

	_, err := service.Add(context.Background(), AddAccountCommand{ID: "7", Credential: "c_user=7"})
	require.NoError(t, err)
	require.NoError(t, service.Delete(context.Background(), "7"))

	_, err = service.Get(context.Background(), "7")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Empty(t, store.secrets)
}

func TestAccountServiceResolveCredentialErrors(t *testing.T) {
	t.Parallel()

	store := &inMemorySecretStore{secrets: map[string]string{"ref": "garbage"}}
	service := NewAccountService(&inMemoryAccountRepo{}, store, reverseCodec{})

	_, err := service.ResolveCredential(context.Background(), domain.Account{ID: "1"})
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	_, err = service.ResolveCredential(context.Background(), domain.Account{ID: "1", SecretRef: "ref"})
	require.ErrorIs(t, err, errBadBlob)
}

func TestAccountServiceSyncToAgentSkipsAccountsWithoutCredential(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{}
	service := NewAccountService(repo, &inMemorySecretStore{}, reverseCodec{})
	_, err := service.Add(context.Background(), AddAccountCommand{ID: "1", Name: "One", Credential: "c_user=1"})
	require.NoError(t, err)
	_, err = service.Add(context.Background(), AddAccountCommand{ID: "2", Name: "Two"})
	require.NoError(t, err)

	agent := newScriptedAgent()
	synced, err := service.SyncToAgent(context.Background(), agent.client)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	sent := agent.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, bridge.SyncAccounts{Accounts: []bridge.SyncedAccount{{ID: "1", Name: "One", Credential: "c_user=1"}}}, sent[0])
}

func TestAccountServiceCheckAliveStoresLiveness(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{}
	service := NewAccountService(repo, &inMemorySecretStore{}, reverseCodec{})
	_, err := service.Add(context.Background(), AddAccountCommand{ID: "1", Credential: "c_user=1"})
	require.NoError(t, err)

	agent := newScriptedAgent()
	agent.liveness = "checkpoint"

	liveness, err := service.CheckAlive(context.Background(), agent.client, "1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.LivenessCheckpointed, liveness)

	stored, err := service.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, domain.LivenessCheckpointed, stored.Liveness)
}

func TestAccountServiceCheckAliveWithoutAgent(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{}
	service := NewAccountService(repo, &inMemorySecretStore{}, reverseCodec{})
	_, err := service.Add(context.Background(), AddAccountCommand{ID: "1", Credential: "c_user=1"})
	require.NoError(t, err)

	agent := newScriptedAgent()
	agent.silent = true

	liveness, err := service.CheckAlive(context.Background(), agent.client, "1", 10*time.Millisecond)
	require.ErrorIs(t, err, ErrAgentUnavailable)
	assert.Equal(t, domain.LivenessUnknown, liveness)
}

func TestParseLiveness(t *testing.T) {
	t.Parallel()

	tests := map[string]domain.Liveness{
		"live":       domain.LivenessLive,
		" LIVE ":     domain.LivenessLive,
		"checkpoint": domain.LivenessCheckpointed,
		"die":        domain.LivenessDead,
		"dead":       domain.LivenessDead,
		"":           domain.LivenessUnknown,
		"banned?":    domain.LivenessUnknown,
	}
	for raw, want := range tests {
		assert.Equal(t, want, parseLiveness(raw), raw)
	}
}

func TestMatchAccounts(t *testing.T) {
	t.Parallel()

	accounts := []domain.Account{
		{ID: "100", Name: "Nguyen Lan"},
		{ID: "200", Name: "Tran Mai"},
		{ID: "300", Name: "Le Minh"},
	}

	matched, err := MatchAccounts(accounts, []string{"200", "nguyen lan", "minh", "Tran Mai"})
	require.NoError(t, err)
	require.Len(t, matched, 3)
	assert.Equal(t, []domain.AccountID{"200", "100", "300"}, []domain.AccountID{matched[0].ID, matched[1].ID, matched[2].ID})

	_, err = MatchAccounts(accounts, []string{"zzz"})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
