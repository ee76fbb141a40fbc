package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/autoseed-cli/internal/bridge"
	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports"
)

var ErrAgentUnavailable = errors.New("agent did not answer")

// AgentBridge is what account maintenance needs from the bridge client.
type AgentBridge interface {
	Send(ctx context.Context, msg bridge.Message)
	Request(ctx context.Context, msg bridge.Message, kind bridge.Kind, timeout time.Duration) bridge.Response
}

type AddAccountCommand struct {
	ID         domain.AccountID
	Name       string
	Avatar     string
	Credential string
}

type ImportResult struct {
	Added   []domain.AccountID
	Skipped []domain.AccountID
}

type AccountService struct {
	repo  ports.AccountRepository
	store ports.SecretStore
	codec ports.CredentialCodec
}

func NewAccountService(repo ports.AccountRepository, store ports.SecretStore, codec ports.CredentialCodec) *AccountService {
	return &AccountService{
		repo:  repo,
		store: store,
		codec: codec,
	}
}

func CredentialSecretKey(id domain.AccountID) string {
	return fmt.Sprintf("autoseed/accounts/%s/credential", id)
}

func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) Get(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}
	return account, nil
}

// Add creates or updates an account. Without an explicit id the uid carried by
// the credential is used.
func (s *AccountService) Add(ctx context.Context, cmd AddAccountCommand) (domain.Account, error) {
	id := domain.AccountID(strings.TrimSpace(string(cmd.ID)))
	if id == "" {
		id = domain.AccountID(domain.UIDFromCredential(cmd.Credential))
	}
	if id == "" {
		return domain.Account{}, domain.ErrMissingAccountID
	}

	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Account{}, fmt.Errorf("get account by id: %w", err)
		}
		account = domain.Account{ID: id, Liveness: domain.LivenessUnknown}
	}
	if name := strings.TrimSpace(cmd.Name); name != "" {
		account.Name = name
	}
	if account.Name == "" {
		account.Name = fmt.Sprintf("Account %s", id)
	}
	if avatar := strings.TrimSpace(cmd.Avatar); avatar != "" {
		account.Avatar = avatar
	}

	if strings.TrimSpace(cmd.Credential) == "" {
		if err := s.repo.Save(ctx, account); err != nil {
			return domain.Account{}, fmt.Errorf("save account: %w", err)
		}
		return account, nil
	}

	return s.setCredential(ctx, account, cmd.Credential)
}

// Import adds every account whose id is not stored yet. Duplicates inside the
// batch and already known ids are skipped.
func (s *AccountService) Import(ctx context.Context, cmds []AddAccountCommand) (ImportResult, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("list accounts: %w", err)
	}
	known := make(map[domain.AccountID]struct{}, len(existing))
	for _, account := range existing {
		known[account.ID] = struct{}{}
	}

	var result ImportResult
	for _, cmd := range cmds {
		id := domain.AccountID(strings.TrimSpace(string(cmd.ID)))
		if id == "" {
			id = domain.AccountID(domain.UIDFromCredential(cmd.Credential))
		}
		if id == "" {
			continue
		}
		if _, ok := known[id]; ok {
			result.Skipped = append(result.Skipped, id)
			continue
		}

		cmd.ID = id
		if _, err := s.Add(ctx, cmd); err != nil {
			return result, fmt.Errorf("import account %s: %w", id, err)
		}
		known[id] = struct{}{}
		result.Added = append(result.Added, id)
	}

	return result, nil
}

func (s *AccountService) SetCredential(ctx context.Context, id domain.AccountID, raw string) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return fmt.Errorf("get account by id: %w", err)
		}
		account = domain.Account{ID: id, Name: fmt.Sprintf("Account %s", id), Liveness: domain.LivenessUnknown}
	}

	_, err = s.setCredential(ctx, account, raw)
	return err
}

func (s *AccountService) setCredential(ctx context.Context, account domain.Account, raw string) (domain.Account, error) {
	originalAccount := account
	previousSecretRef := account.SecretRef
	secretKey := CredentialSecretKey(account.ID)

	if err := s.store.Put(ctx, secretKey, s.codec.Encode(raw)); err != nil {
		return domain.Account{}, fmt.Errorf("store credential secret: %w", err)
	}

	account.SecretRef = secretKey

	if err := s.repo.Save(ctx, account); err != nil {
		if rollbackErr := s.store.Delete(ctx, secretKey); rollbackErr != nil {
			return domain.Account{}, fmt.Errorf("save account credential and rollback stored secret: %w", errors.Join(err, rollbackErr))
		}

		return domain.Account{}, fmt.Errorf("save account credential: %w", err)
	}

	if previousSecretRef != "" && previousSecretRef != secretKey {
		if err := s.store.Delete(ctx, previousSecretRef); err != nil {
			var rollbackErr error
			if restoreErr := s.repo.Save(ctx, originalAccount); restoreErr != nil {
				rollbackErr = errors.Join(rollbackErr, restoreErr)
			}
			if newSecretDeleteErr := s.store.Delete(ctx, secretKey); newSecretDeleteErr != nil {
				rollbackErr = errors.Join(rollbackErr, newSecretDeleteErr)
			}
			if rollbackErr != nil {
				return domain.Account{}, fmt.Errorf("delete previous credential secret and rollback credential update: %w", errors.Join(err, rollbackErr))
			}
			return domain.Account{}, fmt.Errorf("delete previous credential secret: %w", err)
		}
	}

	return account, nil
}

func (s *AccountService) RemoveCredential(ctx context.Context, id domain.AccountID) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}
	originalAccount := account
	secretRef := account.SecretRef

	account.SecretRef = ""
	if err := s.repo.Save(ctx, account); err != nil {
		return fmt.Errorf("save account credential: %w", err)
	}

	if secretRef == "" {
		return nil
	}

	if err := s.store.Delete(ctx, secretRef); err != nil {
		if restoreErr := s.repo.Save(ctx, originalAccount); restoreErr != nil {
			return fmt.Errorf("delete credential secret and restore ref: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete credential secret: %w", err)
	}

	return nil
}

// Delete removes the account and its stored credential.
func (s *AccountService) Delete(ctx context.Context, id domain.AccountID) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}

	if account.SecretRef != "" {
		if err := s.store.Delete(ctx, account.SecretRef); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
			return fmt.Errorf("delete credential secret: %w", err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	return nil
}

func (s *AccountService) SetAccountName(ctx context.Context, id domain.AccountID, name string) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}

	account.Name = name

	if err := s.repo.Save(ctx, account); err != nil {
		return fmt.Errorf("save account name: %w", err)
	}

	return nil
}

func (s *AccountService) SetLiveness(ctx context.Context, id domain.AccountID, liveness domain.Liveness) error {
	if !liveness.Valid() {
		return fmt.Errorf("unsupported liveness %q", liveness)
	}

	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}

	account.Liveness = liveness

	if err := s.repo.Save(ctx, account); err != nil {
		return fmt.Errorf("save account liveness: %w", err)
	}

	return nil
}

// ResolveCredential returns the decoded credential of account.
func (s *AccountService) ResolveCredential(ctx context.Context, account domain.Account) (string, error) {
	if !account.HasCredential() {
		return "", fmt.Errorf("account %s: %w", account.ID, domain.ErrSecretNotFound)
	}

	encoded, err := s.store.Get(ctx, account.SecretRef)
	if err != nil {
		return "", fmt.Errorf("load credential secret: %w", err)
	}

	raw, err := s.codec.Decode(encoded)
	if err != nil {
		return "", fmt.Errorf("decode credential of %s: %w", account.ID, err)
	}

	return raw, nil
}

// SyncToAgent pushes every account with a readable credential to the agent.
// It returns the number of accounts sent.
func (s *AccountService) SyncToAgent(ctx context.Context, agent AgentBridge) (int, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	synced := make([]bridge.SyncedAccount, 0, len(accounts))
	for _, account := range accounts {
		if !account.HasCredential() {
			continue
		}
		raw, err := s.ResolveCredential(ctx, account)
		if err != nil {
			continue
		}
		synced = append(synced, bridge.SyncedAccount{
			ID:         string(account.ID),
			Name:       account.DisplayName(),
			Credential: raw,
		})
	}

	agent.Send(ctx, bridge.SyncAccounts{Accounts: synced})

	return len(synced), nil
}

// CheckAlive asks the agent whether the account session still works and stores
// the answer.
func (s *AccountService) CheckAlive(ctx context.Context, agent AgentBridge, id domain.AccountID, timeout time.Duration) (domain.Liveness, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.LivenessUnknown, fmt.Errorf("get account by id: %w", err)
	}

	raw, err := s.ResolveCredential(ctx, account)
	if err != nil {
		return domain.LivenessUnknown, err
	}

	resp := agent.Request(ctx, bridge.CheckAlive{AccountID: string(id), Credential: raw}, bridge.KindAccountStatus, timeout)
	if !resp.OK() {
		return domain.LivenessUnknown, fmt.Errorf("%w: %s", ErrAgentUnavailable, resp.Outcome)
	}

	status, ok := resp.Message.(bridge.AccountStatus)
	if !ok || (status.AccountID != "" && status.AccountID != string(id)) {
		return domain.LivenessUnknown, fmt.Errorf("%w: status for another account", ErrAgentUnavailable)
	}

	liveness := parseLiveness(status.Status)
	if err := s.SetLiveness(ctx, id, liveness); err != nil {
		return liveness, err
	}

	return liveness, nil
}

func parseLiveness(raw string) domain.Liveness {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "live", "alive":
		return domain.LivenessLive
	case "checkpoint", "checkpointed":
		return domain.LivenessCheckpointed
	case "dead", "die":
		return domain.LivenessDead
	default:
		return domain.LivenessUnknown
	}
}
