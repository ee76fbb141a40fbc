package toml

import (
	"context"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports"
)

const (
	accountsPathKey    = "accounts.path"
	accountsConfigFile = "accounts.toml"
)

// Repository stores accounts in a single versioned TOML file.
type Repository struct {
	doc *document[accountsFileSchema, accountSchema, *accountsFileSchema]
}

var _ ports.AccountRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	path, err := resolvePath(cfg, accountsPathKey, accountsConfigFile)
	if err != nil {
		return nil, err
	}

	doc := openDocument[accountsFileSchema, accountSchema, *accountsFileSchema](
		path, "accounts", currentAccountsSchemaVersion,
		func(entry accountSchema) string { return entry.ID },
	)
	return &Repository{doc: doc}, nil
}

func (r *Repository) Save(ctx context.Context, account domain.Account) error {
	return r.doc.upsert(ctx, toAccountSchema(account))
}

func (r *Repository) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	entry, ok, err := r.doc.find(ctx, string(id))
	if err != nil {
		return domain.Account{}, err
	}
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return fromAccountSchema(entry), nil
}

// List preserves insertion order.
func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	entries, err := r.doc.all(ctx)
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(entries))
	for _, entry := range entries {
		accounts = append(accounts, fromAccountSchema(entry))
	}
	return accounts, nil
}

func (r *Repository) Delete(ctx context.Context, id domain.AccountID) error {
	return r.doc.remove(ctx, string(id), domain.ErrAccountNotFound)
}

func toAccountSchema(account domain.Account) accountSchema {
	return accountSchema{
		ID:        string(account.ID),
		Name:      account.Name,
		Avatar:    account.Avatar,
		Liveness:  string(account.Liveness),
		SecretRef: account.SecretRef,
	}
}

// fromAccountSchema maps liveness values written by other tools to unknown.
func fromAccountSchema(entry accountSchema) domain.Account {
	liveness := domain.Liveness(entry.Liveness)
	if !liveness.Valid() {
		liveness = domain.LivenessUnknown
	}

	return domain.Account{
		ID:        domain.AccountID(entry.ID),
		Name:      entry.Name,
		Avatar:    entry.Avatar,
		Liveness:  liveness,
		SecretRef: entry.SecretRef,
	}
}

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
