package application

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/bnema/autoseed-cli/internal/domain"
)

// MatchAccounts resolves each query to one account: exact id first, then exact
// name, then the best fuzzy name match.
func MatchAccounts(accounts []domain.Account, queries []string) ([]domain.Account, error) {
	names := make([]string, len(accounts))
	for i, account := range accounts {
		names[i] = account.DisplayName()
	}

	matched := make([]domain.Account, 0, len(queries))
	seen := make(map[domain.AccountID]struct{}, len(queries))
	for _, query := range queries {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}

		account, ok := matchAccount(accounts, names, query)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrAccountNotFound, query)
		}
		if _, dup := seen[account.ID]; dup {
			continue
		}
		seen[account.ID] = struct{}{}
		matched = append(matched, account)
	}

	return matched, nil
}

func matchAccount(accounts []domain.Account, names []string, query string) (domain.Account, bool) {
	for _, account := range accounts {
		if string(account.ID) == query {
			return account, true
		}
	}
	for i, name := range names {
		if strings.EqualFold(name, query) {
			return accounts[i], true
		}
	}

	matches := fuzzy.Find(query, names)
	if len(matches) == 0 {
		return domain.Account{}, false
	}
	return accounts[matches[0].Index], true
}
