package domain

import (
	"regexp"
	"strings"
)

type AccountID string

type Liveness string

const (
	LivenessUnknown      Liveness = "unknown"
	LivenessLive         Liveness = "live"
	LivenessCheckpointed Liveness = "checkpoint"
	LivenessDead         Liveness = "dead"
)

func (l Liveness) Valid() bool {
	switch l {
	case LivenessUnknown, LivenessLive, LivenessCheckpointed, LivenessDead:
		return true
	default:
		return false
	}
}

type Account struct {
	ID       AccountID
	Name     string
	Avatar   string
	Liveness Liveness
	// SecretRef points to the encoded credential blob in the secret store.
	SecretRef string
}

func (a Account) HasCredential() bool {
	return strings.TrimSpace(a.SecretRef) != ""
}

func (a Account) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return string(a.ID)
}

var uidPattern = regexp.MustCompile(`c_user=(\d+)`)

// UIDFromCredential extracts the numeric user id carried by a session cookie.
func UIDFromCredential(raw string) string {
	match := uidPattern.FindStringSubmatch(raw)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

// MatchesIdentity reports whether a uid reported by the agent belongs to the account.
// Either side may be a substring of the other.
func (a Account) MatchesIdentity(uid string) bool {
	id := strings.TrimSpace(string(a.ID))
	uid = strings.TrimSpace(uid)
	if id == "" || uid == "" {
		return false
	}
	return strings.Contains(uid, id) || strings.Contains(id, uid)
}

// DedupeAccounts keeps the first occurrence of every account id and drops empty ids.
func DedupeAccounts(accounts []Account) []Account {
	result := make([]Account, 0, len(accounts))
	seen := make(map[AccountID]struct{}, len(accounts))
	for _, account := range accounts {
		id := AccountID(strings.TrimSpace(string(account.ID)))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		account.ID = id
		result = append(result, account)
	}
	return result
}
