// Package file keeps encoded account credentials on disk, one file per
// account, for machines without a password store.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports"
)

const (
	storeDirMode  = 0o700
	secretFileMod = 0o600

	accountsSegment   = "accounts"
	credentialSegment = "credential"
)

// ErrInvalidKey rejects keys outside the <namespace>/accounts/<id>/credential
// layout.
var ErrInvalidKey = errors.New("invalid credential key")

// Store mirrors credential keys as root/<namespace>/accounts/<id>/credential.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

type credentialKey struct {
	namespace string
	account   domain.AccountID
}

func parseKey(key string) (credentialKey, error) {
	parts := strings.Split(strings.TrimSpace(key), "/")
	if len(parts) != 4 || parts[1] != accountsSegment || parts[3] != credentialSegment {
		return credentialKey{}, fmt.Errorf("%w %q: want <namespace>/%s/<id>/%s", ErrInvalidKey, key, accountsSegment, credentialSegment)
	}
	for _, segment := range []string{parts[0], parts[2]} {
		if !validSegment(segment) {
			return credentialKey{}, fmt.Errorf("%w %q: bad segment %q", ErrInvalidKey, key, segment)
		}
	}
	return credentialKey{namespace: parts[0], account: domain.AccountID(parts[2])}, nil
}

func validSegment(segment string) bool {
	if segment == "" || segment == "." || segment == ".." {
		return false
	}
	if strings.TrimSpace(segment) != segment {
		return false
	}
	return !strings.ContainsAny(segment, `/\`)
}

func (k credentialKey) path(root string) string {
	return filepath.Join(root, k.namespace, accountsSegment, string(k.account), credentialSegment)
}

// Put replaces the account's credential blob atomically.
func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ck, err := parseKey(key)
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("store credential for account %s: empty blob", ck.account)
	}
	path := ck.path(s.root)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), storeDirMode); err != nil {
		return fmt.Errorf("create credential directory for account %s: %w", ck.account, err)
	}
	if err := renameio.WriteFile(path, []byte(value), secretFileMod); err != nil {
		return fmt.Errorf("store credential for account %s: %w", ck.account, err)
	}

	return nil
}

// Get returns the stored blob. A trailing newline left by a hand edit is
// dropped.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ck, err := parseKey(key)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(ck.path(s.root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("credential for account %s: %w", ck.account, domain.ErrSecretNotFound)
		}
		return "", fmt.Errorf("read credential for account %s: %w", ck.account, err)
	}

	blob := strings.TrimRight(string(data), "\r\n")
	if blob == "" {
		return "", fmt.Errorf("credential for account %s is empty: %w", ck.account, domain.ErrSecretNotFound)
	}
	return blob, nil
}

// Delete is idempotent. The account directory goes with its credential, and
// parents left empty are pruned up to root.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ck, err := parseKey(key)
	if err != nil {
		return err
	}
	path := ck.path(s.root)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential for account %s: %w", ck.account, err)
	}
	s.pruneEmptyParents(filepath.Dir(path))

	return nil
}

func (s *Store) pruneEmptyParents(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
