// Package pass stores credential blobs in a pass-compatible password store
// (pass or gopass).
package pass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports"
)

var ErrUnavailable = errors.New("pass command unavailable")

const (
	DefaultBinary    = "pass"
	storeDirEnv      = "PASSWORD_STORE_DIR"
	notInStoreMarker = "is not in the password store"
)

// invocation is one call to the password-store binary.
type invocation struct {
	args  []string
	input string
	env   []string
}

type runFunc func(ctx context.Context, binary string, inv invocation) (stdout string, stderr string, err error)

type Store struct {
	binary   string
	storeDir string
	run      runFunc
}

var _ ports.SecretStore = (*Store)(nil)

type Option func(*Store)

// WithBinary selects the executable, e.g. gopass.
func WithBinary(binary string) Option {
	return func(s *Store) {
		if strings.TrimSpace(binary) != "" {
			s.binary = binary
		}
	}
}

// WithStoreDir points the binary at a password store other than the user's default.
func WithStoreDir(dir string) Option {
	return func(s *Store) {
		s.storeDir = strings.TrimSpace(dir)
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{binary: DefaultBinary, run: runCommand}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	_, err := s.call(ctx, "put", key, value+"\n", "insert", "-m", "-f", key)
	return err
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	stdout, err := s.call(ctx, "get", key, "", "show", key)
	if err != nil {
		return "", err
	}

	// Multi-line inserts come back with the trailing newline pass appended.
	return strings.TrimRight(stdout, "\r\n"), nil
}

// Delete is idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.call(ctx, "delete", key, "", "rm", "-f", key)
	if errors.Is(err, domain.ErrSecretNotFound) {
		return nil
	}
	return err
}

func (s *Store) call(ctx context.Context, op, key, input string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	inv := invocation{args: args, input: input}
	if s.storeDir != "" {
		inv.env = []string{storeDirEnv + "=" + s.storeDir}
	}

	stdout, stderr, err := s.run(ctx, s.binary, inv)
	if err == nil {
		return stdout, nil
	}
	if errors.Is(err, ErrUnavailable) {
		return "", err
	}
	if strings.Contains(stderr, notInStoreMarker) {
		return "", fmt.Errorf("%s %s %q: %w", s.binary, op, key, domain.ErrSecretNotFound)
	}
	if stderr == "" {
		return "", fmt.Errorf("%s %s %q: %w", s.binary, op, key, err)
	}
	return "", fmt.Errorf("%s %s %q: %w: %s", s.binary, op, key, err, stderr)
}

func runCommand(ctx context.Context, binary string, inv invocation) (string, string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", fmt.Errorf("%w: %s", ErrUnavailable, binary)
		}
		return "", "", fmt.Errorf("locate %s command: %w", binary, err)
	}

	cmd := exec.CommandContext(ctx, path, inv.args...)
	if inv.input != "" {
		cmd.Stdin = strings.NewReader(inv.input)
	}
	if len(inv.env) > 0 {
		cmd.Env = append(os.Environ(), inv.env...)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}
