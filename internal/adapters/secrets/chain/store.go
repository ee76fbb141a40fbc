// Package chain layers a fallback credential store behind a primary one.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	filestore "github.com/bnema/autoseed-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/autoseed-cli/internal/adapters/secrets/pass"
	"github.com/bnema/autoseed-cli/internal/ports"
)

var (
	errNilPrimaryStore  = errors.New("primary secret store is nil")
	errNilFallbackStore = errors.New("fallback secret store is nil")
)

// Store tries primary first and falls back on any error except cancellation.
// A primary reporting pass.ErrUnavailable is skipped for the rest of the
// process lifetime.
type Store struct {
	primary     ports.SecretStore
	fallback    ports.SecretStore
	logger      *zap.Logger
	primaryDown atomic.Bool
}

var _ ports.SecretStore = (*Store)(nil)

func New(primary ports.SecretStore, fallback ports.SecretStore, logger *zap.Logger) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{primary: primary, fallback: fallback, logger: logger.Named("secrets")}, nil
}

func NewPassFirstWithFileFallback(fileRoot string, logger *zap.Logger, passOpts ...passstore.Option) (*Store, error) {
	return New(passstore.NewStore(passOpts...), filestore.NewStore(fileRoot), logger)
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	_, err := s.attempt(ctx, "put", key, func(store ports.SecretStore) (string, error) {
		return "", store.Put(ctx, key, value)
	})
	return err
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.attempt(ctx, "get", key, func(store ports.SecretStore) (string, error) {
		return store.Get(ctx, key)
	})
}

// Delete removes key from both backends.
func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	if !s.primaryDown.Load() {
		err := s.primary.Delete(ctx, key)
		if isContextErr(err) {
			return err
		}
		s.noteUnavailable(err)
		if err != nil && !errors.Is(err, passstore.ErrUnavailable) {
			errs = append(errs, fmt.Errorf("primary backend delete failed: %w", err))
		}
	}
	if err := s.fallback.Delete(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("fallback backend delete failed: %w", err))
	}

	return errors.Join(errs...)
}

func (s *Store) attempt(ctx context.Context, op, key string, fn func(ports.SecretStore) (string, error)) (string, error) {
	if s.primaryDown.Load() {
		return fn(s.fallback)
	}

	value, err := fn(s.primary)
	if err == nil {
		return value, nil
	}
	if isContextErr(err) || ctx.Err() != nil {
		return "", err
	}
	s.noteUnavailable(err)

	s.logger.Debug("primary secret backend failed, using fallback",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
	value, fallbackErr := fn(s.fallback)
	if fallbackErr == nil {
		return value, nil
	}
	if errors.Is(err, passstore.ErrUnavailable) {
		return "", fallbackErr
	}

	return "", joinFailures(op, err, fallbackErr)
}

func (s *Store) noteUnavailable(err error) {
	if !errors.Is(err, passstore.ErrUnavailable) {
		return
	}
	if s.primaryDown.CompareAndSwap(false, true) {
		s.logger.Info("password store not installed, keeping credentials in the file store", zap.Error(err))
	}
}

func joinFailures(op string, primaryErr, fallbackErr error) error {
	return errors.Join(
		fmt.Errorf("primary backend %s failed: %w", op, primaryErr),
		fmt.Errorf("fallback backend %s failed: %w", op, fallbackErr),
	)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
