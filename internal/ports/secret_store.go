package ports

import "context"

// SecretStore keeps encoded account credentials under slash-separated keys.
// Get reports a missing key with domain.ErrSecretNotFound; deleting a missing
// key succeeds.
type SecretStore interface {
	Put(ctx context.Context, key string, value string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
