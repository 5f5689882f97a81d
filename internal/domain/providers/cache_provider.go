package providers

import (
	"context"
)

// CacheProvider stores encoded assessments under namespaced keys. A miss is
// reported as a NOT_FOUND error.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error
	Delete(ctx context.Context, key string) error
}
