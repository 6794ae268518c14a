package cache

import (
	"context"
)

// VerdictCache stores encoded predictions by content hash.
type VerdictCache interface {
	// Get returns the value for key and whether it was found and not expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (noopCache) Set(context.Context, string, []byte) error {
	return nil
}

func (noopCache) Close() error {
	return nil
}
