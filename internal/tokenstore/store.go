package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"supplydash/internal/config"
)

var (
	// ErrNotFound is returned by Load when no refresh token has been saved.
	ErrNotFound = errors.New("tokenstore: no refresh token stored")

	// ErrReadOnly is returned by Save and Clear on backends that cannot be
	// written from inside the process.
	ErrReadOnly = errors.New("tokenstore: store is read-only")
)

// Store is the durable single-slot refresh token store.
type Store interface {
	// Save replaces the stored token. The value is durable once Save returns.
	Save(ctx context.Context, token string) error
	// Load returns the stored token or ErrNotFound.
	Load(ctx context.Context) (string, error)
	// Clear removes the stored token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
	// Describe names the backend for status output, e.g. "file:data/refresh_token".
	Describe() string
}

// New builds the backend selected by cfg.Type.
func New(cfg config.TokenStoreConfig) (Store, error) {
	switch cfg.Type {
	case config.TokenStoreFile, "":
		return NewFileStore(cfg.File.Path), nil
	case config.TokenStoreEnv:
		return NewEnvStore(cfg.Env.Variable, os.LookupEnv), nil
	case config.TokenStoreRedis:
		return NewRedisStore(cfg.Redis)
	case config.TokenStoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store type %q", cfg.Type)
	}
}
