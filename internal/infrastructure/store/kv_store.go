package store

import (
	"context"
	"embed"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

// KeyValueStore holds opaque JSON documents by key. A zero ttl means the
// entry never expires.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Migrations holds the SQL schema for PostgresStore.
//
//go:embed migrations/*.sql
var Migrations embed.FS
