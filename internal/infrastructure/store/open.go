package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

type Options struct {
	Driver          string
	PostgresURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	KeyPrefix       string
	JanitorInterval time.Duration
}

// Backing is an opened KeyValueStore together with its lifecycle hooks.
type Backing struct {
	KV     KeyValueStore
	Driver string

	ping    func(ctx context.Context) error
	close   func() error
	janitor func(ctx context.Context)
}

// Open connects the store named by opts.Driver and checks it is reachable.
func Open(ctx context.Context, opts Options) (*Backing, error) {
	switch opts.Driver {
	case DriverMemory, "":
		return &Backing{KV: NewMemoryStore(), Driver: DriverMemory}, nil

	case DriverPostgres:
		db, err := OpenPostgres(ctx, opts.PostgresURL)
		if err != nil {
			return nil, err
		}
		pg := NewPostgresStore(db)
		b := &Backing{KV: pg, Driver: DriverPostgres, ping: db.PingContext, close: db.Close}
		if opts.JanitorInterval > 0 {
			b.janitor = func(ctx context.Context) { pg.RunJanitor(ctx, opts.JanitorInterval) }
		}
		return b, nil

	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		rs := NewRedisStore(client, opts.KeyPrefix)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.RedisAddr, err)
		}
		return &Backing{KV: rs, Driver: DriverRedis, ping: rs.Ping, close: rs.Close}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
}

// Ping reports whether the store is reachable. The memory store always is.
func (b *Backing) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// RunJanitor purges expired entries until ctx is done, for stores that do
// not expire keys themselves.
func (b *Backing) RunJanitor(ctx context.Context) {
	if b.janitor == nil {
		return
	}
	log.Printf("[Store] Janitor started for %s", b.Driver)
	b.janitor(ctx)
}

func (b *Backing) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Compile-time checks.
var (
	_ KeyValueStore = (*MemoryStore)(nil)
	_ KeyValueStore = (*PostgresStore)(nil)
	_ KeyValueStore = (*RedisStore)(nil)
)
