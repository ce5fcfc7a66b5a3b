package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires TEST_DATABASE_URL; skipped otherwise.
func setupTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := OpenPostgres(ctx, url)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := Migrations.ReadFile("migrations/000001_kv_entries.up.sql")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, string(schema))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key LIKE 'test:%'`)
	require.NoError(t, err)

	return NewPostgresStore(db)
}

func TestPostgresStore_SetGetDelete(t *testing.T) {
	s := setupTestPostgresStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "test:missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "test:k", []byte(`{"x":1}`), time.Minute))
	got, err := s.Get(ctx, "test:k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(got))

	require.NoError(t, s.Set(ctx, "test:k", []byte(`{"x":2}`), 0))
	got, err = s.Get(ctx, "test:k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":2}`, string(got))

	require.NoError(t, s.Delete(ctx, "test:k"))
	_, err = s.Get(ctx, "test:k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_ExpiredEntries(t *testing.T) {
	s := setupTestPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "test:short", []byte(`"v"`), 50*time.Millisecond))
	time.Sleep(100 * time.Millisecond)

	_, err := s.Get(ctx, "test:short")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}
