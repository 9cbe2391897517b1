// Package dbtest opens a migrated Postgres pool for repository tests. Tests
// using it are skipped unless TEST_POSTGRES_DSN is set.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-availability-scheduling/internal/db"
)

const DSNEnv = "TEST_POSTGRES_DSN"

// Pool connects to the database named by TEST_POSTGRES_DSN and applies the
// embedded migrations. The pool is closed when the test ends.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", DSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// migrate's Close also closes the database/sql handle, so it gets its own pool
	migPool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	mg, err := db.NewMigrator(migPool, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, mg.Up())
	_ = mg.Close()
	migPool.Close()

	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// ID returns a unique identifier so tests sharing one database don't collide.
func ID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
