package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/internal/repository/postgres"
)

// PostgresURLEnv names the DSN of a disposable database used by tests that
// need real row locks.
const PostgresURLEnv = "DOCTORCONNECT_TEST_DATABASE_URL"

// NewPostgresStore connects to the database named by PostgresURLEnv and
// applies migrations. The test is skipped when the variable is unset.
func NewPostgresStore(t testing.TB) (repository.Store, *sqlx.DB) {
	t.Helper()

	dsn := os.Getenv(PostgresURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = postgres.NewMigrator(db).Up(context.Background())
	require.NoError(t, err)
	return postgres.NewStore(db), db
}
