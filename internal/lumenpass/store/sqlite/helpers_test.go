package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/AdityaRanjanp/LumenPass/internal/db"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
	sqlitestore "github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store/sqlite"
)

// openTestDB returns an in-memory SQLite connection with the same
// PRAGMAs and schema as production.  Closed automatically when the test
// finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each call gets a unique in-memory database; the shared-cache URI
	// keeps it alive for the lifetime of the connection pool.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	require.NoError(t, err, "sql.Open")

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	require.NoError(t, conn.Ping(), "ping")
	require.NoError(t, db.Migrate(context.Background(), conn), "migrate")

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Writer backed by conn, closed automatically
// when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Writer {
	t.Helper()

	w := db.NewWriter(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

func newTestStores(t *testing.T) (*sqlitestore.CredentialStore, *sqlitestore.ScanAttemptStore) {
	t.Helper()
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	return sqlitestore.NewCredentialStore(conn, w), sqlitestore.NewScanAttemptStore(conn, w)
}

func issueTestCredential(t *testing.T, creds *sqlitestore.CredentialStore, id string, issuedAt time.Time, ttl time.Duration) {
	t.Helper()
	err := creds.Issue(context.Background(), store.CredentialRecord{
		ID:        id,
		Subject:   "alice",
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
		Status:    store.StatusUnused,
	})
	require.NoError(t, err)
}
