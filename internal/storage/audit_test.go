package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/guard"
)

func openTestDB(t *testing.T) *AuditLog {
	t.Helper()
	db, err := Open("sqlite3", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(db, "sqlite3"))
	return NewAuditLog(db, nil)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("sqlite3", "")
	assert.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("postgres", "whatever")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open("sqlite3", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, "sqlite3"))
	require.NoError(t, Migrate(db, "sqlite3"))
}

func TestAuditLogRoundTrip(t *testing.T) {
	audit := openTestDB(t)
	ctx := context.Background()

	audit.Log(ctx, guard.Record{
		Endpoint: "POST /api/chat",
		Status:   "allowed",
		ClientIP: "127.0.0.1",
		At:       time.Now().UTC(),
	})
	audit.Log(ctx, guard.Record{
		Endpoint: "POST /api/chat",
		Status:   "rate_limited",
		ClientIP: "10.0.0.1",
		At:       time.Now().UTC(),
	})

	records, err := audit.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "rate_limited", records[0].Status)
	assert.Equal(t, "10.0.0.1", records[0].ClientIP)
	assert.Equal(t, "allowed", records[1].Status)
	assert.Equal(t, "POST /api/chat", records[1].Endpoint)
}

func TestRecentHonorsLimit(t *testing.T) {
	audit := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		audit.Log(ctx, guard.Record{
			Endpoint: fmt.Sprintf("GET /api/sessions?n=%d", i),
			Status:   "allowed",
			ClientIP: "127.0.0.1",
			At:       time.Now().UTC(),
		})
	}

	records, err := audit.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = audit.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 5, "non-positive limit falls back to the default")
}
