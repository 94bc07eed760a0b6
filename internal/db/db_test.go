package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNAddsPragmas(t *testing.T) {
	got := dsn("inventory.sqlite3")
	assert.Contains(t, got, "inventory.sqlite3?")
	assert.Contains(t, got, "_pragma=busy_timeout%285000%29")
	assert.Contains(t, got, "_txlock=immediate")

	assert.Contains(t, dsn("file.db?mode=rwc"), "file.db?mode=rwc&")
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	database := NewTestDB(t)
	require.NoError(t, EnsureSchema(database))
}

func TestListingLogsAppendOnly(t *testing.T) {
	database := NewTestDB(t)

	_, err := database.Exec(
		`INSERT INTO listing_logs (attempt_id, phone_id, platform, success, message, created_at)
		 VALUES ('a', 1, 'X', 0, 'out of stock', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	_, err = database.Exec(`UPDATE listing_logs SET success = 1`)
	assert.Error(t, err)

	_, err = database.Exec(`DELETE FROM listing_logs`)
	assert.Error(t, err)
}
