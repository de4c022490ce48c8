package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shishobooks/jellytweak/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(t.TempDir(), "library.db")
	return cfg
}

func TestNew_OpensFileDatabase(t *testing.T) {
	t.Parallel()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)

	var timeout int
	err = db.QueryRow("PRAGMA busy_timeout").Scan(&timeout)
	require.NoError(t, err)
	assert.Equal(t, 5000, timeout)
}

func TestNew_StatementsShareOneConnection(t *testing.T) {
	t.Parallel()

	cfg := config.NewForTest()
	db, err := New(cfg)
	require.NoError(t, err)
	defer db.Close()

	// An in-memory database only survives if every query reuses the same
	// connection.
	_, err = db.Exec("CREATE TABLE items (path TEXT)")
	require.NoError(t, err)

	stmt, err := db.Prepare("INSERT INTO items (path) VALUES (?)")
	require.NoError(t, err)
	for _, p := range []string{"/music/a", "/music/b"} {
		_, err = stmt.Exec(p)
		require.NoError(t, err)
	}
	require.NoError(t, stmt.Close())

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCheckCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	err = CheckCatalog(ctx, db, "TypedBaseItems")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TypedBaseItems")

	_, err = db.Exec("CREATE TABLE TypedBaseItems (guid BLOB)")
	require.NoError(t, err)
	assert.NoError(t, CheckCatalog(ctx, db, "TypedBaseItems"))
}
