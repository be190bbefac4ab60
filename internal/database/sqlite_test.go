package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "marky.db"))
	require.NoError(t, err)
	defer db.Close()

	migrations := []Migration{
		{Name: "001_things", SQL: "CREATE TABLE things (id INTEGER PRIMARY KEY)"},
		{Name: "002_things_name", SQL: "ALTER TABLE things ADD COLUMN name TEXT NOT NULL DEFAULT ''"},
	}

	require.NoError(t, Migrate(ctx, db, migrations))
	require.NoError(t, Migrate(ctx, db, migrations), "second run must skip applied steps")

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 2, n)

	_, err = db.Exec("INSERT INTO things (name) VALUES ('x')")
	assert.NoError(t, err)
}

func TestMigrateFailureIsRolledBack(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "marky.db"))
	require.NoError(t, err)
	defer db.Close()

	err = Migrate(ctx, db, []Migration{{Name: "bad", SQL: "CREATE TABLE"}})
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(1) FROM schema_migrations WHERE name = 'bad'").Scan(&n))
	assert.Zero(t, n)
}
