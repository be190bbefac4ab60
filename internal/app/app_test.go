package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marky/internal/config"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/store"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ListenPort:        "127.0.0.1:0",
		ShutdownTimeout:   2 * time.Second,
		Backend:           backend,
		LocalDir:          dir,
		SQLitePath:        filepath.Join(dir, "marky.db"),
		StrictDelete:      true,
		AuthDBPath:        filepath.Join(dir, "auth.db"),
		SessionTTL:        time.Hour,
		SessionGCInterval: time.Hour,
		LoginBurst:        5,
		LoginRefillPerMin: 5,
	}
}

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- title: Go
  url: https://go.dev
  tags: [lang]
`), 0o644))
	return path
}

func TestLocalImport(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t, store.BackendLocal), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	sess, err := a.SessionFor(ctx, "", "")
	require.NoError(t, err)

	res, err := a.ImportFile(ctx, sess, writeSeed(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	list, err := a.Bookmarks().Collection(ctx, sess)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "https://go.dev", list[0].URL)
}

func TestSQLiteNeedsAccount(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t, store.BackendSQLite), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.SessionFor(ctx, "", "")
	assert.Error(t, err, "remote backends have no shared collection")

	up, err := a.auth.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	sess, err := a.SessionFor(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, up.UserID, sess.UserID)

	_, err = a.ImportFile(ctx, sess, writeSeed(t))
	require.NoError(t, err)
	list, err := a.Bookmarks().Collection(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSeedSkippedWithoutSeedUser(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, store.BackendSQLite)
	cfg.SeedFile = writeSeed(t)

	a, err := New(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.NoError(t, a.seed(ctx))
	assert.Zero(t, a.bookmarks.Index().Count())
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, store.BackendLocal)
	cfg.SeedFile = writeSeed(t)

	a, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := a.bookmarks.Index().Get("")
		return ok
	}, 2*time.Second, 10*time.Millisecond, "seed should be loaded before serving")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	a.Close()
}
