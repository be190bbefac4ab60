package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "marky dev"), out)
}

func TestImportExportLocal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MARKY_BACKEND", "local")
	t.Setenv("MARKY_DATA_DIR", dir)
	t.Setenv("MARKY_LOG_LEVEL", "error")
	t.Setenv("MARKY_PRETTY_LOG", "false")

	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`
- title: Go
  url: https://go.dev
  tags: [lang]
- title: Chi
  url: https://go-chi.io
  tags: [lang, http]
`), 0o644))

	out, err := execute(t, "import", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2, skipped 0")

	out, err = execute(t, "import", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 0, skipped 2")

	dest := filepath.Join(dir, "export.html")
	t.Cleanup(func() { exportOut = "" })
	_, err = execute(t, "export", "-o", dest)
	require.NoError(t, err)

	html, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(html), `HREF="https://go.dev"`)
	assert.Contains(t, string(html), `TAGS="lang`)
}

func TestImportRequiresFile(t *testing.T) {
	_, err := execute(t, "import")
	assert.Error(t, err)
}
