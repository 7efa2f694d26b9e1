package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dbgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewLoader_DecodesYAML(t *testing.T) {
	path := writeConfig(t, `
main_dsn: "postgres://main"
meta_dsn: "postgres://meta"
batch_size: 500
worker_cap: 8
include: ["a", "b"]
`)
	l, err := NewLoader(path)
	require.NoError(t, err)

	c := l.Snapshot()
	assert.Equal(t, "postgres://main", c.MainDSN)
	assert.Equal(t, "postgres://meta", c.MetaDSN)
	assert.Equal(t, 500, c.BatchSize)
	assert.Equal(t, 8, c.WorkerCap)
	assert.Equal(t, []string{"a", "b"}, c.Include)
}

func TestNewLoader_MissingFileUsesDefaults(t *testing.T) {
	l, err := NewLoader(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	c := l.Snapshot()
	assert.Equal(t, 4, c.WorkerCap)
	assert.False(t, c.Retry)
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	path := writeConfig(t, `worker_cap: 2`)
	l, err := NewLoader(path)
	require.NoError(t, err)

	snap := l.Snapshot()
	snap.WorkerCap = 999

	assert.Equal(t, 2, l.Snapshot().WorkerCap)
}
