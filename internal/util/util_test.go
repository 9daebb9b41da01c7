package util_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/blacklight/internal/util"
)

func TestContains(t *testing.T) {
	require.True(t, util.Contains([]string{"claude", "gemini", "codex"}, "gemini"))
	require.False(t, util.Contains([]string{"claude", "gemini", "codex"}, "bogus"))
	require.False(t, util.Contains([]string{}, "anything"))
}

func TestCheckFileExists(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(present, []byte("hi"), 0o644))

	require.True(t, util.CheckFileExists(present))
	require.False(t, util.CheckFileExists(filepath.Join(dir, "missing.txt")))
}

func TestGetFilesize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(p, make([]byte, 42), 0o644))

	require.Equal(t, int64(42), util.GetFilesize(p))
	require.Equal(t, int64(0), util.GetFilesize(filepath.Join(dir, "missing.bin")))
}

func TestGetFilecount(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0o755))

	require.Equal(t, 3, util.GetFilecount(dir))
	require.Equal(t, 0, util.GetFilecount(filepath.Join(dir, "does-not-exist")))
}
