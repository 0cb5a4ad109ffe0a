package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFileKeepsModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, stamp, stamp))

	dst := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(dst, []byte("older and longer"), 0o644))
	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(stamp))
}

func TestCopyFileMissingSource(t *testing.T) {
	err := CopyFile(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopyTreeMerges(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bitmaps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bitmaps", "t.sps"), []byte("new"), 0o644))

	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(dst, "bitmaps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "bitmaps", "keep.sps"), []byte("keep"), 0o644))
	require.NoError(t, CopyTree(src, dst))

	got, err := os.ReadFile(filepath.Join(dst, "bitmaps", "t.sps"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assert.True(t, Exists(filepath.Join(dst, "bitmaps", "keep.sps")))
}
