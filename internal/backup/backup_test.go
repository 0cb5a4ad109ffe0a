package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmesh-tool/internal/logger"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestSnapshotRestore(t *testing.T) {
	for _, codec := range []Codec{CodecZstd, CodecLZ4} {
		t.Run(string(codec), func(t *testing.T) {
			dir := t.TempDir()
			orig := make([]byte, 4096)
			for i := range orig {
				orig[i] = byte(i % 7)
			}
			target := writeFile(t, dir, "hero.xmesh", orig)

			s := NewStore(filepath.Join(dir, "bak"), codec, logger.Discard())
			snap, err := s.Snapshot(target)
			require.NoError(t, err)

			data, h, err := Read(snap)
			require.NoError(t, err)
			assert.Equal(t, orig, data)
			assert.Equal(t, codec, h.Codec)
			assert.Equal(t, uint64(len(orig)), h.Size)
			assert.Equal(t, Fingerprint(orig), h.Fingerprint)

			require.NoError(t, os.WriteFile(target, []byte("clobbered"), 0o644))
			require.NoError(t, Restore(snap, target))
			got, err := os.ReadFile(target)
			require.NoError(t, err)
			assert.Equal(t, orig, got)
		})
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "a.xpps", []byte("metadata bytes"))
	s := NewStore(dir, CodecLZ4, nil)
	snap, err := s.Snapshot(target)
	require.NoError(t, err)

	raw, err := os.ReadFile(snap)
	require.NoError(t, err)
	raw[16] ^= 0xFF // fingerprint
	require.NoError(t, os.WriteFile(snap, raw, 0o644))

	_, _, err = Read(snap)
	require.ErrorIs(t, err, ErrCorrupt)
	require.ErrorIs(t, Restore(snap, target), ErrCorrupt)

	current, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "metadata bytes", string(current))
}

func TestPruneAndLatest(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "hero.xpps", []byte("v"))
	s := NewStore(filepath.Join(dir, "bak"), CodecZstd, nil)
	s.MaxBackups = 2
	s.now = fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	var snaps []string
	for i := 0; i < 4; i++ {
		p, err := s.Snapshot(target)
		require.NoError(t, err)
		snaps = append(snaps, p)
	}
	all, err := s.List("hero.xpps")
	require.NoError(t, err)
	assert.Equal(t, snaps[2:], all)

	latest, err := s.Latest("hero.xpps")
	require.NoError(t, err)
	assert.Equal(t, snaps[3], latest)

	_, err = s.Latest("other.xpps")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecZstd, c)
	c, err = ParseCodec("LZ4")
	require.NoError(t, err)
	assert.Equal(t, CodecLZ4, c)
	_, err = ParseCodec("gzip")
	require.ErrorIs(t, err, ErrUnknownCodec)
}
