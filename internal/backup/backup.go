// Package backup snapshots files before they are patched in place and puts
// them back on request.
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	farm "github.com/dgryski/go-farm"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"xmesh-tool/internal/binio"
	"xmesh-tool/internal/logger"
)

// Codec names a snapshot compression scheme.
type Codec string

const (
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

var (
	// ErrCorrupt is returned when a snapshot fails its fingerprint check.
	ErrCorrupt = errors.New("backup: snapshot is corrupt")
	// ErrUnknownCodec is returned for an unsupported codec name or byte.
	ErrUnknownCodec = errors.New("backup: unknown codec")
)

const (
	magic      = "XBAK"
	headerSize = 24
	suffix     = ".bak"
	stampFmt   = "20060102T150405.000000000"
)

var codecIDs = map[Codec]uint8{CodecZstd: 1, CodecLZ4: 2}

// ParseCodec accepts "zstd", "lz4" or empty (zstd).
func ParseCodec(s string) (Codec, error) {
	switch Codec(strings.ToLower(s)) {
	case "", CodecZstd:
		return CodecZstd, nil
	case CodecLZ4:
		return CodecLZ4, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
}

// Fingerprint is the content hash stored with every snapshot.
func Fingerprint(data []byte) uint64 { return farm.Fingerprint64(data) }

// Header is the fixed snapshot prefix.
type Header struct {
	Codec       Codec
	Size        uint64
	Fingerprint uint64
}

// Store writes snapshots into Dir. MaxBackups > 0 keeps only that many
// snapshots per file name.
type Store struct {
	Dir        string
	Codec      Codec
	MaxBackups int
	Log        logger.Logger

	now func() time.Time
}

// NewStore returns a store in dir using codec.
func NewStore(dir string, codec Codec, log logger.Logger) *Store {
	return &Store{Dir: dir, Codec: codec, Log: logger.Or(log), now: time.Now}
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Snapshot compresses the current contents of path into the store and
// returns the snapshot path.
func (s *Store) Snapshot(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("backup: read %s: %w", path, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("backup: create %s: %w", s.Dir, err)
	}

	codec := s.Codec
	if codec == "" {
		codec = CodecZstd
	}
	var buf bytes.Buffer
	if err := encode(&buf, codec, data); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s.%s%s", filepath.Base(path), s.clock().UTC().Format(stampFmt), suffix)
	out := filepath.Join(s.Dir, name)
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("backup: write %s: %w", out, err)
	}
	logger.Or(s.Log).Info("snapshot written", "file", path, "snapshot", out, "codec", codec, "bytes", len(data), "stored", buf.Len())

	if s.MaxBackups > 0 {
		s.prune(filepath.Base(path))
	}
	return out, nil
}

// List returns the snapshots of a file name, oldest first.
func (s *Store) List(base string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, glob(base)+".*"+suffix))
	if err != nil {
		return nil, fmt.Errorf("backup: list %s: %w", base, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Latest returns the newest snapshot of base, or os.ErrNotExist.
func (s *Store) Latest(base string) (string, error) {
	all, err := s.List(base)
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "", fmt.Errorf("backup: no snapshot of %s in %s: %w", base, s.Dir, os.ErrNotExist)
	}
	return all[len(all)-1], nil
}

func (s *Store) prune(base string) {
	all, err := s.List(base)
	if err != nil {
		return
	}
	for len(all) > s.MaxBackups {
		if err := os.Remove(all[0]); err != nil {
			logger.Or(s.Log).Warn("prune snapshot", "snapshot", all[0], "error", err)
		}
		all = all[1:]
	}
}

func glob(name string) string {
	r := strings.NewReplacer("*", `\*`, "?", `\?`, "[", `\[`)
	return r.Replace(name)
}

func encode(w io.Writer, codec Codec, data []byte) error {
	id, ok := codecIDs[codec]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCodec, codec)
	}
	hdr := make([]byte, headerSize)
	c := binio.NewCursor(hdr)
	c.Write([]byte(magic))
	c.PutU8(id)
	c.Fill(3)
	c.PutU64(uint64(len(data)))
	c.PutU64(Fingerprint(data))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("backup: write header: %w", err)
	}

	var zw io.WriteCloser
	switch codec {
	case CodecZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderCRC(true))
		if err != nil {
			return fmt.Errorf("backup: zstd: %w", err)
		}
		zw = enc
	case CodecLZ4:
		zw = lz4.NewWriter(w)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return fmt.Errorf("backup: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("backup: compress: %w", err)
	}
	return nil
}

// Read decompresses a snapshot and verifies its size and fingerprint.
func Read(snapshot string) ([]byte, Header, error) {
	raw, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, Header{}, fmt.Errorf("backup: read %s: %w", snapshot, err)
	}
	c := binio.NewCursor(raw)
	if c.String(4) != magic {
		return nil, Header{}, fmt.Errorf("%w: %s: bad magic", ErrCorrupt, snapshot)
	}
	id := c.U8()
	c.Skip(3)
	h := Header{Size: c.U64(), Fingerprint: c.U64()}
	if err := c.Err(); err != nil {
		return nil, Header{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, snapshot, err)
	}
	for codec, cid := range codecIDs {
		if cid == id {
			h.Codec = codec
		}
	}

	body := bytes.NewReader(raw[headerSize:])
	var r io.Reader
	switch h.Codec {
	case CodecZstd:
		dec, err := zstd.NewReader(body)
		if err != nil {
			return nil, h, fmt.Errorf("backup: zstd: %w", err)
		}
		defer dec.Close()
		r = dec
	case CodecLZ4:
		r = lz4.NewReader(body)
	default:
		return nil, h, fmt.Errorf("%w: id %d in %s", ErrUnknownCodec, id, snapshot)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, h, fmt.Errorf("%w: %s: %v", ErrCorrupt, snapshot, err)
	}
	if uint64(len(data)) != h.Size || Fingerprint(data) != h.Fingerprint {
		return nil, h, fmt.Errorf("%w: %s: content does not match its fingerprint", ErrCorrupt, snapshot)
	}
	return data, h, nil
}

// Restore verifies snapshot and overwrites target with its contents.
func Restore(snapshot, target string) error {
	data, _, err := Read(snapshot)
	if err != nil {
		return err
	}
	tmp := target + ".restore"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("backup: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("backup: replace %s: %w", target, err)
	}
	return nil
}
