package texture

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"xmesh-tool/internal/binio"
)

// DefaultNameDB is the conventional name database file beside a geometry
// container.
const DefaultNameDB = "game.sprig.texmeshman"

const (
	nameDBMagic     = "NAMS"
	nameTableField  = 32
	nameTableDelta  = 40
	noName          = 255
	entryHashSkip   = 16
	entryFlagSkip   = 11
	entryExtraBytes = 108
	entryTailSkip   = 20
)

// ErrNotNameDB is returned for files without the NAMS magic.
var ErrNotNameDB = errors.New("texture: not a name database")

// NameDB maps texture hashes to names.
type NameDB struct {
	names map[uint64]string
}

// ParseNameDB decodes a name database.
func ParseNameDB(data []byte) (*NameDB, error) {
	c := binio.NewCursor(data)
	if magic := c.String(4); magic != nameDBMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrNotNameDB, magic)
	}
	c.SeekTo(nameTableField)
	table := int64(c.U32())
	c.SeekTo(table + nameTableDelta)
	count := c.U32()
	c.Skip(4)
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("texture: name database header: %w", err)
	}

	db := &NameDB{names: make(map[uint64]string, min(int(count), len(data)/8))}
	for i := uint32(0); i < count; i++ {
		var name string
		if n := c.U32(); n != noName && n > 0 {
			name = strings.ReplaceAll(string(c.Read(int(n))), "\x00", "")
		}
		c.Skip(entryHashSkip)
		hash := c.U64()
		c.Skip(entryFlagSkip)
		if c.U8() == 1 {
			c.Skip(entryExtraBytes)
		}
		c.Skip(entryTailSkip)
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("texture: name entry %d: %w", i, err)
		}
		db.names[hash] = name
	}
	return db, nil
}

// LoadNameDB reads and decodes the name database at path.
func LoadNameDB(path string) (*NameDB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture: read %s: %w", path, err)
	}
	db, err := ParseNameDB(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// Lookup returns the stored name of hash. Entries without a name report
// an empty string and true.
func (db *NameDB) Lookup(hash uint64) (string, bool) {
	if db == nil {
		return "", false
	}
	n, ok := db.names[hash]
	return n, ok
}

// Name returns the name of hash, or Unknown_<HEX> when absent.
func (db *NameDB) Name(hash uint64) string {
	if n, ok := db.Lookup(hash); ok {
		return n
	}
	return fmt.Sprintf("Unknown_%X", hash)
}

// Len returns the number of entries.
func (db *NameDB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.names)
}

// NameCache holds the most recently loaded database. Loading the same path
// again returns the cached copy; a different path replaces it.
type NameCache struct {
	mu   sync.Mutex
	path string
	db   *NameDB
}

// Load returns the database at path, reading it only when path differs
// from the cached one. A failed load keeps the previous entry.
func (c *NameCache) Load(path string) (*NameDB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil && c.path == path {
		return c.db, nil
	}
	db, err := LoadNameDB(path)
	if err != nil {
		return nil, err
	}
	c.path, c.db = path, db
	return db, nil
}
