package texture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	packMarker = "gapack"
	bitmapsDir = "bitmaps"
	spsSuffix  = ".sps"
)

// Index lists the texture pack folders under a texture root.
type Index struct {
	root  string
	packs []string // folder names containing "gapack", sorted
}

// BuildIndex scans root for pack folders.
func BuildIndex(root string) (*Index, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("texture: scan %s: %w", root, err)
	}
	idx := &Index{root: root}
	for _, e := range entries {
		if e.IsDir() && strings.Contains(e.Name(), packMarker) {
			idx.packs = append(idx.packs, e.Name())
		}
	}
	sort.Strings(idx.packs)
	return idx, nil
}

// Root returns the scanned directory.
func (idx *Index) Root() string { return idx.root }

// Len returns the number of pack folders.
func (idx *Index) Len() int { return len(idx.packs) }

// searchOrder puts folders whose name contains "_<first letter>" first.
func (idx *Index) searchOrder(name string) []string {
	if name == "" {
		return idx.packs
	}
	hint := "_" + strings.ToLower(name[:1])
	var first, rest []string
	for _, p := range idx.packs {
		if strings.Contains(p, hint) {
			first = append(first, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(first, rest...)
}

// Locate finds a texture by name inside a pack's bitmaps folder, trying the
// bare name and then name.sps. It returns the file and the pack folder name.
func (idx *Index) Locate(name string) (path, pack string, ok bool) {
	if name == "" {
		return "", "", false
	}
	for _, p := range idx.searchOrder(name) {
		dir := filepath.Join(idx.root, p, bitmapsDir)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		for _, cand := range []string{name, name + spsSuffix} {
			full := filepath.Join(dir, cand)
			if info, err := os.Stat(full); err == nil && !info.IsDir() {
				return full, p, true
			}
		}
	}
	return "", "", false
}

// ResolvePath returns the filesystem path for a texture name, or ("", false).
func (idx *Index) ResolvePath(name string) (string, bool) {
	path, _, ok := idx.Locate(name)
	return path, ok
}
