// Package modmerge compares edited metadata containers against their common
// original, finds meshes that more than one mod changed, and assembles a
// merged mod folder from a per-mesh choice.
package modmerge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/dgryski/go-farm"

	"xmesh-tool/internal/xpps"
)

// ErrOriginalMissing is returned when the original metadata container
// cannot be found.
var ErrOriginalMissing = errors.New("modmerge: original metadata missing")

// Change is one mesh whose metadata differs from the original.
type Change struct {
	Meta *xpps.MeshMeta `json:"meta"`
	// VertexCountIncreased flags a mod that claims more vertices than the
	// original slot holds. It is a warning, not a failure.
	VertexCountIncreased bool `json:"vertex_count_increased"`
}

// ModState is one edited container and the meshes it changed.
type ModState struct {
	Path string `json:"path"`
	Name string `json:"name"`
	// Fingerprint identifies the file contents; two paths with the same
	// bytes count as one mod.
	Fingerprint uint64            `json:"fingerprint"`
	Metadata    *xpps.Metadata    `json:"-"`
	Changes     map[uint64]Change `json:"changes"`
}

// Changed reports whether any patchable field of mod differs from orig.
func Changed(orig, mod *xpps.MeshMeta) bool {
	return orig.Scale != mod.Scale ||
		orig.Offset != mod.Offset ||
		orig.IndexCount != mod.IndexCount ||
		orig.VertexCount != mod.VertexCount
}

// Diff returns the meshes of mod that exist in orig with different
// metadata. Meshes only present in mod are ignored.
func Diff(orig, mod *xpps.Metadata) map[uint64]Change {
	out := make(map[uint64]Change)
	for hash, m := range mod.Meshes {
		o, ok := orig.Mesh(hash)
		if !ok || !Changed(o, m) {
			continue
		}
		out[hash] = Change{Meta: m, VertexCountIncreased: m.VertexCount > o.VertexCount}
	}
	return out
}

// LoadState reads the mod container at path and diffs it against orig.
func LoadState(path string, orig *xpps.Metadata) (*ModState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("modmerge: read %s: %w", path, err)
	}
	md, err := xpps.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("modmerge: %s: %w", path, err)
	}
	return &ModState{
		Path:        path,
		Name:        filepath.Base(path),
		Fingerprint: farm.Fingerprint64(data),
		Metadata:    md,
		Changes:     Diff(orig, md),
	}, nil
}

// Classification splits changed hashes into contested and uncontested.
type Classification struct {
	Conflicts map[uint64][]*ModState `json:"conflicts"`
	Clean     map[uint64]*ModState   `json:"clean"`
}

// Classify groups the changes of every state by hash. A hash changed by
// more than one distinct mod is a conflict; mods are distinct when their
// fingerprints differ.
func Classify(states []*ModState) Classification {
	byHash := make(map[uint64][]*ModState)
	for _, s := range states {
		for hash := range s.Changes {
			dup := slices.ContainsFunc(byHash[hash], func(o *ModState) bool {
				return o.Fingerprint == s.Fingerprint
			})
			if !dup {
				byHash[hash] = append(byHash[hash], s)
			}
		}
	}

	cl := Classification{
		Conflicts: make(map[uint64][]*ModState),
		Clean:     make(map[uint64]*ModState),
	}
	for hash, mods := range byHash {
		if len(mods) > 1 {
			cl.Conflicts[hash] = mods
		} else {
			cl.Clean[hash] = mods[0]
		}
	}
	return cl
}

// ConflictHashes returns the contested hashes in ascending order.
func (c Classification) ConflictHashes() []uint64 { return sortedKeys(c.Conflicts) }

// CleanHashes returns the uncontested hashes in ascending order.
func (c Classification) CleanHashes() []uint64 { return sortedKeys(c.Clean) }

// Resolution maps every clean hash to its only mod and every conflict to
// the mod path in choices. Conflicts without a choice are returned as
// unresolved.
func (c Classification) Resolution(choices map[uint64]string) (map[uint64]string, []uint64) {
	out := make(map[uint64]string, len(c.Clean)+len(c.Conflicts))
	for hash, s := range c.Clean {
		out[hash] = s.Path
	}
	var unresolved []uint64
	for _, hash := range c.ConflictHashes() {
		if p, ok := choices[hash]; ok {
			out[hash] = p
		} else {
			unresolved = append(unresolved, hash)
		}
	}
	return out, unresolved
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Report is the result of ScanConflicts.
type Report struct {
	Original *xpps.Metadata `json:"-"`
	Mods     []*ModState    `json:"mods"`
	Classification
}

// ScanConflicts loads the original container and every mod, diffs each mod
// against the original and classifies the changes.
func ScanConflicts(origPath string, modPaths []string) (*Report, error) {
	if _, err := os.Stat(origPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOriginalMissing, origPath, err)
	}
	orig, err := xpps.Load(origPath)
	if err != nil {
		return nil, err
	}
	rep := &Report{Original: orig}
	for _, p := range modPaths {
		s, err := LoadState(p, orig)
		if err != nil {
			return nil, err
		}
		rep.Mods = append(rep.Mods, s)
	}
	rep.Classification = Classify(rep.Mods)
	return rep, nil
}
