package batch

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// ManifestEntry is one rendered mesh in manifest.json.
type ManifestEntry struct {
	Hash      string `json:"hash"`
	LOD       uint16 `json:"lod"`
	Image     string `json:"image,omitempty"`
	Texture   string `json:"texture,omitempty"`
	Vertices  int    `json:"vertices"`
	Triangles int    `json:"triangles"`
	Error     string `json:"error,omitempty"`
}

// WriteManifest writes results as an indented JSON array. Failed renders
// are listed with their error and no image.
func WriteManifest(path string, results []Result) error {
	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		e := ManifestEntry{
			Hash:      fmt.Sprintf("%X", r.Hash),
			LOD:       r.LOD,
			Texture:   r.Texture,
			Vertices:  r.Vertices,
			Triangles: r.Triangles,
			Error:     r.Error,
		}
		if r.Success {
			e.Image = r.Image
		}
		entries[i] = e
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("batch: write manifest: %w", err)
	}
	return nil
}
