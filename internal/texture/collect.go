package texture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"xmesh-tool/internal/fsutil"
	"xmesh-tool/internal/logger"
	"xmesh-tool/internal/xpps"
)

// Collector copies the textures a mesh's material references into a mod
// folder.
type Collector struct {
	Index *Index
	Names *NameDB
	Log   logger.Logger
}

// CollectForMod looks up the textures of every mesh hash through ct and
// copies each one found to <out>/<pack>_<HASH>/<file>. Files already in
// place are not copied again. A texture that cannot be found is logged and
// skipped; copy failures are joined into the returned error. The count is
// the number of files copied.
func (c *Collector) CollectForMod(ct *xpps.Container, hashes []uint64, out string) (int, error) {
	log := logger.Or(c.Log)
	if c.Index == nil {
		log.Warn("texture root not set, skipping texture collection")
		return 0, nil
	}
	log.Info("scanning texture packs", "root", c.Index.Root(), "packs", c.Index.Len())

	copied := 0
	var errs []error
	for _, hash := range hashes {
		look, err := ct.FindTextures(hash, c.Names)
		if err != nil {
			errs = append(errs, fmt.Errorf("texture: mesh %X: %w", hash, err))
			continue
		}
		if len(look.Textures) == 0 {
			log.Debug("no textures", "hash", fmt.Sprintf("%X", hash), "status", look.Status)
			continue
		}
		for _, tex := range look.Textures {
			src, pack, ok := c.Index.Locate(tex.Name)
			if !ok {
				log.Warn("texture not found in any pack", "texture", tex.Name)
				continue
			}
			dir := filepath.Join(out, fmt.Sprintf("%s_%X", pack, hash))
			dst := filepath.Join(dir, filepath.Base(src))
			if fsutil.Exists(dst) {
				continue
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Errorf("texture: create %s: %w", dir, err))
				continue
			}
			if err := fsutil.CopyFile(src, dst); err != nil {
				log.Warn("texture copy failed", "texture", tex.Name, "error", err)
				errs = append(errs, err)
				continue
			}
			log.Info("texture copied", "pack", pack, "file", filepath.Base(src))
			copied++
		}
	}
	return copied, errors.Join(errs...)
}
