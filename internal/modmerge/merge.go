package modmerge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"xmesh-tool/internal/backup"
	"xmesh-tool/internal/fsutil"
	"xmesh-tool/internal/logger"
	"xmesh-tool/internal/texture"
	"xmesh-tool/internal/xpps"
)

// OutputPrefix starts the name of every merged mod folder.
const OutputPrefix = "MERGED_MOD_"

const (
	xmeshExt   = ".xmesh"
	packMarker = "gapack"
)

// Options configures Merge.
type Options struct {
	// OutputRoot receives the MERGED_MOD_<id> folder.
	OutputRoot string
	// Mods lists every contributing mod's metadata container. Geometry files
	// and texture packs are copied from their folders.
	Mods []string
	// Resolution maps a mesh hash to the metadata container whose values win.
	Resolution map[uint64]string
	// Textures, when set, also collects the textures of every applied mesh.
	Textures *texture.Collector
	// Backups, when set, snapshots the base metadata before it is patched.
	Backups *backup.Store
	Log     logger.Logger

	newID func() string
}

// Result describes a merged mod folder.
type Result struct {
	Dir          string   `json:"dir"`
	XPPSPath     string   `json:"xpps"`
	XMeshes      []string `json:"xmeshes"`
	TexturePacks []string `json:"texture_packs,omitempty"`
	Applied      []uint64 `json:"applied"`
	// Missing lists resolved hashes absent from the chosen mod.
	Missing  []uint64 `json:"missing,omitempty"`
	Textures int      `json:"textures"`
	Status   string   `json:"status"`
}

// Merge creates a fresh mod folder from the original geometry container's
// metadata, copies every mod's geometry files and texture packs into it,
// and patches the copied metadata with each resolved hash's values.
func Merge(ctx context.Context, origXMeshPath string, opts Options) (Result, error) {
	var res Result
	log := logger.Or(opts.Log)

	origXPPS := xpps.ResolvePath(origXMeshPath)
	if !fsutil.Exists(origXPPS) {
		err := fmt.Errorf("%w in %s", ErrOriginalMissing, filepath.Dir(origXMeshPath))
		res.Status = "Error: " + err.Error()
		return res, err
	}

	newID := opts.newID
	if newID == nil {
		newID = uuid.NewString
	}
	res.Dir = filepath.Join(opts.OutputRoot, OutputPrefix+newID())
	if err := os.MkdirAll(res.Dir, 0o755); err != nil {
		return failed(res, fmt.Errorf("modmerge: create %s: %w", res.Dir, err))
	}

	res.XPPSPath = filepath.Join(res.Dir, xpps.FallbackName)
	if err := fsutil.CopyFile(origXPPS, res.XPPSPath); err != nil {
		return failed(res, err)
	}
	log.Info("created base metadata", "xpps", res.XPPSPath)

	if err := collectFiles(ctx, &res, opts.Mods, log); err != nil {
		return failed(res, err)
	}

	if opts.Backups != nil {
		if _, err := opts.Backups.Snapshot(res.XPPSPath); err != nil {
			return failed(res, err)
		}
	}
	if err := applyResolution(ctx, &res, opts.Resolution, log); err != nil {
		return failed(res, err)
	}

	if opts.Textures != nil && len(res.Applied) > 0 {
		data, err := os.ReadFile(origXPPS)
		if err != nil {
			return failed(res, fmt.Errorf("modmerge: read %s: %w", origXPPS, err))
		}
		ct, err := xpps.Parse(data)
		if err != nil {
			return failed(res, fmt.Errorf("modmerge: %s: %w", origXPPS, err))
		}
		n, err := opts.Textures.CollectForMod(ct, res.Applied, res.Dir)
		res.Textures = n
		if err != nil {
			log.Warn("some textures were not copied", "error", err)
		}
	}

	res.Status = "Success! Merged Mod created in: " + res.Dir
	return res, nil
}

func failed(res Result, err error) (Result, error) {
	res.Status = "Error: " + err.Error()
	return res, err
}

// collectFiles copies geometry files, first one per name wins, and merges
// texture pack folders from each mod's directory.
func collectFiles(ctx context.Context, res *Result, mods []string, log logger.Logger) error {
	log.Info("collecting files", "mods", len(mods))
	seenMesh := make(map[string]bool)
	seenPack := make(map[string]bool)
	for _, mod := range mods {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Dir(mod)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("modmerge: list %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			switch {
			case !e.IsDir() && strings.HasSuffix(name, xmeshExt):
				if seenMesh[name] {
					continue
				}
				if err := fsutil.CopyFile(filepath.Join(dir, name), filepath.Join(res.Dir, name)); err != nil {
					return err
				}
				seenMesh[name] = true
				res.XMeshes = append(res.XMeshes, name)
				log.Info("copied geometry", "file", name, "from", dir)
			case e.IsDir() && strings.Contains(name, packMarker):
				if seenPack[name] {
					continue
				}
				if err := fsutil.CopyTree(filepath.Join(dir, name), filepath.Join(res.Dir, name)); err != nil {
					return fmt.Errorf("modmerge: copy %s: %w", name, err)
				}
				seenPack[name] = true
				res.TexturePacks = append(res.TexturePacks, name)
			}
		}
	}
	return nil
}

// applyResolution patches the copied metadata, in hash order, with each
// hash's values from its chosen mod. A mod's record pointer addresses the
// same record in the original because both share a layout.
func applyResolution(ctx context.Context, res *Result, resolution map[uint64]string, log logger.Logger) error {
	log.Info("patching metadata", "meshes", len(resolution))
	loaded := make(map[string]*xpps.Metadata)
	hashes := make([]uint64, 0, len(resolution))
	for h := range resolution {
		hashes = append(hashes, h)
	}
	slices.Sort(hashes)

	for _, hash := range hashes {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := resolution[hash]
		md, ok := loaded[path]
		if !ok {
			var err error
			if md, err = xpps.Load(path); err != nil {
				return err
			}
			loaded[path] = md
		}
		meta, ok := md.Mesh(hash)
		if !ok {
			log.Warn("hash not in chosen mod", "hash", fmt.Sprintf("%X", hash), "mod", path)
			res.Missing = append(res.Missing, hash)
			continue
		}
		if err := xpps.PatchFileAt(res.XPPSPath, meta.Pointer, xpps.PatchFromMeta(meta)); err != nil {
			return err
		}
		log.Info("applied", "hash", fmt.Sprintf("%X", hash), "mod", filepath.Base(filepath.Dir(path)))
		res.Applied = append(res.Applied, hash)
	}
	return nil
}
