package xmesh

import (
	"context"
	"errors"
	"fmt"
	"io"

	"xmesh-tool/internal/backup"
	"xmesh-tool/internal/filelock"
	"xmesh-tool/internal/logger"
	"xmesh-tool/internal/mesh"
	"xmesh-tool/internal/xpps"
)

// StatusSuccess is the status of a completed patch.
const StatusSuccess = "SUCCESS"

// Options configures Patch.
type Options struct {
	// XPPSPath overrides the metadata companion lookup.
	XPPSPath string
	// Backups, when set, snapshots both files before either is written.
	Backups *backup.Store
	Log     logger.Logger
}

// Replacement pairs a slot hash with the geometry to put there.
type Replacement struct {
	Hash     uint64
	Geometry *mesh.Geometry
}

// Result reports one patch. Status is human readable in every case.
type Result struct {
	Hash      uint64     `json:"hash"`
	Status    string     `json:"status"`
	Stats     PatchStats `json:"stats"`
	Snapshots []string   `json:"snapshots,omitempty"`
}

// Patch writes g into slot hash of the geometry container and then patches
// the slot's metadata record. The geometry file is locked for the duration.
// Nothing is written when a capacity or lookup check fails.
func Patch(ctx context.Context, xmeshPath string, hash uint64, g *mesh.Geometry, opts Options) (Result, error) {
	res := Result{Hash: hash}
	log := opts.Log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	log = log.With("hash", fmt.Sprintf("%X", hash))

	xppsPath := opts.XPPSPath
	if xppsPath == "" {
		xppsPath = xpps.ResolvePath(xmeshPath)
	}
	md, err := xpps.Load(xppsPath)
	if err != nil {
		return fail(res, err)
	}
	meta, ok := md.Mesh(hash)
	if !ok {
		return fail(res, fmt.Errorf("%w: %X in %s", ErrHashNotFound, hash, xppsPath))
	}
	log.Info("injecting", "vertices", g.VertexCount(), "triangles", len(g.Indices)/3, "slot_vertices", meta.VertexCount)

	f, err := filelock.OpenLocked(xmeshPath)
	if err != nil {
		return fail(res, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fail(res, fmt.Errorf("xmesh: read %s: %w", xmeshPath, err))
	}
	ct, err := Parse(data)
	if err != nil {
		return fail(res, fmt.Errorf("xmesh: %s: %w", xmeshPath, err))
	}
	cur, stats, err := ct.PatchBuffer(meta, g)
	if err != nil {
		return fail(res, err)
	}
	res.Stats = stats
	if stats.Skipped > 0 {
		log.Debug("aliased attribute writes skipped", "count", stats.Skipped)
	}

	if err := ctx.Err(); err != nil {
		return fail(res, err)
	}
	if opts.Backups != nil {
		for _, p := range []string{xmeshPath, xppsPath} {
			snap, err := opts.Backups.Snapshot(p)
			if err != nil {
				return fail(res, err)
			}
			res.Snapshots = append(res.Snapshots, snap)
		}
	}

	if err := cur.FlushDirty(f); err != nil {
		return fail(res, fmt.Errorf("xmesh: %s: %w", xmeshPath, err))
	}
	// the geometry is on disk; a failure below leaves the metadata stale
	patch := xpps.MeshPatch{
		Offset:      g.Bounds.Offset,
		Scale:       g.Bounds.Scale,
		IndexCount:  uint32(len(g.Indices)),
		VertexCount: uint32(g.VertexCount()),
	}
	if err := xpps.PatchFile(xppsPath, hash, patch); err != nil {
		log.Error("metadata patch failed after geometry write", "xpps", xppsPath, "error", err)
		return fail(res, err)
	}
	log.Info("metadata updated", "offset", patch.Offset, "scale", patch.Scale)

	res.Status = StatusSuccess
	return res, nil
}

// PatchAll applies each replacement in order and stops at the first error.
func PatchAll(ctx context.Context, xmeshPath string, reps []Replacement, opts Options) ([]Result, error) {
	out := make([]Result, 0, len(reps))
	for _, r := range reps {
		res, err := Patch(ctx, xmeshPath, r.Hash, r.Geometry, opts)
		out = append(out, res)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func fail(res Result, err error) (Result, error) {
	res.Status = statusFor(err)
	return res, err
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity exceeded: " + err.Error()
	case errors.Is(err, ErrHashNotFound), errors.Is(err, xpps.ErrHashNotFound):
		return "hash not found: " + err.Error()
	case errors.Is(err, filelock.ErrLocked):
		return "file busy: " + err.Error()
	}
	return "error: " + err.Error()
}
