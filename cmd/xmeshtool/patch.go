package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"xmesh-tool/internal/backup"
	"xmesh-tool/internal/mesh"
	"xmesh-tool/internal/xmesh"
)

func injectCmd() *cli.Command {
	var (
		replace  []string
		xppsPath string
	)
	return &cli.Command{
		Name:      "inject",
		Usage:     "Write replacement geometry into mesh slots",
		ArgsUsage: "<file.xmesh>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "replace",
				Aliases:     []string{"r"},
				Usage:       "HASH=source.json; the source is a host mesh in JSON (repeatable)",
				Required:    true,
				Destination: &replace,
			},
			&cli.StringFlag{Name: "xpps", Usage: "metadata container (default: beside the .xmesh)", Destination: &xppsPath},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1, "<file.xmesh>"); err != nil {
				return err
			}
			xmeshPath := cmd.Args().First()
			pairs, err := parsePairs(replace)
			if err != nil {
				return err
			}
			reps := make([]xmesh.Replacement, 0, len(pairs))
			for _, h := range sortedHashes(pairs) {
				g, err := buildSource(pairs[h])
				if err != nil {
					return err
				}
				reps = append(reps, xmesh.Replacement{Hash: h, Geometry: g})
			}
			return inject(ctx, xmeshPath, xppsPath, reps)
		},
	}
}

// inject patches every replacement and prints one status line each.
func inject(ctx context.Context, xmeshPath, xppsPath string, reps []xmesh.Replacement) error {
	store, err := state.backups(xmeshPath)
	if err != nil {
		return err
	}
	results, err := xmesh.PatchAll(ctx, xmeshPath, reps, xmesh.Options{
		XPPSPath: xppsPath,
		Backups:  store,
		Log:      state.log,
	})
	if jsonOut {
		if perr := printJSON(results); perr != nil {
			return perr
		}
	} else {
		for _, r := range results {
			status(fmt.Sprintf("%X: %s", r.Hash, r.Status))
		}
	}
	return err
}

func buildSource(path string) (*mesh.Geometry, error) {
	var src mesh.SourceMesh
	if err := readJSON(path, &src); err != nil {
		return nil, err
	}
	g, err := mesh.Build(&src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func automatchCmd() *cli.Command {
	var apply bool
	return &cli.Command{
		Name:      "automatch",
		Usage:     "Assign replacement meshes to the smallest slots that hold them",
		ArgsUsage: "<file.xmesh> <source.json>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "apply", Usage: "inject the matched meshes", Destination: &apply},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 2, "<file.xmesh> <source.json>..."); err != nil {
				return err
			}
			args := cmd.Args().Slice()
			xmeshPath, sources := args[0], args[1:]

			geoms := make(map[string]*mesh.Geometry, len(sources))
			cands := make([]xmesh.Candidate, 0, len(sources))
			for _, p := range sources {
				g, err := buildSource(p)
				if err != nil {
					return err
				}
				name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
				geoms[name] = g
				cands = append(cands, xmesh.Candidate{Name: name, VertexCount: g.VertexCount()})
			}

			slots, err := xmesh.Scan(xmeshPath)
			if err != nil {
				return err
			}
			report, err := xmesh.AutoMatch(cands, slots, uint16(state.cfg.MatchLOD))
			if err != nil {
				return err
			}
			if jsonOut {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				for _, m := range report.Matches {
					fmt.Printf("%s (%d) -> %X (%d)\n", m.Candidate.Name, m.Candidate.VertexCount, m.Slot.Hash, m.Slot.Vertices)
				}
				for _, c := range report.Unmatched {
					fmt.Printf("%s (%d) -> no slot\n", c.Name, c.VertexCount)
				}
			}
			status(report.Status())

			if !apply || len(report.Matches) == 0 {
				return nil
			}
			reps := make([]xmesh.Replacement, len(report.Matches))
			for i, m := range report.Matches {
				reps[i] = xmesh.Replacement{Hash: m.Slot.Hash, Geometry: geoms[m.Candidate.Name]}
			}
			return inject(ctx, xmeshPath, "", reps)
		},
	}
}

func restoreCmd() *cli.Command {
	var (
		snapshot string
		list     bool
	)
	return &cli.Command{
		Name:      "restore",
		Usage:     "Put a file back from its newest (or a given) snapshot",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "snapshot", Usage: "restore from this snapshot", Destination: &snapshot},
			&cli.BoolFlag{Name: "list", Usage: "list the file's snapshots", Destination: &list},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1, "<file>"); err != nil {
				return err
			}
			target := cmd.Args().First()
			dir := state.cfg.BackupDirFor(target)
			if dir == "" {
				return errors.New("backups are disabled")
			}
			store := backup.NewStore(dir, backup.CodecZstd, state.log)

			if list {
				snaps, err := store.List(filepath.Base(target))
				if err != nil {
					return err
				}
				for _, s := range snaps {
					fmt.Println(s)
				}
				status(fmt.Sprintf("Found %d snapshots.", len(snaps)))
				return nil
			}

			if snapshot == "" {
				latest, err := store.Latest(filepath.Base(target))
				if err != nil {
					return fmt.Errorf("no snapshot of %s in %s: %w", filepath.Base(target), dir, err)
				}
				snapshot = latest
			}
			if err := backup.Restore(snapshot, target); err != nil {
				return err
			}
			status(fmt.Sprintf("Restored %s from %s", target, snapshot))
			return nil
		},
	}
}
