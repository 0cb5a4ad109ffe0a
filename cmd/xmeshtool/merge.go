package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/urfave/cli/v3"

	"xmesh-tool/internal/modmerge"
	"xmesh-tool/internal/texture"
	"xmesh-tool/internal/xpps"
)

func diffCmd() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Compare mods against the original and list conflicts",
		ArgsUsage: "<original> <mod>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 2, "<original> <mod>..."); err != nil {
				return err
			}
			args := cmd.Args().Slice()
			rep, err := scanMods(args[0], args[1:])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(rep)
			}
			printReport(rep)
			return nil
		},
	}
}

func scanMods(orig string, mods []string) (*modmerge.Report, error) {
	paths := make([]string, len(mods))
	for i, m := range mods {
		paths[i] = metadataPath(m)
	}
	rep, err := modmerge.ScanConflicts(metadataPath(orig), paths)
	if err != nil {
		return nil, err
	}
	for _, s := range rep.Mods {
		for hash, c := range s.Changes {
			if c.VertexCountIncreased {
				state.log.Warn("mod raises vertex count", "mod", s.Path, "hash", fmt.Sprintf("%X", hash))
			}
		}
	}
	return rep, nil
}

func printReport(rep *modmerge.Report) {
	for _, s := range rep.Mods {
		fmt.Printf("%s: %d changed meshes\n", s.Path, len(s.Changes))
	}
	for _, h := range rep.ConflictHashes() {
		fmt.Printf("CONFLICT %X:", h)
		for _, s := range rep.Conflicts[h] {
			fmt.Printf(" %s", s.Path)
		}
		fmt.Println()
	}
	for _, h := range rep.CleanHashes() {
		fmt.Printf("clean    %X: %s\n", h, rep.Clean[h].Path)
	}
	status(fmt.Sprintf("%d conflicts, %d clean changes.", len(rep.Conflicts), len(rep.Clean)))
}

func mergeCmd() *cli.Command {
	var (
		mods       []string
		choose     []string
		preferLast bool
		outputDir  string
		textures   bool
	)
	return &cli.Command{
		Name:      "merge",
		Usage:     "Combine several mods of one asset into a new mod folder",
		ArgsUsage: "<original.xmesh>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "mod", Usage: "mod .xpps or .xmesh (repeatable)", Required: true, Destination: &mods},
			&cli.StringSliceFlag{Name: "choose", Usage: "HASH=mod path resolving a conflict (repeatable)", Destination: &choose},
			&cli.BoolFlag{Name: "prefer-last", Usage: "resolve remaining conflicts with the last listed mod", Destination: &preferLast},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "folder receiving MERGED_MOD_<id>", Destination: &outputDir},
			&cli.BoolFlag{Name: "textures", Usage: "copy the textures of merged meshes", Destination: &textures},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1, "<original.xmesh>"); err != nil {
				return err
			}
			orig := cmd.Args().First()
			res, err := merge(ctx, orig, mods, choose, preferLast, outputDir, textures)
			if jsonOut && err == nil {
				if err := printJSON(res); err != nil {
					return err
				}
			}
			status(res.Status)
			return err
		},
	}
}

func merge(ctx context.Context, orig string, mods, choose []string, preferLast bool, outputDir string, withTextures bool) (modmerge.Result, error) {
	fail := func(err error) (modmerge.Result, error) {
		return modmerge.Result{Status: "Error: " + err.Error()}, err
	}

	rep, err := scanMods(orig, mods)
	if err != nil {
		return fail(err)
	}
	choices, err := parsePairs(choose)
	if err != nil {
		return fail(err)
	}
	for h, p := range choices {
		choices[h] = metadataPath(p)
	}
	if preferLast {
		for h, contributors := range rep.Conflicts {
			if _, ok := choices[h]; !ok {
				choices[h] = contributors[len(contributors)-1].Path
			}
		}
	}
	resolution, unresolved := rep.Resolution(choices)
	if len(unresolved) > 0 {
		return fail(fmt.Errorf("%d unresolved conflicts (%s); pass --choose or --prefer-last", len(unresolved), hexList(unresolved)))
	}

	if outputDir == "" {
		outputDir = state.cfg.OutputDir
	}
	if outputDir == "" {
		outputDir = filepath.Dir(orig)
	}
	opts := modmerge.Options{
		OutputRoot: outputDir,
		Resolution: resolution,
		Log:        state.log,
	}
	for _, s := range rep.Mods {
		opts.Mods = append(opts.Mods, s.Path)
	}
	if opts.Backups, err = state.backups(filepath.Join(outputDir, xpps.FallbackName)); err != nil {
		return fail(err)
	}
	if withTextures {
		idx, err := state.textureIndex()
		if err != nil {
			return fail(err)
		}
		opts.Textures = &texture.Collector{Index: idx, Names: state.nameDB(orig), Log: state.log}
	}
	return modmerge.Merge(ctx, orig, opts)
}

func hexList(hashes []uint64) string {
	s := ""
	for i, h := range hashes {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%X", h)
	}
	return s
}

func sortedHashes[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
