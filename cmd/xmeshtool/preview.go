package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"xmesh-tool/internal/batch"
	"xmesh-tool/internal/raster"
	"xmesh-tool/internal/texture"
	"xmesh-tool/internal/xpps"
)

func previewCmd() *cli.Command {
	var (
		hashes      []string
		lod         int
		outputDir   string
		size        int
		supersample int
		workers     int
		yaw, pitch  float64
	)
	return &cli.Command{
		Name:      "preview",
		Usage:     "Render mesh thumbnails to WebP",
		ArgsUsage: "<file.xmesh>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "hash", Usage: "mesh hash in hex (repeatable; default all)", Destination: &hashes},
			&cli.IntFlag{Name: "lod", Usage: "only render this LOD (-1 = all)", Value: -1, Destination: &lod},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output folder", Destination: &outputDir},
			&cli.IntFlag{Name: "size", Usage: "image edge in pixels", Destination: &size},
			&cli.IntFlag{Name: "supersample", Usage: "render scale before downsampling", Destination: &supersample},
			&cli.IntFlag{Name: "workers", Usage: "render goroutines (default: NumCPU)", Destination: &workers},
			&cli.Float64Flag{Name: "yaw", Usage: "model turn in degrees", Value: raster.DefaultOptions().Yaw, Destination: &yaw},
			&cli.Float64Flag{Name: "pitch", Usage: "camera tilt in degrees", Value: raster.DefaultOptions().Pitch, Destination: &pitch},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1, "<file.xmesh>"); err != nil {
				return err
			}
			xmeshPath := cmd.Args().First()
			cfg := state.cfg
			if size > 0 {
				cfg.PreviewSize = size
			}
			if supersample > 0 {
				cfg.Supersample = supersample
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if outputDir == "" {
				outputDir = cfg.OutputDir
			}
			if outputDir == "" {
				outputDir = filepath.Join(filepath.Dir(xmeshPath), "previews")
			}

			meshes, err := decodeMeshes(xmeshPath, hashes, lod)
			if err != nil {
				return err
			}
			textureNames, resolver, err := previewTextures(xmeshPath)
			if err != nil {
				return err
			}

			jobs := make([]batch.Job, len(meshes))
			for i, m := range meshes {
				jobs[i] = batch.Job{Mesh: m, Textures: textureNames(m.Hash)}
			}
			results := batch.Run(ctx, batch.Config{
				OutputDir: outputDir,
				Textures:  resolver,
				Render: raster.Options{
					Size:        cfg.PreviewSize,
					Supersample: cfg.Supersample,
					Yaw:         yaw,
					Pitch:       pitch,
				},
				Workers:  cfg.Workers,
				Progress: 2 * time.Second,
				Log:      state.log,
			}, jobs)

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return err
			}
			if err := batch.WriteManifest(filepath.Join(outputDir, "manifest.json"), results); err != nil {
				return err
			}
			ok := 0
			for _, r := range results {
				if r.Success {
					ok++
				} else {
					state.log.Warn("preview failed", "hash", fmt.Sprintf("%X", r.Hash), "error", r.Error)
				}
			}
			status(fmt.Sprintf("Rendered %d of %d previews to %s", ok, len(results), outputDir))
			return nil
		},
	}
}

// previewTextures returns the texture names of each mesh and a resolver
// over the texture root. Without a texture root every mesh renders
// untextured.
func previewTextures(xmeshPath string) (func(uint64) []string, texture.Resolver, error) {
	none := func(uint64) []string { return nil }
	idx, err := state.textureIndex()
	if err != nil || idx == nil {
		return none, nil, err
	}
	data, err := os.ReadFile(xpps.ResolvePath(xmeshPath))
	if err != nil {
		state.log.Warn("no metadata container, previews are untextured", "error", err)
		return none, nil, nil
	}
	ct, err := xpps.Parse(data)
	if err != nil {
		return none, nil, err
	}
	names := state.nameDB(xmeshPath)
	lookup := func(hash uint64) []string {
		look, err := ct.FindTextures(hash, names)
		if err != nil {
			state.log.Debug("texture lookup failed", "hash", fmt.Sprintf("%X", hash), "error", err)
			return nil
		}
		out := make([]string, 0, len(look.Textures))
		for _, t := range look.Textures {
			out = append(out, t.Name)
		}
		return out
	}
	return lookup, texture.NewCache(idx), nil
}
