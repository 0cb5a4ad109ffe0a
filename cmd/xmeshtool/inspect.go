package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"xmesh-tool/internal/mesh"
	"xmesh-tool/internal/skeleton"
	"xmesh-tool/internal/texture"
	"xmesh-tool/internal/xmesh"
	"xmesh-tool/internal/xpps"
)

func scanCmd() *cli.Command {
	var lod int
	return &cli.Command{
		Name:      "scan",
		Usage:     "List the mesh slots of a geometry container",
		ArgsUsage: "<file.xmesh>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "lod", Usage: "only list this LOD (-1 = all)", Value: -1, Destination: &lod},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1, "<file.xmesh>"); err != nil {
				return err
			}
			slots, err := xmesh.Scan(cmd.Args().First())
			if err != nil {
				return err
			}
			if lod >= 0 {
				kept := slots[:0]
				for _, s := range slots {
					if int(s.LOD) == lod {
						kept = append(kept, s)
					}
				}
				slots = kept
			}
			if jsonOut {
				return printJSON(slots)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "HASH\tLOD\tATTRS\tVERTICES\tTRIANGLES")
			for _, s := range slots {
				verts, tris := "-", "-"
				if s.HasMetadata {
					verts, tris = fmt.Sprint(s.Vertices), fmt.Sprint(s.Triangles)
				}
				fmt.Fprintf(tw, "%X\t%d\t%d\t%s\t%s\n", s.Hash, s.LOD, s.Attributes, verts, tris)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			status(fmt.Sprintf("Found %d meshes.", len(slots)))
			return nil
		},
	}
}

func dumpCmd() *cli.Command {
	var (
		hashes []string
		lod    int
		source bool
		output string
	)
	return &cli.Command{
		Name:      "dump",
		Usage:     "Decode meshes to JSON",
		ArgsUsage: "<file.xmesh>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "hash", Usage: "mesh hash in hex (repeatable; default all)", Destination: &hashes},
			&cli.IntFlag{Name: "lod", Usage: "only decode this LOD (-1 = all)", Value: -1, Destination: &lod},
			&cli.BoolFlag{Name: "source", Usage: "emit host-space corners instead of engine vertices", Destination: &source},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to file instead of stdout", Destination: &output},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1, "<file.xmesh>"); err != nil {
				return err
			}
			meshes, err := decodeMeshes(cmd.Args().First(), hashes, lod)
			if err != nil {
				return err
			}
			var v any = meshes
			if source {
				srcs := make([]*mesh.SourceMesh, len(meshes))
				for i, m := range meshes {
					srcs[i] = mesh.ToSource(m)
				}
				v = srcs
			}
			if err := writeJSON(output, v); err != nil {
				return err
			}
			if output != "" && output != "-" {
				status(fmt.Sprintf("Wrote %d meshes to %s", len(meshes), output))
			}
			return nil
		},
	}
}

// decodeMeshes reads the listed hashes, or every mesh of the LOD when none
// are listed.
func decodeMeshes(xmeshPath string, hashList []string, lod int) ([]*mesh.Mesh, error) {
	f, err := xmesh.Open(xmeshPath)
	if err != nil {
		return nil, err
	}
	if len(hashList) == 0 {
		return f.Geometry.ReadAll(f.Metadata, func(h xmesh.Header) bool {
			return lod < 0 || int(h.LOD) == lod
		})
	}
	hashes, err := parseHashes(hashList)
	if err != nil {
		return nil, err
	}
	out := make([]*mesh.Mesh, 0, len(hashes))
	for _, h := range hashes {
		m, err := f.Geometry.ReadMesh(h, f.Metadata)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func skeletonCmd() *cli.Command {
	return &cli.Command{
		Name:      "skeleton",
		Usage:     "Print the bind pose of a container's skeleton",
		ArgsUsage: "<file.xmesh|file.xpps>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1, "<file.xmesh|file.xpps>"); err != nil {
				return err
			}
			path := metadataPath(cmd.Args().First())
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			s, err := skeleton.Read(data)
			if err != nil {
				return err
			}
			if s == nil {
				status("No skeleton found.")
				return nil
			}
			joints := s.BindPose()
			if jsonOut {
				return printJSON(joints)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BONE\tPARENT\tHEAD")
			for _, j := range joints {
				fmt.Fprintf(tw, "%s\t%d\t%.4f %.4f %.4f\n", j.Name, j.Parent, j.Head[0], j.Head[1], j.Head[2])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			status(fmt.Sprintf("Found %d bones.", len(joints)))
			return nil
		},
	}
}

func texturesCmd() *cli.Command {
	var (
		hashes  []string
		collect string
	)
	return &cli.Command{
		Name:      "textures",
		Usage:     "List the textures of meshes and optionally copy them out",
		ArgsUsage: "<file.xmesh>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "hash", Usage: "mesh hash in hex (repeatable)", Required: true, Destination: &hashes},
			&cli.StringFlag{Name: "collect", Usage: "copy located textures into this folder", Destination: &collect},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1, "<file.xmesh>"); err != nil {
				return err
			}
			xmeshPath := cmd.Args().First()
			list, err := parseHashes(hashes)
			if err != nil {
				return err
			}
			xppsPath := xpps.ResolvePath(xmeshPath)
			data, err := os.ReadFile(xppsPath)
			if err != nil {
				return err
			}
			ct, err := xpps.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", xppsPath, err)
			}
			names := state.nameDB(xmeshPath)
			idx, err := state.textureIndex()
			if err != nil {
				return err
			}

			lookups := make(map[string]xpps.TextureLookup, len(list))
			for _, h := range list {
				look, err := ct.FindTextures(h, names)
				if err != nil {
					return err
				}
				lookups[fmt.Sprintf("%X", h)] = look
			}
			if jsonOut {
				if err := printJSON(lookups); err != nil {
					return err
				}
			} else {
				printLookups(list, lookups, idx)
			}

			if collect != "" {
				col := &texture.Collector{Index: idx, Names: names, Log: state.log}
				n, err := col.CollectForMod(ct, list, collect)
				if err != nil {
					return err
				}
				status(fmt.Sprintf("Copied %d textures to %s", n, collect))
			}
			return nil
		},
	}
}

func printLookups(list []uint64, lookups map[string]xpps.TextureLookup, idx *texture.Index) {
	for _, h := range list {
		look := lookups[fmt.Sprintf("%X", h)]
		if look.Status != "" {
			fmt.Printf("%X: %s\n", h, look.Status)
			continue
		}
		fmt.Printf("%X:\n", h)
		for _, t := range look.Textures {
			where := ""
			if idx != nil {
				if p, _, ok := idx.Locate(t.Name); ok {
					where = "  " + p
				}
			}
			fmt.Printf("  %016X  %s%s\n", t.Hash, t.Name, where)
		}
	}
}
