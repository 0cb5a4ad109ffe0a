package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:   "xmeshtool",
		Usage:  "Inspect, patch and merge .xmesh/.xpps mesh containers",
		Flags:  globalFlags(),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			scanCmd(),
			dumpCmd(),
			skeletonCmd(),
			texturesCmd(),
			injectCmd(),
			automatchCmd(),
			diffCmd(),
			mergeCmd(),
			previewCmd(),
			restoreCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
