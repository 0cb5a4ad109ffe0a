package main

import "github.com/urfave/cli/v3"

var (
	configPath  string
	textureRoot string
	nameDBPath  string
	backupDir   string
	backupCodec string
	noBackup    bool
	matchLOD    int
	logLevel    string
	logFormat   string
	jsonOut     bool
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "config file (.yaml or .json); defaults to the per-user config",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "texture-root",
			Usage:       "folder holding the *gapack* texture packs",
			Destination: &textureRoot,
		},
		&cli.StringFlag{
			Name:        "name-db",
			Usage:       "texture name database (default: game.sprig.texmeshman beside the .xmesh)",
			Destination: &nameDBPath,
		},
		&cli.StringFlag{
			Name:        "backup-dir",
			Usage:       "snapshot directory (default: .xmeshtool-backups beside the target)",
			Destination: &backupDir,
		},
		&cli.StringFlag{
			Name:        "backup-codec",
			Usage:       "snapshot compression (zstd, lz4)",
			Destination: &backupCodec,
		},
		&cli.BoolFlag{
			Name:        "no-backup",
			Usage:       "do not snapshot files before writing them",
			Destination: &noBackup,
		},
		&cli.IntFlag{
			Name:        "match-lod",
			Usage:       "LOD whose slots auto-match considers (default 1536)",
			Destination: &matchLOD,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print results as JSON",
			Destination: &jsonOut,
		},
	}
}
