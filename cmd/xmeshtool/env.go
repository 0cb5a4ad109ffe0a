package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"xmesh-tool/internal/backup"
	"xmesh-tool/internal/config"
	"xmesh-tool/internal/logger"
	"xmesh-tool/internal/texture"
	"xmesh-tool/internal/xpps"
)

// env is the resolved configuration shared by every command.
type env struct {
	cfg   config.Config
	log   logger.Logger
	names texture.NameCache
}

var state = &env{log: logger.Default()}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return ctx, err
	}
	cfg.Resolve(config.Flags{
		TextureRoot: textureRoot,
		NameDB:      nameDBPath,
		BackupDir:   backupDir,
		BackupCodec: backupCodec,
		NoBackup:    noBackup,
		MatchLOD:    matchLOD,
		LogLevel:    logLevel,
		LogFormat:   logFormat,
	})

	state.cfg = cfg
	state.log = logger.ForFormat(os.Stderr, cfg.LogFormat, logger.ParseLevel(cfg.LogLevel))
	return logger.WithContext(ctx, state.log), nil
}

// backups returns the snapshot store for files next to target, or nil when
// backups are off.
func (e *env) backups(target string) (*backup.Store, error) {
	dir := e.cfg.BackupDirFor(target)
	if dir == "" {
		return nil, nil
	}
	codec, err := backup.ParseCodec(e.cfg.BackupCodec)
	if err != nil {
		return nil, err
	}
	s := backup.NewStore(dir, codec, e.log)
	s.MaxBackups = e.cfg.MaxBackups
	return s, nil
}

// nameDB loads the texture name database for a geometry file. A missing or
// unreadable database is logged and yields nil, which names every texture
// Unknown_<HASH>.
func (e *env) nameDB(xmeshPath string) *texture.NameDB {
	path := e.cfg.NameDBPath(xmeshPath)
	db, err := e.names.Load(path)
	if err != nil {
		e.log.Warn("texture names unavailable", "path", path, "error", err)
		return nil
	}
	return db
}

// textureIndex indexes the configured texture root, nil when none is set.
func (e *env) textureIndex() (*texture.Index, error) {
	if e.cfg.TextureRoot == "" {
		return nil, nil
	}
	return texture.BuildIndex(e.cfg.TextureRoot)
}

// metadataPath accepts either container of a pair and returns the .xpps.
func metadataPath(p string) string {
	if strings.EqualFold(filepath.Ext(p), ".xmesh") {
		return xpps.ResolvePath(p)
	}
	return p
}

func parseHash(s string) (uint64, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(strings.TrimPrefix(t, "0x"), "0X")
	h, err := strconv.ParseUint(t, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hash %q: want hex", s)
	}
	return h, nil
}

func parseHashes(list []string) ([]uint64, error) {
	out := make([]uint64, 0, len(list))
	for _, s := range list {
		h, err := parseHash(s)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// parsePairs splits HASH=value arguments.
func parsePairs(list []string) (map[uint64]string, error) {
	out := make(map[uint64]string, len(list))
	for _, s := range list {
		k, v, ok := strings.Cut(s, "=")
		if !ok || v == "" {
			return nil, fmt.Errorf("invalid pair %q: want HASH=VALUE", s)
		}
		h, err := parseHash(k)
		if err != nil {
			return nil, err
		}
		out[h] = v
	}
	return out, nil
}

func requireArgs(cmd *cli.Command, n int, usage string) error {
	if cmd.Args().Len() < n {
		return fmt.Errorf("usage: %s %s", cmd.Name, usage)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

func writeJSON(path string, v any) error {
	if path == "" || path == "-" {
		return printJSON(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func status(s string) { fmt.Println(s) }
