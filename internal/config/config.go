// Package config loads tool settings from a YAML or JSON file, applies
// command-line overrides and fills in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"xmesh-tool/internal/backup"
	"xmesh-tool/internal/texture"
	"xmesh-tool/internal/xmesh"
)

// Config holds paths and tool settings. Relative paths in a file are taken
// relative to that file's directory.
type Config struct {
	// Paths
	TextureRoot string `yaml:"texture_root" json:"texture_root"`
	NameDB      string `yaml:"name_db" json:"name_db"`
	BackupDir   string `yaml:"backup_dir" json:"backup_dir"`
	OutputDir   string `yaml:"output_dir" json:"output_dir"`

	// Backups
	BackupCodec string `yaml:"backup_codec" json:"backup_codec"`
	MaxBackups  int    `yaml:"max_backups" json:"max_backups"`
	NoBackup    bool   `yaml:"no_backup" json:"no_backup"`

	// Auto-match
	MatchLOD int `yaml:"match_lod" json:"match_lod"`

	// Preview settings
	PreviewSize int `yaml:"preview_size" json:"preview_size"`
	Supersample int `yaml:"supersample" json:"supersample"`
	Workers     int `yaml:"workers" json:"workers"`

	// Logging
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	dir string
}

// DefaultPath is the per-user config file, or "" when the platform has no
// config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "xmeshtool", "config.yaml")
}

// Load reads a config file. Files ending in .json are decoded as JSON,
// everything else as YAML. Fields not set in the file keep their zero
// values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// LoadDefault reads DefaultPath. A missing file yields a zero Config.
func LoadDefault() (Config, error) {
	path := DefaultPath()
	if path == "" {
		return Config{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		return Config{}, nil
	}
	return Load(path)
}

// Flags holds command-line values that override config file settings.
// Zero values leave the file's setting alone.
type Flags struct {
	TextureRoot string
	NameDB      string
	BackupDir   string
	OutputDir   string
	BackupCodec string
	NoBackup    bool
	MatchLOD    int
	PreviewSize int
	Supersample int
	Workers     int
	LogLevel    string
	LogFormat   string
}

// Resolve applies flags over the file values and fills in defaults.
func (c *Config) Resolve(flags Flags) {
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	// flag paths are already relative to the working directory
	if flags.TextureRoot != "" {
		c.TextureRoot = flags.TextureRoot
	} else {
		c.TextureRoot = c.rel(c.TextureRoot)
	}
	if flags.NameDB != "" {
		c.NameDB = flags.NameDB
	} else {
		c.NameDB = c.rel(c.NameDB)
	}
	if flags.BackupDir != "" {
		c.BackupDir = flags.BackupDir
	} else {
		c.BackupDir = c.rel(c.BackupDir)
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	} else {
		c.OutputDir = c.rel(c.OutputDir)
	}
	override(&c.BackupCodec, flags.BackupCodec)
	override(&c.LogLevel, flags.LogLevel)
	override(&c.LogFormat, flags.LogFormat)
	if flags.NoBackup {
		c.NoBackup = true
	}
	if flags.MatchLOD > 0 {
		c.MatchLOD = flags.MatchLOD
	}
	if flags.PreviewSize > 0 {
		c.PreviewSize = flags.PreviewSize
	}
	if flags.Supersample > 0 {
		c.Supersample = flags.Supersample
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}

	if c.BackupCodec == "" {
		c.BackupCodec = string(backup.CodecZstd)
	}
	if c.MatchLOD <= 0 {
		c.MatchLOD = xmesh.DefaultMatchLOD
	}
	if c.PreviewSize <= 0 {
		c.PreviewSize = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *Config) rel(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// NameDBPath returns the configured name database, or the conventional
// file beside the geometry container.
func (c *Config) NameDBPath(xmeshPath string) string {
	if c.NameDB != "" {
		return c.NameDB
	}
	return filepath.Join(filepath.Dir(xmeshPath), texture.DefaultNameDB)
}

// BackupDirFor returns the snapshot directory for files next to target,
// "" when backups are off.
func (c *Config) BackupDirFor(target string) string {
	switch {
	case c.NoBackup:
		return ""
	case c.BackupDir != "":
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(target), ".xmeshtool-backups")
}
