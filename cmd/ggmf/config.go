package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/logicossoftware/go-ggmf"
)

// Config represents the ggmf configuration file (~/.config/ggmf/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Write defaults
	Compression      string  `yaml:"compression"`
	TableCompression string  `yaml:"table_compression"`
	Alignment        *uint32 `yaml:"alignment"`
	Checksums        *bool   `yaml:"checksums"`
	ExplicitOffsets  *bool   `yaml:"explicit_offsets"`

	Limits LimitsConfig `yaml:"limits"`
}

// LimitsConfig overrides decoder and encoder limits. Zero keeps the default.
type LimitsConfig struct {
	MaxSectionLen    uint64 `yaml:"max_section_len"`
	MaxUncompressed  uint64 `yaml:"max_uncompressed"`
	MaxMetadataKeys  int    `yaml:"max_metadata_keys"`
	MaxEntries       int    `yaml:"max_entries"`
	MaxEntryDataSize uint64 `yaml:"max_entry_data_size"`
}

func (l LimitsConfig) limits() ggmf.Limits {
	return ggmf.Limits{
		MaxSectionLen:    l.MaxSectionLen,
		MaxUncompressed:  l.MaxUncompressed,
		MaxMetadataKeys:  l.MaxMetadataKeys,
		MaxEntries:       l.MaxEntries,
		MaxEntryDataSize: l.MaxEntryDataSize,
	}
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ggmf", "config.yaml")
}

// loadConfig reads path, or the default location when path is empty. A
// missing default file yields a zero Config; a missing explicit file is an
// error.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	if level == "" {
		level = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// state is shared by every subcommand once the root Before hook has run.
type state struct {
	cfg Config
	log *slog.Logger
}

func (s *state) readOptions() []ggmf.ReadOption {
	return []ggmf.ReadOption{
		ggmf.WithReadLimits(s.cfg.Limits.limits()),
		ggmf.WithReadLogger(s.log),
	}
}

// writeFlags holds the encoder flags shared by pack and rewrite.
type writeFlags struct {
	compression      string
	tableCompression string
	alignment        int64
	checksums        bool
	implicitOffsets  bool
}

func (f *writeFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "compression", Usage: "META section codec (none, zip, zstd, lz4, br, s2)", Value: "none", Destination: &f.compression},
		&cli.StringFlag{Name: "table-compression", Usage: "TENS section codec; defaults to --compression", Destination: &f.tableCompression},
		&cli.Int64Flag{Name: "alignment", Usage: "payload alignment in bytes (power of two)", Destination: &f.alignment},
		&cli.BoolFlag{Name: "checksums", Usage: "append xxh3 payload checksums", Destination: &f.checksums},
		&cli.BoolFlag{Name: "implicit-offsets", Usage: "omit offsets from the tensor table", Destination: &f.implicitOffsets},
	}
}

// options merges flags over config defaults. Settings that neither names are
// left out so earlier options (or the document itself) keep them.
func (f *writeFlags) options(cmd *cli.Command, s *state) ([]ggmf.WriteOption, error) {
	cfg := s.cfg
	opts := []ggmf.WriteOption{
		ggmf.WithWriteLimits(cfg.Limits.limits()),
		ggmf.WithWriteLogger(s.log),
	}

	metaName := f.compression
	if cfg.Compression != "" && !cmd.IsSet("compression") {
		metaName = cfg.Compression
	}
	meta, ok := ggmf.ParseCompression(metaName)
	if !ok {
		return nil, fmt.Errorf("unknown compression %q", metaName)
	}
	tableName := f.tableCompression
	if cfg.TableCompression != "" && !cmd.IsSet("table-compression") {
		tableName = cfg.TableCompression
	}
	table := meta
	if tableName != "" {
		if table, ok = ggmf.ParseCompression(tableName); !ok {
			return nil, fmt.Errorf("unknown compression %q", tableName)
		}
	}
	opts = append(opts, ggmf.WithMetadataCompression(meta), ggmf.WithTableCompression(table))

	switch {
	case cmd.IsSet("alignment"):
		if f.alignment <= 0 || f.alignment > 1<<31 {
			return nil, fmt.Errorf("alignment %d out of range", f.alignment)
		}
		opts = append(opts, ggmf.WithAlignment(uint32(f.alignment)))
	case cfg.Alignment != nil:
		opts = append(opts, ggmf.WithAlignment(*cfg.Alignment))
	}
	switch {
	case cmd.IsSet("checksums"):
		opts = append(opts, ggmf.WithChecksums(f.checksums))
	case cfg.Checksums != nil:
		opts = append(opts, ggmf.WithChecksums(*cfg.Checksums))
	}
	switch {
	case cmd.IsSet("implicit-offsets"):
		opts = append(opts, ggmf.WithExplicitOffsets(!f.implicitOffsets))
	case cfg.ExplicitOffsets != nil:
		opts = append(opts, ggmf.WithExplicitOffsets(*cfg.ExplicitOffsets))
	}
	return opts, nil
}
