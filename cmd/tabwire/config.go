package main

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/Neumenon/tabwire/tabwire"
)

// Config holds the settings that can be provided through the TOML file
// given with --config. Command line flags take precedence.
type Config struct {
	MaxDepth  int
	Canonical bool
	ChunkSize int
	CRC       bool
	Compress  bool
	Workers   int
}

func defaultConfig() *Config {
	return &Config{
		MaxDepth:  tabwire.DefaultMaxDepth,
		ChunkSize: 4096,
		Workers:   4,
	}
}

// loadConfig reads a TOML config file on top of the defaults. An empty path
// returns the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer func() {
		if errClose := f.Close(); errClose != nil {
			log.Warn("cannot close config file", "path", path, "error", errClose.Error())
		}
	}()

	if err = toml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if cfg.MaxDepth <= 0 {
		return nil, errors.Errorf("config %s: MaxDepth must be positive, got %d", path, cfg.MaxDepth)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	log.Debug("loaded config", "path", path)
	return cfg, nil
}

// applyFlags overrides config values with the flags explicitly set on the
// command line.
func applyFlags(ctx *cli.Context, cfg *Config) {
	if ctx.GlobalIsSet(maxDepth.Name) {
		cfg.MaxDepth = ctx.GlobalInt(maxDepth.Name)
	}
	if ctx.IsSet(canonical.Name) {
		cfg.Canonical = ctx.Bool(canonical.Name)
	}
	if ctx.IsSet(chunkSize.Name) {
		cfg.ChunkSize = ctx.Int(chunkSize.Name)
	}
	if ctx.IsSet(withCRC.Name) {
		cfg.CRC = ctx.Bool(withCRC.Name)
	}
	if ctx.IsSet(compress.Name) {
		cfg.Compress = ctx.Bool(compress.Name)
	}
	if ctx.IsSet(workers.Name) {
		cfg.Workers = ctx.Int(workers.Name)
	}
}

func (cfg *Config) codec() *tabwire.Codec {
	return tabwire.New(
		tabwire.WithMaxDepth(cfg.MaxDepth),
		tabwire.WithCanonical(cfg.Canonical),
	)
}
