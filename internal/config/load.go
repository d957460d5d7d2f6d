package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values bound directly to command-line flags. Only
// fields the user explicitly set should be populated — zero values are
// treated as "not set" by Resolve.
type CLIOverrides struct {
	ConfigPath string
	SourceDir  string
}

// Resolved is the fully merged configuration a command actually runs
// against: defaults, overridden by the config file, overridden by
// environment variables, overridden by CLI flags.
type Resolved struct {
	Config
}

// Load reads and parses the TOML config file at path. A missing file is not
// an error — it simply yields the default config, since the daemon must be
// able to start cold on first run (the first-run wizard, excluded from this
// spec, is expected to populate it later).
func Load(path string, logger *slog.Logger) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("no config file found, using defaults", "path", path)
			return cfg, nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	logger.Debug("config file parsed successfully", "path", path)

	return cfg, nil
}

// Resolve applies the env and CLI override layers on top of a loaded Config
// and validates the result.
func Resolve(cfg *Config, env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	resolved := &Resolved{Config: *cfg}

	if env.SourceDir != "" {
		resolved.Sync.SourceDir = env.SourceDir
	}

	if cli.SourceDir != "" {
		resolved.Sync.SourceDir = cli.SourceDir
	}

	if err := Validate(resolved); err != nil {
		return nil, err
	}

	return resolved, nil
}

// ResolveConfigPath determines the effective config file path from the
// override chain: CLI flag, then environment variable, then the
// platform default.
func ResolveConfigPath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// Validate checks the resolved configuration for missing or nonsensical
// settings. A missing SourceDir is a Config-class fatal error per spec.md §7.
func Validate(r *Resolved) error {
	if r.Sync.SourceDir == "" {
		return errors.New("config: source_dir is not set (pass --source or configure sync.source_dir)")
	}

	if r.Sync.WorkerPoolWidth <= 0 {
		return errors.New("config: sync.worker_pool_width must be positive")
	}

	if r.Network.MetadataBaseURL == "" {
		return errors.New("config: network.metadata_base_url is not set")
	}

	return nil
}
