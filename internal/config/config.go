// Package config resolves the daemon's effective configuration from a
// four-layer override chain: built-in defaults, the TOML config file,
// environment variables, and command-line flags — each layer overriding
// the last, following the same shape as the teacher CLI's config resolver.
package config

import "time"

// Config is the on-disk (and in-memory default) representation of the
// daemon's settings, decoded from TOML.
type Config struct {
	Sync    SyncConfig    `toml:"sync"`
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
}

// SyncConfig controls the core reconciliation and watcher behavior.
type SyncConfig struct {
	// SourceDir is the root directory holding the user's local projects,
	// one subdirectory per song (or per project, under NestedFolders).
	SourceDir string `toml:"source_dir"`
	// AudioSyncDir is the directory tree watched for ad-hoc audio renders.
	AudioSyncDir string `toml:"audio_sync_dir"`
	// AmpPresetDir is the local root under which per-amp preset directories
	// live (Neural DSP style); synced to/from the project-bucket "Amp
	// Settings" subtree alongside each project's songs.
	AmpPresetDir string `toml:"amp_preset_dir"`
	// NestedFolders switches on-disk layout between "<project>/<song>" and
	// flat "<song>" directories. See spec.md §9 Open Questions.
	NestedFolders bool `toml:"nested_folders"`
	// ProjectRootGlob selects which top-level session files participate in
	// hash_project_root's cheap "did the session change" signal.
	ProjectRootGlob string `toml:"project_root_glob"`
	// WorkerPoolWidth bounds parallel object-store transfers per song.
	WorkerPoolWidth int `toml:"worker_pool_width"`
	// StaleUploadInterval is the minimum time between two audio-watcher
	// uploads of the same path.
	StaleUploadInterval time.Duration `toml:"-"`
	// DebounceInterval is how long a watched file's size must be stable
	// before the watcher treats it as closed and eligible for upload.
	DebounceInterval time.Duration `toml:"-"`
}

// NetworkConfig controls HTTP endpoints for the metadata service and the
// local companion-UI-facing HTTP server.
type NetworkConfig struct {
	MetadataBaseURL  string `toml:"metadata_base_url"`
	CompanionOrigin  string `toml:"companion_origin"`
	JWTPublicKeyPath string `toml:"jwt_public_key_path"`
	LocalPort        int    `toml:"local_port"`
	// AudioBucketName is the second bucket the audio watcher uploads ad-hoc
	// renders to (spec.md §6: "audio bucket"). The project bucket's name
	// comes from the metadata service's credential vending response
	// instead, since it is server-authoritative; the audio bucket has no
	// equivalent per-call authority and is configured locally.
	AudioBucketName string `toml:"audio_bucket_name"`
}

// LoggingConfig controls slog verbosity and the telemetry sink used by the
// "logs" dispatcher handler.
type LoggingConfig struct {
	Level         string `toml:"level"`
	TelemetryPath string `toml:"telemetry_path"`
}

// DefaultConfig returns a Config populated with layer-0 defaults. Used both
// as the TOML decode target (so unset fields keep their defaults) and as the
// fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			ProjectRootGlob:     defaultProjectRootGlob,
			WorkerPoolWidth:     defaultWorkerPoolWidth,
			StaleUploadInterval: defaultStaleUploadInterval,
			DebounceInterval:    defaultDebounceInterval,
		},
		Network: NetworkConfig{
			MetadataBaseURL: defaultMetadataBaseURL,
			LocalPort:       defaultLocalPort,
		},
		Logging: LoggingConfig{
			Level: defaultLogLevel,
		},
	}
}
