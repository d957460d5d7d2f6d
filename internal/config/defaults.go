package config

import "time"

// Default values for the "layer 0" of the four-layer override chain, chosen
// to match the values the original syncprojects client hardcoded
// (MAX_WORKERS = 25, PROJECT_GLOB = "*.cpr").
const (
	defaultProjectRootGlob     = "*.cpr"
	defaultWorkerPoolWidth     = 25
	defaultStaleUploadInterval = 10 * time.Second
	defaultDebounceInterval    = 1 * time.Second
	defaultMetadataBaseURL     = "https://api.syncprojects.example.com/v1/"
	defaultLocalPort           = 5000
	defaultLogLevel            = "warn"
)
