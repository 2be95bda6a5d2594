// Package config loads evalgrep settings from .evalgrep.yaml, EVALGREP_*
// environment variables and built-in defaults.
package config

// Search defaults.
const (
	DefaultWorkers      = 0
	DefaultEpochs       = "all"
	DefaultExtension    = ".eval"
	DefaultMaxEntrySize = "256MB"
)

// Output defaults.
const (
	DefaultColor    = "auto"
	DefaultProgress = true
	DefaultSummary  = false
)

// Logging defaults.
const (
	DefaultLogLevel = "warn"
	DefaultLogJSON  = false
)

// Telemetry defaults.
const (
	DefaultOTLPInsecure = false
	DefaultSampleRatio  = 0.0
)
