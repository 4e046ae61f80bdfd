package docker

import (
	"time"
)

// Config holds the configuration for the docker sandbox backend.
type Config struct {
	// Image is the container image snippets run in. It must carry the
	// toolchains for every language profile the deployment registers.
	Image string
	// MemoryLimit is the maximum amount of memory a container can use (bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
	// MaxOutputBytes bounds captured stdout and stderr per stream.
	MaxOutputBytes int
	// CompileTimeout bounds the optional compile phase.
	CompileTimeout time.Duration
}

// DefaultConfig provides defaults for a small sandbox host. The default image
// only covers python; multi-language deployments point Image at one that
// bundles their toolchains.
func DefaultConfig() Config {
	return Config{
		Image:          "python:3.12-alpine",
		MemoryLimit:    256 * 1024 * 1024,
		CPULimit:       0.5,
		PoolSize:       3,
		MaxOutputBytes: 1 << 20,
		CompileTimeout: 30 * time.Second,
	}
}
