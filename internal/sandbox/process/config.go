package process

import "time"

// Config holds the tunables for the process sandbox.
type Config struct {
	// MaxOutputBytes bounds the captured stdout and stderr (each stream
	// separately). Output beyond the bound is discarded and the result is
	// marked truncated.
	MaxOutputBytes int
	// CompileTimeout bounds the optional compile phase. The request timeout
	// only covers the run phase, where untrusted code actually executes.
	CompileTimeout time.Duration
	// CPUSeconds is the RLIMIT_CPU ceiling applied to spawned processes.
	// Zero disables the limit.
	CPUSeconds uint64
	// MemoryBytes is the RLIMIT_AS ceiling applied to spawned processes.
	// Zero disables the limit.
	MemoryBytes uint64
}

// DefaultConfig provides sensible defaults for an untrusted-code sandbox.
func DefaultConfig() Config {
	return Config{
		MaxOutputBytes: 1 << 20, // 1 MiB per stream
		CompileTimeout: 30 * time.Second,
		CPUSeconds:     30,
		MemoryBytes:    512 * 1024 * 1024,
	}
}
