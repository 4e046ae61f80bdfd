// Package sandbox defines the execution contract shared by all sandbox
// backends: a resolved request in, a structured result out.
package sandbox

import (
	"context"
	"time"

	"github.com/sakif/execbox/internal/language"
)

// Request is one snippet to execute. The language has already been resolved
// to a profile by the dispatcher; backends never see raw language names.
// A Request is immutable once created.
type Request struct {
	Profile language.Profile
	Source  string
	Stdin   string
	Timeout time.Duration
}

// Kind classifies how an execution ended. It is part of the wire format.
type Kind string

const (
	// KindOK: the run phase finished with exit code 0.
	KindOK Kind = "ok"
	// KindRuntimeError: the run phase finished with a non-zero exit code.
	KindRuntimeError Kind = "runtime_error"
	// KindCompileError: the compile phase failed; the run phase never started.
	// Stderr carries the compiler output.
	KindCompileError Kind = "compile_error"
	// KindTimeout: the wall-clock limit was exceeded and the process tree was
	// killed. ExitCode is -1.
	KindTimeout Kind = "timeout"
)

// Result is the outcome of one execution. Produced once, never mutated.
// Truncated reports that stdout or stderr hit the capture limit; whatever was
// captured before the limit is preserved.
type Result struct {
	Kind       Kind   `json:"kind"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
	Truncated  bool   `json:"truncated"`
}

// Executor runs one snippet in isolation. Implementations must be safe for
// concurrent use; admission control happens upstream in the dispatcher.
//
// An error return means the sandbox itself failed (host problem). Failures of
// the executed code (compile errors, timeouts, non-zero exits) come back as a
// Result with the matching Kind and a nil error.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}
