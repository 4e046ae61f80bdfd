// Package dispatch contains the execution dispatcher: the business layer
// between the HTTP handlers and the sandbox backends. It resolves the
// language profile, applies request validation and timeout clamping, pushes
// the request through the concurrency limiter, and records the outcome in the
// execution history.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/execbox/internal/apperror"
	"github.com/sakif/execbox/internal/language"
	"github.com/sakif/execbox/internal/model"
	"github.com/sakif/execbox/internal/repository"
	"github.com/sakif/execbox/internal/sandbox"
)

// Validation constants.
const (
	MaxSourceLength = 100000 // ~100KB of code
	MaxStdinLength  = 1 << 20
)

// Config holds the dispatcher tunables, supplied once at startup.
type Config struct {
	MaxConcurrent  int
	QueueSize      int
	QueueWait      time.Duration
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
}

// DefaultConfig returns conservative defaults sized for a small host.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  4,
		QueueSize:      16,
		QueueWait:      10 * time.Second,
		DefaultTimeout: 5 * time.Second,
		MaxTimeout:     30 * time.Second,
	}
}

// Request is the caller-facing execution request, language still unresolved.
// Immutable once created.
type Request struct {
	Language  string `json:"language"`
	Source    string `json:"source"`
	Stdin     string `json:"stdin,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

// Dispatcher validates and admits execution requests. It is stateless apart
// from the limiter's slot counter and safe for concurrent callers.
type Dispatcher struct {
	registry *language.Registry
	exec     sandbox.Executor
	limiter  *Limiter
	history  repository.ExecutionRepository // nil disables recording
	logger   *slog.Logger
	config   Config
}

// New wires a Dispatcher. history may be nil when the execution store is
// disabled.
func New(cfg Config, registry *language.Registry, exec sandbox.Executor, history repository.ExecutionRepository, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		exec:     exec,
		limiter:  NewLimiter(cfg.MaxConcurrent, cfg.QueueSize, cfg.QueueWait),
		history:  history,
		logger:   logger,
		config:   cfg,
	}
}

// Submit runs one request end to end: resolve profile, validate, acquire a
// slot, execute, record. Admission failures come back as apperror values;
// outcomes of the executed code come back inside the Result.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (*sandbox.Result, error) {
	profile, ok := d.registry.Get(req.Language)
	if !ok {
		// Fails fast: no temp file, no subprocess.
		return nil, apperror.UnsupportedLanguage(req.Language)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	timeout := d.clampTimeout(req.TimeoutMs)

	if err := d.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	// Unconditional release covers success, sandbox crash and timeout alike.
	defer d.limiter.Release()

	res, err := d.exec.Execute(ctx, sandbox.Request{
		Profile: profile,
		Source:  req.Source,
		Stdin:   req.Stdin,
		Timeout: timeout,
	})
	if err != nil {
		d.logger.Error("sandbox execution failed",
			slog.String("language", profile.Name),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal(err)
	}

	d.record(ctx, profile.Name, res)

	d.logger.Info("execution finished",
		slog.String("language", profile.Name),
		slog.String("kind", string(res.Kind)),
		slog.Int("exitCode", res.ExitCode),
		slog.Int64("durationMs", res.DurationMs),
	)
	return res, nil
}

// Languages exposes the registered profiles for the discovery endpoint.
func (d *Dispatcher) Languages() []language.Profile {
	return d.registry.Profiles()
}

func validateRequest(req Request) error {
	if req.Source == "" {
		return apperror.ValidationFailed("source", "source is required")
	}
	if len(req.Source) > MaxSourceLength {
		return apperror.ValidationFailed("source", "source exceeds the maximum length")
	}
	if len(req.Stdin) > MaxStdinLength {
		return apperror.ValidationFailed("stdin", "stdin exceeds the maximum length")
	}
	if req.TimeoutMs < 0 {
		return apperror.ValidationFailed("timeoutMs", "timeoutMs must not be negative")
	}
	return nil
}

func (d *Dispatcher) clampTimeout(timeoutMs int) time.Duration {
	if timeoutMs <= 0 {
		return d.config.DefaultTimeout
	}
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout > d.config.MaxTimeout {
		return d.config.MaxTimeout
	}
	return timeout
}

// record writes the outcome to the history store. Recording is best-effort:
// a storage failure is logged and the result still reaches the caller.
func (d *Dispatcher) record(ctx context.Context, lang string, res *sandbox.Result) {
	if d.history == nil {
		return
	}
	execution := &model.Execution{
		Language:   lang,
		Kind:       string(res.Kind),
		ExitCode:   res.ExitCode,
		DurationMs: res.DurationMs,
		Truncated:  res.Truncated,
	}
	if err := d.history.Create(context.WithoutCancel(ctx), execution); err != nil {
		d.logger.Warn("failed to record execution",
			slog.String("language", lang),
			slog.String("error", err.Error()),
		)
	}
}
