package dispatch_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/execbox/internal/apperror"
	"github.com/sakif/execbox/internal/dispatch"
	"github.com/sakif/execbox/internal/language"
	"github.com/sakif/execbox/internal/model"
	"github.com/sakif/execbox/internal/repository"
	"github.com/sakif/execbox/internal/sandbox"
)

// MockExecutor records requests and returns a canned result, so dispatcher
// tests run without any real sandbox.
type MockExecutor struct {
	mu        sync.Mutex
	Calls     []sandbox.Request
	ReturnRes *sandbox.Result
	ReturnErr error
	Block     chan struct{} // when set, Execute waits until closed
}

func (m *MockExecutor) Execute(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.Block != nil {
		<-m.Block
	}
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnRes, nil
}

func (m *MockExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockRepo captures recorded executions.
type MockRepo struct {
	mu      sync.Mutex
	Created []model.Execution
	Err     error
}

func (m *MockRepo) Create(ctx context.Context, execution *model.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Created = append(m.Created, *execution)
	return nil
}

func (m *MockRepo) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	return nil, apperror.NotFound("execution", id)
}

func (m *MockRepo) List(ctx context.Context, opts repository.ListOptions) ([]model.Execution, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testRegistry(t *testing.T) *language.Registry {
	t.Helper()
	reg, err := language.NewRegistry(language.Defaults())
	require.NoError(t, err)
	return reg
}

func okResult() *sandbox.Result {
	return &sandbox.Result{Kind: sandbox.KindOK, Stdout: "2\n", DurationMs: 12}
}

func TestDispatcherSubmit(t *testing.T) {
	t.Run("unsupported language spawns nothing", func(t *testing.T) {
		mockExec := &MockExecutor{ReturnRes: okResult()}
		d := dispatch.New(dispatch.DefaultConfig(), testRegistry(t), mockExec, nil, testLogger())

		res, err := d.Submit(context.Background(), dispatch.Request{
			Language: "brainfuck",
			Source:   "+++",
		})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, apperror.ErrUnsupportedLanguage)
		assert.Equal(t, 0, mockExec.CallCount(), "no sandbox call for unknown languages")
	})

	t.Run("empty source is rejected", func(t *testing.T) {
		mockExec := &MockExecutor{ReturnRes: okResult()}
		d := dispatch.New(dispatch.DefaultConfig(), testRegistry(t), mockExec, nil, testLogger())

		_, err := d.Submit(context.Background(), dispatch.Request{Language: "python"})
		assert.ErrorIs(t, err, apperror.ErrValidation)
		assert.Equal(t, 0, mockExec.CallCount())
	})

	t.Run("negative timeout is rejected", func(t *testing.T) {
		mockExec := &MockExecutor{ReturnRes: okResult()}
		d := dispatch.New(dispatch.DefaultConfig(), testRegistry(t), mockExec, nil, testLogger())

		_, err := d.Submit(context.Background(), dispatch.Request{
			Language:  "python",
			Source:    "print(1)",
			TimeoutMs: -1,
		})
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("resolves profile and passes it down", func(t *testing.T) {
		mockExec := &MockExecutor{ReturnRes: okResult()}
		d := dispatch.New(dispatch.DefaultConfig(), testRegistry(t), mockExec, nil, testLogger())

		res, err := d.Submit(context.Background(), dispatch.Request{
			Language: "Python", // resolution is case-insensitive
			Source:   "print(1+1)",
			Stdin:    "x",
		})
		require.NoError(t, err)
		assert.Equal(t, sandbox.KindOK, res.Kind)
		require.Equal(t, 1, mockExec.CallCount())
		call := mockExec.Calls[0]
		assert.Equal(t, "python", call.Profile.Name)
		assert.Equal(t, "print(1+1)", call.Source)
		assert.Equal(t, "x", call.Stdin)
	})

	t.Run("sandbox failure maps to internal error", func(t *testing.T) {
		mockExec := &MockExecutor{ReturnErr: errors.New("temp dir: disk full")}
		d := dispatch.New(dispatch.DefaultConfig(), testRegistry(t), mockExec, nil, testLogger())

		_, err := d.Submit(context.Background(), dispatch.Request{
			Language: "python",
			Source:   "print(1)",
		})
		assert.ErrorIs(t, err, apperror.ErrInternal)
	})
}

func TestDispatcherTimeoutClamping(t *testing.T) {
	cfg := dispatch.DefaultConfig()
	cfg.DefaultTimeout = 5 * time.Second
	cfg.MaxTimeout = 30 * time.Second

	tests := []struct {
		name      string
		timeoutMs int
		want      time.Duration
	}{
		{name: "zero falls back to default", timeoutMs: 0, want: 5 * time.Second},
		{name: "explicit value is honoured", timeoutMs: 500, want: 500 * time.Millisecond},
		{name: "excessive value is clamped", timeoutMs: 120000, want: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockExec := &MockExecutor{ReturnRes: okResult()}
			d := dispatch.New(cfg, testRegistry(t), mockExec, nil, testLogger())

			_, err := d.Submit(context.Background(), dispatch.Request{
				Language:  "python",
				Source:    "print(1)",
				TimeoutMs: tt.timeoutMs,
			})
			require.NoError(t, err)
			require.Equal(t, 1, mockExec.CallCount())
			assert.Equal(t, tt.want, mockExec.Calls[0].Timeout)
		})
	}
}

func TestDispatcherRecordsHistory(t *testing.T) {
	t.Run("outcome is recorded", func(t *testing.T) {
		mockExec := &MockExecutor{ReturnRes: &sandbox.Result{
			Kind:       sandbox.KindRuntimeError,
			ExitCode:   3,
			DurationMs: 44,
			Truncated:  true,
		}}
		repo := &MockRepo{}
		d := dispatch.New(dispatch.DefaultConfig(), testRegistry(t), mockExec, repo, testLogger())

		_, err := d.Submit(context.Background(), dispatch.Request{
			Language: "python",
			Source:   "import sys; sys.exit(3)",
		})
		require.NoError(t, err)
		require.Len(t, repo.Created, 1)
		rec := repo.Created[0]
		assert.Equal(t, "python", rec.Language)
		assert.Equal(t, "runtime_error", rec.Kind)
		assert.Equal(t, 3, rec.ExitCode)
		assert.True(t, rec.Truncated)
	})

	t.Run("recording failure does not fail the execution", func(t *testing.T) {
		mockExec := &MockExecutor{ReturnRes: okResult()}
		repo := &MockRepo{Err: errors.New("database is locked")}
		d := dispatch.New(dispatch.DefaultConfig(), testRegistry(t), mockExec, repo, testLogger())

		res, err := d.Submit(context.Background(), dispatch.Request{
			Language: "python",
			Source:   "print(1)",
		})
		require.NoError(t, err)
		assert.Equal(t, sandbox.KindOK, res.Kind)
	})
}

func TestDispatcherOverload(t *testing.T) {
	cfg := dispatch.DefaultConfig()
	cfg.MaxConcurrent = 1
	cfg.QueueSize = 0
	cfg.QueueWait = 100 * time.Millisecond

	block := make(chan struct{})
	mockExec := &MockExecutor{ReturnRes: okResult(), Block: block}
	d := dispatch.New(cfg, testRegistry(t), mockExec, nil, testLogger())

	// Occupy the single slot.
	first := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background(), dispatch.Request{Language: "python", Source: "print(1)"})
		first <- err
	}()

	// Wait until the first submission is inside the sandbox.
	require.Eventually(t, func() bool { return mockExec.CallCount() == 1 },
		time.Second, 10*time.Millisecond)

	_, err := d.Submit(context.Background(), dispatch.Request{Language: "python", Source: "print(2)"})
	assert.ErrorIs(t, err, apperror.ErrOverloaded)

	close(block)
	assert.NoError(t, <-first)

	// Slot was released; a new submission goes straight through.
	mockExec.Block = nil
	_, err = d.Submit(context.Background(), dispatch.Request{Language: "python", Source: "print(3)"})
	assert.NoError(t, err)
}
