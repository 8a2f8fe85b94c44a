package command

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/grovetools/deskd/errors"
)

const (
	// DefaultTimeout bounds every one-shot helper invocation.
	DefaultTimeout = 10 * time.Second

	// MaxTimeout is the largest timeout a caller may request.
	MaxTimeout = 2 * time.Minute
)

// Runner runs one-shot helper programs and captures their output.
type Runner struct {
	executor Executor
	timeout  time.Duration
}

// NewRunner returns a Runner backed by RealExecutor.
func NewRunner() *Runner {
	return NewRunnerWithExecutor(&RealExecutor{})
}

// NewRunnerWithExecutor returns a Runner using exec to create commands.
func NewRunnerWithExecutor(exec Executor) *Runner {
	return &Runner{executor: exec, timeout: DefaultTimeout}
}

// WithTimeout sets the per-invocation timeout, capped at MaxTimeout.
func (r *Runner) WithTimeout(timeout time.Duration) *Runner {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if timeout > 0 {
		r.timeout = timeout
	}
	return r
}

// Executor returns the underlying executor, for long-running processes
// that manage their own lifecycle.
func (r *Runner) Executor() Executor {
	return r.executor
}

// Output runs name with args and returns stdout.
func (r *Runner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.run(ctx, nil, name, args...)
}

// OutputWithInput runs name with stdin fed from input.
func (r *Runner) OutputWithInput(ctx context.Context, input io.Reader, name string, args ...string) ([]byte, error) {
	return r.run(ctx, input, name, args...)
}

// Run runs name and discards its output.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	_, err := r.run(ctx, nil, name, args...)
	return err
}

// Int runs name and parses the first token of its output as an integer.
func (r *Runner) Int(ctx context.Context, name string, args ...string) (int64, error) {
	out, err := r.Output(ctx, name, args...)
	if err != nil {
		return 0, err
	}
	return ParseInt(out)
}

// Ints runs name and parses the first token of each output line.
func (r *Runner) Ints(ctx context.Context, name string, args ...string) ([]int64, error) {
	out, err := r.Output(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	return ParseInts(out)
}

func (r *Runner) run(ctx context.Context, input io.Reader, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := r.executor.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if input != nil {
		cmd.Stdin = input
	}

	if err := cmd.Run(); err != nil {
		cmdLine := strings.TrimSpace(name + " " + strings.Join(args, " "))
		return stdout.Bytes(), errors.CommandFailed(cmdLine, err).
			WithDetail("stderr", strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
