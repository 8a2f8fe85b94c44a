package watch

import (
	"bufio"
	"context"
	"strings"

	"github.com/grovetools/deskd/command"
	"github.com/grovetools/deskd/errors"
)

// LineAdapter runs a long-lived process and wakes on each stdout line
// accepted by its filter. The process exiting ends the stream.
type LineAdapter struct {
	name     string
	executor command.Executor
	argv     []string
	accept   func(line string) bool
}

// NewLineAdapter returns an adapter running argv. A nil accept wakes on
// every line.
func NewLineAdapter(name string, executor command.Executor, accept func(string) bool, argv ...string) *LineAdapter {
	return &LineAdapter{name: name, executor: executor, argv: argv, accept: accept}
}

func (a *LineAdapter) Name() string { return a.name }

// Run reports ready once the process has started; the process is expected
// to subscribe before printing anything.
func (a *LineAdapter) Run(ctx context.Context, wake chan<- Wakeup, ready func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := a.executor.CommandContext(ctx, a.argv[0], a.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.TransportFailed(a.name, "start", err)
	}
	if err := cmd.Start(); err != nil {
		return errors.CommandFailed(strings.Join(a.argv, " "), err)
	}
	ready()

	// The scanner blocks on the pipe, so it runs on its own goroutine and
	// reports back through lines.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			cancel()
			_ = cmd.Wait()
			return nil
		case line, ok := <-lines:
			if !ok {
				waitErr := cmd.Wait()
				if ctx.Err() != nil {
					return nil
				}
				if waitErr == nil {
					waitErr = errors.New(errors.ErrCodeTransportFailed, "process exited")
				}
				return errors.TransportFailed(a.name, "read", waitErr)
			}
			if a.accept != nil && !a.accept(line) {
				continue
			}
			if !send(ctx, wake, Wakeup{Source: a.name, Detail: line}) {
				_ = cmd.Wait()
				return nil
			}
		}
	}
}
