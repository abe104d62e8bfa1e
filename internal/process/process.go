// Package process supervises external commands: it spawns a child with
// merged stdout/stderr, relays output line by line, and enforces
// cooperative cancellation through an escalating terminate→kill ladder.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const (
	// DefaultKillTimeout is how long a child gets to exit after a
	// graceful termination request before it is force-killed.
	DefaultKillTimeout = 5 * time.Second

	// maxLineSize bounds a single relayed output line (1 MB).
	maxLineSize = 1 << 20
)

// LineFunc receives one decoded output line, without its trailing
// newline. Output is informational only and is never parsed for control
// decisions.
type LineFunc func(line string)

// Supervisor runs child processes to completion under a cancellation
// signal.
type Supervisor struct {
	killTimeout time.Duration
}

// NewSupervisor creates a supervisor with the default kill timeout.
func NewSupervisor() *Supervisor {
	return &Supervisor{killTimeout: DefaultKillTimeout}
}

// Run spawns args[0] with the remaining arguments, relaying the child's
// combined stdout/stderr to onLine (which may be nil), and returns the
// child's exit code.
//
// stdout and stderr share one pipe, so end-of-stream is a single
// unambiguous EOF that occurs when the child exits and the pipe drains;
// liveness is never inferred from empty reads.
//
// When ctx is cancelled the child is asked to terminate, force-killed
// after a bounded timeout if it ignores the request, and reaped
// unconditionally; the cancellation cause is then returned instead of
// the exit code, taking precedence over any concurrently produced
// error. Worst-case cancellation latency is one kill-timeout interval.
func (s *Supervisor) Run(ctx context.Context, args []string, onLine LineFunc) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("no command given")
	}

	cmd := exec.Command(args[0], args[1:]...)

	pr, pw, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return 0, fmt.Errorf("start process: %w", err)
	}

	// The child holds its own copy of the write end; dropping the
	// parent's copy makes the read side reach EOF when the child exits.
	pw.Close()

	// exited is closed once the child has been reaped, turning the
	// termination ladder into a no-op for processes that are already
	// gone.
	exited := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		s.terminate(cmd.Process, exited)
	})
	defer stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for line := range lines {
		if onLine != nil {
			onLine(line)
		}
	}
	pr.Close()

	waitErr := cmd.Wait()
	close(exited)

	if ctx.Err() != nil {
		return 0, context.Cause(ctx)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("wait for process: %w", waitErr)
	}

	return 0, nil
}

// terminate requests a graceful stop, waits up to the kill timeout for
// the child to be reaped, then force-kills it. Signal errors are
// ignored: the process may already be gone, and on Windows the
// graceful request is unsupported and the ladder falls through to the
// kill.
func (s *Supervisor) terminate(proc *os.Process, exited <-chan struct{}) {
	if proc == nil {
		return
	}

	select {
	case <-exited:
		return
	default:
	}

	_ = proc.Signal(syscall.SIGTERM)

	select {
	case <-exited:
		return
	case <-time.After(s.killTimeout):
	}

	_ = proc.Kill()
}
