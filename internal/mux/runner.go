package mux

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// stderrTail bounds the diagnostic output kept from a failed run.
const stderrTail = 4 << 10

// Result is the outcome of one external process run.
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int // -1 when the process did not exit on its own
}

// Runner executes the multiplexer. dir is the working directory.
type Runner interface {
	Run(ctx context.Context, name string, args []string, dir string) (Result, error)
}

// ExecRunner runs processes with os/exec. Cancelling ctx kills the process;
// WaitDelay bounds how long Run waits for its output pipes afterwards.
type ExecRunner struct {
	WaitDelay time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args []string, dir string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Dir = dir
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	var stdout bytes.Buffer
	stderr := &tailWriter{limit: stderrTail}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: string(bytes.TrimSpace(stderr.buf)), ExitCode: 0}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.Exited() {
			res.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
	}
	return res, err
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	buf   []byte
	limit int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
	}
	return len(p), nil
}
