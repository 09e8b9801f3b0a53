package mmvdisk

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"pdiskrepair/internal/config"
)

// Result captures one tool invocation.
type Result struct {
	Command  string // full command line as invoked
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner abstracts tool invocation so parsing and orchestration can be
// tested without a live cluster.
type Runner interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// ExecRunner invokes the configured binary with a per-command timeout.
// One command is in flight at a time; callers serialize invocations.
type ExecRunner struct {
	binary  string
	timeout time.Duration
}

// NewExecRunner builds a runner from the tool configuration.
func NewExecRunner(cfg config.ToolConfig) *ExecRunner {
	return &ExecRunner{binary: cfg.Binary, timeout: cfg.CommandTimeout}
}

// Run executes the binary with args, capturing stdout/stderr. On nonzero
// exit or timeout it returns the partial Result alongside an
// *ExternalToolError; the caller decides whether that aborts the run.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (Result, error) {
	cmdline := r.binary + " " + strings.Join(args, " ")

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Command:  cmdline,
		Stdout:   stdout.String(),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}

	if err == nil {
		zap.L().Info("command completed",
			zap.String("command", cmdline),
			zap.Int("exit_code", 0),
			zap.Duration("duration", res.Duration))
		return res, nil
	}

	toolErr := &ExternalToolError{Command: cmdline, Stderr: res.Stderr, Err: err}

	if runCtx.Err() == context.DeadlineExceeded {
		toolErr.Timeout = true
		res.ExitCode = -1
	} else {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			toolErr.ExitCode = res.ExitCode
			toolErr.Err = nil
		} else {
			// Could not start the process at all (binary missing etc).
			res.ExitCode = -1
		}
	}

	zap.L().Warn("command failed",
		zap.String("command", cmdline),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
		zap.Bool("timeout", toolErr.Timeout),
		zap.String("stderr", res.Stderr))

	return res, toolErr
}
