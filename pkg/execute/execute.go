// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options describes one subprocess invocation. Commands are always run from
// an argv vector; there is no shell mode.
type Options struct {
	Command string
	Args    []string
	Dir     string
	// Timeout of zero means the call is bounded only by ctx.
	Timeout time.Duration
	// Stream, when set, receives combined output as it is produced.
	Stream io.Writer
	Logger *zap.Logger
}

// String renders the command line for logs and error messages.
func (o Options) String() string {
	return buildCommandString(o.Command, o.Args...)
}

// Runner executes subprocesses. Stages depend on this interface so tests can
// substitute a Recorder.
type Runner interface {
	Run(ctx context.Context, opts Options) (string, error)
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Summary string
}

func (e *ExitError) Error() string {
	if e.Summary == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.Code, e.Summary)
}

// ExitCode extracts the process exit code from err: 0 for nil, the status
// for an ExitError, and -1 when the command could not be run at all.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}

// System runs commands on the local host.
type System struct{}

// Run executes the command and returns its combined output.
func (System) Run(ctx context.Context, opts Options) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ctx, span := telemetry.Start(ctx, "execute.Run",
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)
	defer span.End()

	cmdStr := opts.String()
	logger.Debug("Starting execution", zap.String("command", cmdStr))

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	var buf bytes.Buffer
	var out io.Writer = &buf
	if opts.Stream != nil {
		out = io.MultiWriter(&buf, opts.Stream)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	output := buf.String()
	if err == nil {
		logger.Debug("Execution succeeded", zap.String("command", cmdStr))
		return output, nil
	}

	span.RecordError(err)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		span.SetAttributes(attribute.Int("exit_code", code))
		summary := Summarize(output, 2)
		logger.Debug("Execution exited non-zero",
			zap.String("command", cmdStr),
			zap.Int("exit_code", code),
			zap.String("summary", summary))
		return output, &ExitError{Command: cmdStr, Code: code, Summary: summary}
	}

	logger.Debug("Execution failed to start", zap.String("command", cmdStr), zap.Error(err))
	return output, cerr.Wrapf(err, "run %s", cmdStr)
}

// Summarize returns up to max lines of output that look like errors,
// falling back to the last non-empty line.
func Summarize(output string, max int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	var picked []string
	for _, line := range lines {
		l := strings.ToLower(line)
		if strings.Contains(l, "error") || strings.Contains(l, "fail") || strings.Contains(l, "e:") {
			picked = append(picked, strings.TrimSpace(line))
			if len(picked) == max {
				break
			}
		}
	}
	if len(picked) == 0 {
		for i := len(lines) - 1; i >= 0; i-- {
			if s := strings.TrimSpace(lines[i]); s != "" {
				return s
			}
		}
		return ""
	}
	return strings.Join(picked, "; ")
}

func buildCommandString(command string, args ...string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}
