package cmdexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Spec describes one subprocess invocation.
type Spec struct {
	Name    string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

// Result carries the observable outcome of a finished subprocess. A non-zero
// exit code is a Result, not an error; errors are reserved for failures to
// spawn or wait.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

func (r *Result) Success() bool { return r.ExitCode == 0 && !r.TimedOut }

// CombinedOutput joins stdout and stderr for log surfaces that want one blob.
func (r *Result) CombinedOutput() string {
	switch {
	case r.Stdout == "":
		return r.Stderr
	case r.Stderr == "":
		return r.Stdout
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Runner executes subprocesses. Services depend on this interface so tests
// can substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, spec Spec) (*Result, error)
}

type execRunner struct {
	maxOutput int
}

const defaultMaxOutput = 1 << 20 // 1 MiB per stream

// NewRunner returns the os/exec backed Runner.
func NewRunner() Runner {
	return &execRunner{maxOutput: defaultMaxOutput}
}

func (r *execRunner) Run(ctx context.Context, spec Spec) (*Result, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("cmdexec: command name must not be empty")
	}
	runCtx := ctx
	cancel := func() {}
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Name, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	cmd.Env = mergeEnvironment(spec.Env)
	stdout := newLimitedBuffer(r.maxOutput)
	stderr := newLimitedBuffer(r.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if result.TimedOut {
			result.ExitCode = -1
			return result, nil
		}
		return nil, fmt.Errorf("cmdexec: run %s: %w", spec.Name, err)
	}
	return result, nil
}

func mergeEnvironment(extra map[string]string) []string {
	base := os.Environ()
	if len(extra) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(extra))
	replaced := make(map[string]struct{}, len(extra))
	for _, kv := range base {
		equal := strings.IndexByte(kv, '=')
		if equal <= 0 {
			continue
		}
		key := kv[:equal]
		if value, ok := extra[key]; ok {
			merged = append(merged, key+"="+value)
			replaced[key] = struct{}{}
			continue
		}
		merged = append(merged, kv)
	}
	for key, value := range extra {
		if _, ok := replaced[key]; ok {
			continue
		}
		merged = append(merged, key+"="+value)
	}
	return merged
}
