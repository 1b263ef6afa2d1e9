package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// SpawnSpec describes one long-running server process. Stdout and stderr are
// appended to LogPath when set.
type SpawnSpec struct {
	Name    string
	Args    []string
	Dir     string
	Env     map[string]string
	LogPath string
}

// Process is a handle on a spawned server. Implementations must tolerate
// Signal and Kill after the process has already exited.
type Process interface {
	PID() int
	Running() bool
	Signal(sig os.Signal) error
	// Wait blocks until the process exits or the timeout elapses; the timeout
	// case returns an error.
	Wait(timeout time.Duration) error
	Kill() error
}

// Spawner starts server processes. The manager depends on this interface so
// tests can substitute fake processes.
type Spawner interface {
	Spawn(ctx context.Context, spec SpawnSpec) (Process, error)
}

type osProcess struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

func (p *osProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *osProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *osProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *osProcess) Wait(timeout time.Duration) error {
	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("process %d did not exit within %s", p.PID(), timeout)
	}
}

func (p *osProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if err != nil && strings.Contains(err.Error(), "process already finished") {
		return nil
	}
	return err
}

type execSpawner struct{}

// NewSpawner returns the os/exec backed Spawner. Spawned processes are
// detached from the request context so they outlive the call that started
// them.
func NewSpawner() Spawner {
	return &execSpawner{}
}

func (s *execSpawner) Spawn(_ context.Context, spec SpawnSpec) (Process, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("spawn: command name must not be empty")
	}
	cmd := exec.Command(spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	for key, value := range spec.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}
	var logFile *os.File
	if spec.LogPath != "" {
		f, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("spawn: failed to open log file %s: %w", spec.LogPath, err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		logFile = f
	}
	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("spawn: failed to start %s: %w", spec.Name, err)
	}
	proc := &osProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.waitErr = cmd.Wait()
		if logFile != nil {
			logFile.Close()
		}
		close(proc.done)
	}()
	return proc, nil
}
