// Package process spawns backend child processes for service.SessionManager and wraps the
// resulting *os.Process to satisfy interfaces.SpawnedProcess: a real subprocess, per-port log
// files, and a best-effort parent-death signal so children don't outlive a crashed proxier.
package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/FeckMell/clientproxier/helpers"
	"github.com/FeckMell/clientproxier/interfaces"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Launcher implements interfaces.ProcessLauncher by exec'ing Command with Args appended with
// --port and the runtime-env context, redirecting stdout/stderr through lumberjack so a
// long-lived proxier doesn't grow unbounded per-backend log files.
type Launcher struct {
	// Command is the backend executable and any leading fixed arguments (domain.Config.BackendCommand).
	Command []string
	// MaxSizeMB, MaxBackups, MaxAgeDays configure the per-backend log rotation; zero values fall
	// back to lumberjack's own defaults (100MB, unlimited backups/age).
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLauncher creates a Launcher for command. Panics if command is empty (a misconfigured backend
// binary is a programmer error, caught at startup).
func NewLauncher(command []string) *Launcher {
	if len(command) == 0 {
		panic("process.launcher.go: command is required")
	}
	return &Launcher{Command: command}
}

// Launch starts the backend command for spec, redirecting stdout/stderr to rotated per-port log
// files, and installs a parent-death signal on platforms that support it (adapters/process/fateshare*.go).
//
// Returns: (process, nil) once the OS has forked/exec'd; (nil, err) if the spawn itself failed.
func (l *Launcher) Launch(ctx context.Context, spec interfaces.SpawnSpec) (interfaces.SpawnedProcess, error) {
	args := append([]string{}, l.Command[1:]...)
	args = append(args,
		"--port", fmt.Sprintf("%d", spec.Port),
		"--runtime-env-context", spec.RuntimeEnvContext,
		"--job-id", spec.JobID,
	)
	cmd := exec.CommandContext(ctx, l.Command[0], args...) //nolint:gosec // backend binary is operator-configured, not caller-controlled

	stdout := l.rotatedWriter(spec.StdoutPath)
	stderr := l.rotatedWriter(spec.StderrPath)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	applyFateShare(cmd)

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, fmt.Errorf("process: launch backend on port %d: %w", spec.Port, err)
	}
	p := &spawnedProcess{cmd: cmd, pid: cmd.Process.Pid, stdout: stdout, stderr: stderr, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (l *Launcher) rotatedWriter(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   helpers.StrPanic(path, "process.launcher.go: log path is required"),
		MaxSize:    l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAgeDays,
	}
}

// spawnedProcess implements interfaces.SpawnedProcess over a real *exec.Cmd/*os.Process. done is
// closed by the Wait goroutine started at launch; the mutex guards the cached exit state, since
// Poll is called from the reaper while Kill may run concurrently from Datapath finalization or
// shutdown.
type spawnedProcess struct {
	cmd    *exec.Cmd
	pid    int
	stdout *lumberjack.Logger
	stderr *lumberjack.Logger
	done   chan struct{}

	mu           sync.Mutex
	exitObserved bool
	exitCode     int
}

func (p *spawnedProcess) Pid() int { return p.pid }

// CommandLine reads /proc/<pid>/cmdline (Linux). On platforms without it, or once the process has
// exited, returns ("", false); the caller skips readiness polling and trusts the spawn.
func (p *spawnedProcess) CommandLine() (string, bool) {
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", p.pid))
	if err != nil || len(raw) == 0 {
		return "", false
	}
	line := make([]byte, len(raw))
	copy(line, raw)
	for i, b := range line {
		if b == 0 {
			line[i] = ' '
		}
	}
	return string(line), true
}

// Poll reports whether the process has exited, without blocking. Go's os.Process has no
// non-blocking poll, so a Wait goroutine started at launch closes done on exit and Poll caches
// the result.
func (p *spawnedProcess) Poll() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exitObserved {
		return p.exitCode, true
	}
	select {
	case <-p.done:
		p.exitObserved = true
		p.exitCode = p.cmd.ProcessState.ExitCode()
		_ = p.stdout.Close()
		_ = p.stderr.Close()
		return p.exitCode, true
	default:
		return 0, false
	}
}

// Kill sends SIGKILL; a no-op if the process has already exited.
func (p *spawnedProcess) Kill() error {
	p.mu.Lock()
	exited := p.exitObserved
	p.mu.Unlock()
	if exited {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !isAlreadyExited(err) {
		return fmt.Errorf("process: kill pid %d: %w", p.pid, err)
	}
	return nil
}

func isAlreadyExited(err error) bool {
	return os.IsNotExist(err) || err.Error() == "os: process already finished"
}
