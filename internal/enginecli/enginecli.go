// Package enginecli provides low-level engine process execution and
// readiness polling. It is internal to the sikulibridge package.
package enginecli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Command describes one engine launch.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env entries ("KEY=VALUE") are appended to the parent environment.
	Env []string
	// StdoutPath and StderrPath receive the child's output streams. When
	// both are empty the child inherits the parent's streams.
	StdoutPath string
	StderrPath string
}

// Process owns one running engine child process.
type Process struct {
	cmd        *exec.Cmd
	stdoutPath string
	stderrPath string
	files      []*os.File

	done    chan struct{}
	waitErr error

	mu         sync.Mutex
	terminated bool
}

// Start spawns the command and returns a handle to the running process.
func Start(c Command) (*Process, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	p := &Process{
		cmd:        cmd,
		stdoutPath: c.StdoutPath,
		stderrPath: c.StderrPath,
		done:       make(chan struct{}),
	}

	if c.StdoutPath == "" && c.StderrPath == "" {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		stdout, err := createLog(c.StdoutPath)
		if err != nil {
			return nil, &Error{Op: "start", Args: cmd.Args, Err: err}
		}
		stderr, err := createLog(c.StderrPath)
		if err != nil {
			stdout.Close()
			return nil, &Error{Op: "start", Args: cmd.Args, Err: err}
		}
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		p.files = []*os.File{stdout, stderr}
	}

	if err := cmd.Start(); err != nil {
		p.closeFiles()
		return nil, &Error{Op: "start", Args: cmd.Args, Err: err}
	}

	go func() {
		p.waitErr = cmd.Wait()
		p.closeFiles()
		close(p.done)
	}()

	return p, nil
}

func createLog(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("log path is empty")
	}
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

func (p *Process) closeFiles() {
	for _, f := range p.files {
		_ = f.Close()
	}
}

// PID returns the operating system process identifier.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// StdoutPath returns the file receiving standard output, or "" when inherited.
func (p *Process) StdoutPath() string {
	return p.stdoutPath
}

// StderrPath returns the file receiving standard error, or "" when inherited.
func (p *Process) StderrPath() string {
	return p.stderrPath
}

// Alive reports whether the process is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitErr returns the result of waiting on the process. It is only
// meaningful after Done is closed.
func (p *Process) ExitErr() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// Terminate asks the process to exit, waits up to grace, then kills it.
// Calling Terminate more than once is a no-op.
func (p *Process) Terminate(grace time.Duration) error {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return nil
	}
	p.terminated = true
	p.mu.Unlock()

	if !p.Alive() {
		return nil
	}

	// Signal fails on platforms without SIGTERM; fall through to Kill.
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err == nil {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-p.done:
			return nil
		case <-timer.C:
		}
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return &Error{Op: "kill", Args: p.cmd.Args, Err: err}
	}
	<-p.done
	return nil
}

// FindArtifact returns the single file in libDir matching pattern.
// Zero or several matches are a configuration error.
func FindArtifact(libDir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(libDir, pattern))
	if err != nil {
		return "", &ConfigError{LibDir: libDir, Pattern: pattern, Err: err}
	}
	sort.Strings(matches)
	if len(matches) != 1 {
		return "", &ConfigError{LibDir: libDir, Pattern: pattern, Matches: matches}
	}
	return matches[0], nil
}

// ConfigError reports an engine installation that cannot be launched.
type ConfigError struct {
	LibDir  string
	Pattern string
	Matches []string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine artifact lookup %q in %s failed: %v", e.Pattern, e.LibDir, e.Err)
	}
	if len(e.Matches) == 0 {
		return fmt.Sprintf("engine artifact %q should exist in %s, found none", e.Pattern, e.LibDir)
	}
	return fmt.Sprintf("exactly one engine artifact %q should exist in %s, found %d: %s",
		e.Pattern, e.LibDir, len(e.Matches), strings.Join(e.Matches, ", "))
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Error represents an engine process operation failure.
type Error struct {
	Op   string
	Args []string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s failed: %v (command: %s)", e.Op, e.Err, strings.Join(e.Args, " "))
}

func (e *Error) Unwrap() error {
	return e.Err
}
