// Package worker starts and stops the child processes that host
// out-of-process applications.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	ErrKillTimeout      = errors.New("kill timeout")
	ErrNoCommand        = errors.New("no command configured")
	ErrAlreadyStarted   = errors.New("process already started")
	ErrNotStarted       = errors.New("process not started")
	ErrProcessCompleted = errors.New("process already completed")
)

// Config describes the command to run.
type Config struct {
	// Cmd is the path or name of the binary to execute
	Cmd string `conf:"cmd"`

	// Cwd is the working directory in which
	// the binary should be executed
	Cwd string `conf:"cwd"`

	// Args is the list of arguments to pass to the command
	Args []string `conf:"args"`

	// Env is a map of environment variables added
	// to the environment of the current process
	Env map[string]string `conf:"env"`
}

// ExitEvent describes how a process ended.
type ExitEvent struct {
	// Code is the exit code of the process
	Code *int

	// Signal is the signal that caused the process to exit
	Signal *int

	// Stderr is the stderr output of the process
	Stderr string
}

// Process is a running child process with piped stdio.
type Process struct {
	pid  int
	cmd  *exec.Cmd
	done chan struct{}
	exit ExitEvent

	stdin  io.WriteCloser
	stdout io.ReadCloser

	stderr   lockedBuffer
	stderrWg sync.WaitGroup

	closeOnce sync.Once

	log *zap.Logger
}

// Start starts the configured command. The process is killed when ctx is
// cancelled.
func Start(ctx context.Context, config Config, log *zap.Logger) (*Process, error) {
	if config.Cmd == "" {
		return nil, ErrNoCommand
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	log = log.Named("worker")

	log.Debug("starting worker process",
		zap.String("command", config.Cmd),
		zap.Strings("args", config.Args),
		zap.String("cwd", config.Cwd))

	cmd := exec.Command(config.Cmd, config.Args...)
	cmd.Env = buildEnv(config.Env)
	cmd.Dir = config.Cwd
	initCmd(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	p := &Process{
		pid:    cmd.Process.Pid,
		cmd:    cmd,
		done:   make(chan struct{}),
		stdin:  stdin,
		stdout: stdout,
		log:    log.With(zap.Int("pid", cmd.Process.Pid)),
	}

	// stderr must be drained before Wait, which closes the pipe
	p.stderrWg.Add(1)
	go func() {
		defer p.stderrWg.Done()

		if _, err := io.Copy(&p.stderr, stderr); err != nil {
			p.log.Debug("failed to read from stderr", zap.Error(err))
		}
	}()

	go func() {
		p.stderrWg.Wait()

		err := cmd.Wait()
		p.exit = exitEvent(err, p.stderr.String())

		close(p.done)
	}()

	go func() {
		select {
		case <-p.done:
		case <-ctx.Done():
			p.signal(syscall.SIGKILL)
		}
	}()

	return p, nil
}

func (p *Process) Pid() int { return p.pid }

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Pipe returns a duplex pipe writing to the process stdin and reading
// from its stdout.
func (p *Process) Pipe() io.ReadWriteCloser {
	return &duplexPipe{r: p.stdout, w: p.stdin, close: p.closeStdin}
}

// Stderr returns the stderr output read so far.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Terminate sends SIGTERM and waits up to timeout for the process to exit.
// A negative timeout does not wait, a zero timeout waits indefinitely.
func (p *Process) Terminate(timeout time.Duration) error {
	return p.stop(syscall.SIGTERM, timeout)
}

// Kill sends SIGKILL and waits like Terminate.
func (p *Process) Kill(timeout time.Duration) error {
	return p.stop(syscall.SIGKILL, timeout)
}

// Stop terminates the process and kills it if it does not exit within
// timeout.
func (p *Process) Stop(timeout time.Duration) error {
	if err := p.Terminate(timeout); !errors.Is(err, ErrKillTimeout) {
		return err
	}

	p.log.Warn("process did not terminate in time, killing")

	return p.Kill(timeout)
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) (ExitEvent, error) {
	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-p.done:
		return p.exit, nil
	}
}

func (p *Process) stop(signal syscall.Signal, timeout time.Duration) error {
	select {
	case <-p.done:
		p.log.Debug("process already terminated")
		return nil
	default:
	}

	p.signal(signal)

	if timeout < 0 {
		return nil
	}

	if timeout == 0 {
		<-p.done
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return ErrKillTimeout
	}
}

func (p *Process) signal(signal syscall.Signal) {
	log := p.log.With(zap.Stringer("signal", signal))

	// close stdin first so the process does not hang on input
	if err := p.closeStdin(); err != nil {
		log.Debug("close stdin failed", zap.Error(err))
	}

	log.Info("sending signal")

	if err := killProcess(p.cmd, signal); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Error("stop failed", zap.Error(err))
	}
}

func (p *Process) closeStdin() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.stdin.Close()
	})
	return err
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func exitEvent(err error, stderr string) ExitEvent {
	var code, signo *int

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		zero := 0
		code = &zero
	case errors.As(err, &exitErr):
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			sig := int(status.Signal())
			signo = &sig
		} else {
			c := exitErr.ExitCode()
			code = &c
		}
	}

	if code == nil && signo == nil {
		// unknown exit status
		one := 1
		code = &one
	}

	return ExitEvent{Code: code, Signal: signo, Stderr: stderr}
}

type duplexPipe struct {
	r     io.Reader
	w     io.Writer
	close func() error
}

func (d *duplexPipe) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *duplexPipe) Write(p []byte) (int, error) { return d.w.Write(p) }
func (d *duplexPipe) Close() error                { return d.close() }

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
