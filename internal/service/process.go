// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wingedpig/papertalk/internal/config"
)

// Process is an owned OS process running in its own process group.
type Process struct {
	cfg    config.ServiceConfig
	onExit ExitFunc

	mu        sync.RWMutex
	cmd       *exec.Cmd
	state     HandleState
	pid       int
	exitCode  int
	startedAt time.Time

	waitDone  chan struct{}
	termOnce  sync.Once
	termErr   error
	terminate bool
}

// ExecSpawner spawns services as child processes. Stdout and stderr are
// inherited; stdin is /dev/null.
type ExecSpawner struct{}

// Spawn starts the service's command.
func (ExecSpawner) Spawn(ctx context.Context, spec config.ServiceConfig, onExit ExitFunc) (Handle, error) {
	p := &Process{cfg: spec, onExit: onExit}
	if err := p.start(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Process) start() error {
	argv := p.cfg.Argv()
	if len(argv) == 0 {
		return fmt.Errorf("service %s: %w", p.cfg.Name, ErrEmptyCommand)
	}

	// Not CommandContext: the process must outlive the launch context and
	// is only stopped through Terminate.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = p.cfg.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	cmd.Env = os.Environ()
	for k, v := range p.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.cfg.Name, err)
	}

	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.startedAt = time.Now()
	p.state = StateRunning
	p.waitDone = make(chan struct{})

	go p.waitForExit()
	return nil
}

// Name returns the service name.
func (p *Process) Name() string { return p.cfg.Name }

// Spec returns the service config the process was spawned from.
func (p *Process) Spec() config.ServiceConfig { return p.cfg }

// PID returns the process ID, which is also the process group ID.
func (p *Process) PID() int { return p.pid }

// StartedAt returns when the process was spawned.
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.waitDone }

// State returns the current lifecycle state.
func (p *Process) State() HandleState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// ExitCode returns the exit code, or -1 if killed by a signal.
func (p *Process) ExitCode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode
}

// Terminate sends the stop signal to the process group, escalating to
// SIGKILL after the stop timeout or when ctx is done. It is idempotent.
func (p *Process) Terminate(ctx context.Context) error {
	p.termOnce.Do(func() {
		p.termErr = p.stop(ctx)
	})
	return p.termErr
}

func (p *Process) stop(ctx context.Context) error {
	p.mu.Lock()
	select {
	case <-p.waitDone:
		p.mu.Unlock()
		return nil
	default:
	}
	p.terminate = true
	p.state = StateTerminating
	p.mu.Unlock()

	pgid := p.pid
	if err := unix.Kill(-pgid, signalFor(p.cfg.StopSignal)); err != nil {
		if errors.Is(err, unix.ESRCH) {
			<-p.waitDone
			return nil
		}
		return fmt.Errorf("signal %s: %w", p.cfg.Name, err)
	}

	timer := time.NewTimer(p.cfg.GetStopTimeout())
	defer timer.Stop()

	select {
	case <-p.waitDone:
	case <-timer.C:
		_ = unix.Kill(-pgid, unix.SIGKILL)
		<-p.waitDone
	case <-ctx.Done():
		_ = unix.Kill(-pgid, unix.SIGKILL)
		<-p.waitDone
	}
	return nil
}

func (p *Process) waitForExit() {
	err := p.cmd.Wait()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	p.mu.Lock()
	p.exitCode = exitCode
	terminated := p.terminate
	if terminated {
		p.state = StateTerminated
	} else {
		p.state = StateExited
	}
	onExit := p.onExit
	// Closed under the lock so stop never marks an exited process as terminating.
	close(p.waitDone)
	p.mu.Unlock()

	if onExit != nil && !terminated {
		onExit(p, exitCode, err)
	}
}

func signalFor(name string) unix.Signal {
	switch strings.ToUpper(name) {
	case "SIGINT":
		return unix.SIGINT
	case "SIGKILL":
		return unix.SIGKILL
	case "SIGQUIT":
		return unix.SIGQUIT
	case "SIGHUP":
		return unix.SIGHUP
	default:
		return unix.SIGTERM
	}
}
