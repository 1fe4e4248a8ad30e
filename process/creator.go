package process

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Creator spawns processes for a single executable path. Implementations
// other than the exec-backed one returned by NewCreator exist so tests can
// intercept and count invocations.
type Creator interface {
	// New prepares a process with the given args. The process is killed when
	// ctx is canceled.
	New(ctx context.Context, args ...string) (Process, error)

	// Output runs the executable to completion with the given args and
	// returns its standard output. Used for one-shot queries such as asking
	// a binary for its version.
	Output(ctx context.Context, args ...string) ([]byte, error)
}

type exeCreator struct {
	exePath string
	// Stdout/stderr for spawned processes, no capture if nil
	outWriter io.Writer
}

// NewCreator returns a Creator that runs the executable at exePath. If
// outWriter is not nil, spawned processes have stdout and stderr attached
// to it.
func NewCreator(exePath string, outWriter io.Writer) Creator {
	return &exeCreator{exePath: exePath, outWriter: outWriter}
}

func (e *exeCreator) New(ctx context.Context, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, e.exePath, args...)
	if e.outWriter != nil {
		cmd.Stdout = e.outWriter
		cmd.Stderr = e.outWriter
	}
	return &exeProcess{cmd}, nil
}

func (e *exeCreator) Output(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, e.exePath, args...).Output()
}

type exeProcess struct {
	cmd *exec.Cmd
}

func (p *exeProcess) Start() error { return p.cmd.Start() }
func (p *exeProcess) Wait() error  { return p.cmd.Wait() }

func (p *exeProcess) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return os.ErrProcessDone
	}
	return p.cmd.Process.Signal(sig)
}

func (p *exeProcess) Kill() error {
	if p.cmd.Process == nil {
		return os.ErrProcessDone
	}
	return p.cmd.Process.Kill()
}

func (p *exeProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
