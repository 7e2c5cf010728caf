package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/CZERTAINLY/fossrun/internal/model"
)

var (
	ErrScanInProgress = errors.New("scan in progress")
	ErrScanFailed     = errors.New("scan failed")
)

// waitDelay bounds how long Wait keeps reading output of grandchildren which
// outlived the scanner process.
const waitDelay = 5 * time.Second

// PublishFunc receives raw chunks of the combined stdout and stderr.
type PublishFunc func(ctx context.Context, chunk string)

// Command is a template for a single scanner invocation.
type Command struct {
	Path    string
	Env     []string
	Timeout time.Duration // zero => no timeout
}

// ScanError is returned by Runner.Run when an invocation did not exit
// cleanly. It matches ErrScanFailed with errors.Is.
type ScanError struct {
	Path     string
	ExitCode int
	Err      error
}

func (e *ScanError) Error() string {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return fmt.Sprintf("scan is stopped where path: %s, with exit code: %d", e.Path, e.ExitCode)
	}
	return fmt.Sprintf("scan is stopped where path: %s, with error: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() []error {
	return []error{ErrScanFailed, e.Err}
}

// Runner executes one invocation at a time and tracks the running child so
// it can be killed by ForceQuit.
type Runner struct {
	mx  sync.Mutex
	cmd *exec.Cmd
}

func NewRunner() *Runner {
	return &Runner{}
}

// Run spawns the scanner with inv arguments and blocks until it exits. Every
// chunk the child writes to stdout or stderr is passed to publish as it
// arrives; both streams share one pipe, so chunks keep the order the child
// wrote them in. It returns inv.Path() on exit code 0, a *ScanError otherwise.
func (r *Runner) Run(ctx context.Context, proto Command, inv model.Invocation, publish PublishFunc) (string, error) {
	path := inv.Path()
	if proto.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proto.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, proto.Path, inv.Args()...)
	cmd.Env = proto.Env
	// cmd.Stdin stays nil: the child reads from the null device
	out := &publisher{ctx: ctx, publish: publish}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)
	cmd.Cancel = func() error {
		return terminateProcess(cmd)
	}

	r.mx.Lock()
	if r.cmd != nil {
		r.mx.Unlock()
		return "", ErrScanInProgress
	}
	slog.DebugContext(ctx, "starting scanner", "path", proto.Path, "args", inv.Args())
	if err := cmd.Start(); err != nil {
		r.mx.Unlock()
		return "", &ScanError{Path: path, ExitCode: -1, Err: err}
	}
	r.cmd = cmd
	r.mx.Unlock()

	err := cmd.Wait()

	r.mx.Lock()
	r.cmd = nil
	r.mx.Unlock()

	if err != nil {
		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		return "", &ScanError{Path: path, ExitCode: code, Err: err}
	}
	return path, nil
}

// Running reports whether a child is tracked.
func (r *Runner) Running() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.cmd != nil
}

// ForceQuit kills the running child together with its children. It does not
// wait for the child to exit, the pending Run returns once it does. Failures
// are logged and ignored.
func (r *Runner) ForceQuit(ctx context.Context) {
	r.mx.Lock()
	cmd := r.cmd
	r.mx.Unlock()
	if cmd == nil {
		return
	}
	slog.InfoContext(ctx, "force quit", "pid", cmd.Process.Pid)
	if err := terminateProcess(cmd); err != nil {
		slog.DebugContext(ctx, "force quit failed: ignoring", "pid", cmd.Process.Pid, "error", err)
	}
}

// publisher is used as both Stdout and Stderr of a command. os/exec
// serializes Write calls for a comparable writer shared by both.
type publisher struct {
	ctx     context.Context
	publish PublishFunc
}

func (p *publisher) Write(b []byte) (int, error) {
	if p.publish != nil {
		p.publish(p.ctx, string(b))
	}
	return len(b), nil
}
