package venv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/CZERTAINLY/fossrun/internal/log"
	"github.com/CZERTAINLY/fossrun/internal/model"
)

var (
	ErrCreate  = errors.New("create venv failed")
	ErrUpgrade = errors.New("pip upgrade failed")
	ErrInstall = errors.New("install fosslight scanner failed")
)

// Commander runs a command to completion.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecCommander runs commands via os/exec. Stderr of a failed command is
// attached to the returned error.
type ExecCommander struct {
	Env []string // nil => inherit
}

func (c ExecCommander) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = c.Env
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Provisioner creates the environment and (re)installs the scanner package.
type Provisioner struct {
	env       Env
	python    string
	pkg       string
	heartbeat time.Duration
	progress  io.Writer
	cmd       Commander
}

func NewProvisioner(env Env) Provisioner {
	return Provisioner{
		env:       env,
		python:    model.DefaultPython,
		pkg:       model.DefaultPackage,
		heartbeat: model.DefaultHeartbeat,
		progress:  io.Discard,
		cmd:       ExecCommander{},
	}
}

// WithPython sets the interpreter used to create the environment.
func (p Provisioner) WithPython(python string) Provisioner {
	p.python = python
	return p
}

func (p Provisioner) WithPackage(pkg string) Provisioner {
	p.pkg = pkg
	return p
}

// WithHeartbeat sets the interval of progress dots, zero disables them.
func (p Provisioner) WithHeartbeat(d time.Duration) Provisioner {
	p.heartbeat = d
	return p
}

// WithProgress sets the caller visible channel for progress and status lines.
func (p Provisioner) WithProgress(w io.Writer) Provisioner {
	p.progress = w
	return p
}

func (p Provisioner) WithCommander(cmd Commander) Provisioner {
	p.cmd = cmd
	return p
}

func (p Provisioner) Env() Env {
	return p.env
}

// EnsureReady creates the environment if it is not ready, then upgrades pip
// and installs the scanner package. It is safe to call repeatedly, each call
// is an update pass. A failure is logged and returned, leaving the
// environment not ready; it is up to the caller to treat it as fatal.
func (p Provisioner) EnsureReady(ctx context.Context) error {
	ctx = ctxAttrs(ctx, p.env)
	_, _ = fmt.Fprintln(p.progress, "Waiting for setting venv and Fosslight Scanner")

	stop := p.startHeartbeat()
	err := p.provision(ctx)
	stop()

	if err != nil {
		slog.WarnContext(ctx, "environment is not ready", "error", err)
		_, _ = fmt.Fprintf(p.progress, "\nFosslight Scanner is not ready: %v\n", err)
		return err
	}
	slog.DebugContext(ctx, "environment is ready")
	_, _ = fmt.Fprintln(p.progress, "\nFosslight Scanner is ready to use.")
	return nil
}

func (p Provisioner) provision(ctx context.Context) error {
	if !p.env.Ready() {
		slog.InfoContext(ctx, "creating venv", "python", p.python)
		if err := p.cmd.Run(ctx, p.python, "-m", "venv", p.env.Dir); err != nil {
			return fmt.Errorf("%w: %w", ErrCreate, err)
		}
	}

	slog.DebugContext(ctx, "upgrading pip")
	if err := p.cmd.Run(ctx, p.env.Python, "-m", "pip", "install", "--upgrade", "pip"); err != nil {
		return fmt.Errorf("%w: %w", ErrUpgrade, err)
	}

	slog.DebugContext(ctx, "installing package", "package", p.pkg)
	if err := p.cmd.Run(ctx, p.env.Python, "-m", "pip", "install", p.pkg); err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}
	return nil
}

// startHeartbeat prints a dot each interval until the returned function is
// called. The function waits for the printing goroutine to exit.
func (p Provisioner) startHeartbeat() func() {
	if p.heartbeat <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	ticker := time.NewTicker(p.heartbeat)
	wg.Go(func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_, _ = io.WriteString(p.progress, ".")
			}
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

func ctxAttrs(ctx context.Context, env Env) context.Context {
	return log.ContextAttrs(ctx, slog.String("venv", env.Dir))
}
