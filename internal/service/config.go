package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/fossrun/internal/model"
	"github.com/CZERTAINLY/fossrun/internal/venv"
)

// DefaultEnvDir is the virtual environment location used unless configured.
func DefaultEnvDir() (string, error) {
	d, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "fossrun", "venv"), nil
}

// EnvFromConfig returns the virtual environment described by cfg.
func EnvFromConfig(cfg model.Config) (venv.Env, error) {
	var dir string
	if cfg.Environment != nil {
		dir = model.Get(cfg.Environment.Dir, "")
	}
	if dir == "" {
		var err error
		dir, err = DefaultEnvDir()
		if err != nil {
			return venv.Env{}, fmt.Errorf("locating venv directory: %w", err)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return venv.Env{}, fmt.Errorf("locating venv directory: %w", err)
	}
	return venv.NewEnv(abs), nil
}

// ProvisionerFromConfig returns a provisioner writing progress to w.
func ProvisionerFromConfig(cfg model.Config, w io.Writer) (venv.Provisioner, error) {
	env, err := EnvFromConfig(cfg)
	if err != nil {
		return venv.Provisioner{}, err
	}
	heartbeat, err := cfg.Heartbeat()
	if err != nil {
		return venv.Provisioner{}, fmt.Errorf("parsing environment.heartbeat: %w", err)
	}

	p := venv.NewProvisioner(env).
		WithHeartbeat(heartbeat).
		WithProgress(w)
	if e := cfg.Environment; e != nil {
		p = p.WithPython(model.Get(e.Python, model.DefaultPython)).
			WithPackage(model.Get(e.Package, model.DefaultPackage))
	}
	return p, nil
}

// OrchestratorFromConfig returns an orchestrator for the environment and
// timeout described by cfg.
func OrchestratorFromConfig(cfg model.Config) (*Orchestrator, error) {
	env, err := EnvFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, fmt.Errorf("parsing environment.timeout: %w", err)
	}
	return NewOrchestrator(env).WithTimeout(timeout), nil
}
