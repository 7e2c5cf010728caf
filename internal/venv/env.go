// Package venv provisions the isolated python environment the scanner is
// installed into.
package venv

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const ToolName = "fosslight"

// Env holds the paths of a virtual environment. It is a pure function of the
// base directory and the platform and never changes after construction.
type Env struct {
	Dir      string
	Python   string
	Activate string
	Bin      string
	Tool     string
	goos     string
}

func NewEnv(dir string) Env {
	return NewEnvFor(dir, runtime.GOOS)
}

// NewEnvFor computes the layout of a virtual environment created on goos.
func NewEnvFor(dir, goos string) Env {
	if goos == "windows" {
		bin := filepath.Join(dir, "Scripts")
		return Env{
			Dir:      dir,
			Python:   filepath.Join(bin, "python.exe"),
			Activate: filepath.Join(bin, "activate.bat"),
			Bin:      bin,
			Tool:     filepath.Join(bin, ToolName+".exe"),
			goos:     goos,
		}
	}
	bin := filepath.Join(dir, "bin")
	return Env{
		Dir:      dir,
		Python:   filepath.Join(bin, "python"),
		Activate: filepath.Join(bin, "activate"),
		Bin:      bin,
		Tool:     filepath.Join(bin, ToolName),
		goos:     goos,
	}
}

// Ready reports whether the base dir, the interpreter and the activation
// script all exist. It hits the filesystem on every call.
func (e Env) Ready() bool {
	return exists(e.Dir) && exists(e.Python) && exists(e.Activate)
}

// Environ returns base with the environment activated: VIRTUAL_ENV points to
// the env, its scripts dir is the first PATH entry and PYTHONHOME is unset.
func (e Env) Environ(base []string) []string {
	sep := string(os.PathListSeparator)
	if e.goos == "windows" {
		sep = ";"
	}

	var path string
	ret := make([]string, 0, len(base)+2)
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		switch e.key(k) {
		case "PATH":
			path = v
			continue
		case "VIRTUAL_ENV", "PYTHONHOME":
			continue
		}
		ret = append(ret, kv)
	}

	if path != "" {
		path = e.Bin + sep + path
	} else {
		path = e.Bin
	}
	return append(ret, "VIRTUAL_ENV="+e.Dir, "PATH="+path)
}

// key normalizes environment variable names, which are case insensitive on windows
func (e Env) key(k string) string {
	if e.goos == "windows" {
		return strings.ToUpper(k)
	}
	return k
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
