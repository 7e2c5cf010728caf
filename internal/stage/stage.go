// Package stage copies a single file into a scratch directory so it can be
// scanned as a directory subject.
package stage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/fossrun/internal/model"
)

// DirName is the scratch directory created inside the root.
const DirName = ".temp"

// Stage creates <root>/.temp and copies file into it. It fails with
// model.ErrStageExists when the directory is already there, so a concurrent
// or crashed staging is never overwritten. cleanup removes the directory and
// must be called whatever the outcome of the scan is.
func Stage(root, file string) (dir string, cleanup func() error, err error) {
	dir = filepath.Join(root, DirName)
	if _, err := os.Lstat(dir); err == nil {
		return "", nil, fmt.Errorf("%w: %s", model.ErrStageExists, dir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", nil, err
	}

	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", nil, fmt.Errorf("%w: %s", model.ErrStageExists, dir)
		}
		return "", nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	cleanup = func() error {
		return os.RemoveAll(dir)
	}

	if err := copyFile(file, filepath.Join(dir, filepath.Base(file))); err != nil {
		return "", nil, errors.Join(err, cleanup())
	}
	return dir, cleanup, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
