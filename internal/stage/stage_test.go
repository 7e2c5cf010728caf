package stage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/fossrun/internal/model"
	"github.com/CZERTAINLY/fossrun/internal/stage"

	"github.com/stretchr/testify/require"
)

func TestStage(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	file := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))

	dir, cleanup, err := stage.Stage(root, file)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, ".temp"), dir)

	b, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	require.Equal(t, "package main\n", string(b))

	t.Run("exists", func(t *testing.T) {
		_, _, err := stage.Stage(root, file)
		require.ErrorIs(t, err, model.ErrStageExists)
		// the existing directory is untouched
		require.FileExists(t, filepath.Join(dir, "main.go"))
	})

	require.NoError(t, cleanup())
	require.NoDirExists(t, dir)
	require.FileExists(t, file)
}

func TestStageErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		_, cleanup, err := stage.Stage(root, filepath.Join(root, "missing.go"))
		require.Error(t, err)
		require.ErrorIs(t, err, os.ErrNotExist)
		require.Nil(t, cleanup)
		require.NoDirExists(t, filepath.Join(root, ".temp"))
	})

	t.Run("directory", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		_, _, err := stage.Stage(root, t.TempDir())
		require.Error(t, err)
		require.NoDirExists(t, filepath.Join(root, ".temp"))
	})

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()
		_, _, err := stage.Stage(filepath.Join(t.TempDir(), "missing"), "file.go")
		require.Error(t, err)
		require.NotErrorIs(t, err, model.ErrStageExists)
	})
}
