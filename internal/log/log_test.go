package log_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/fossrun/internal/log"

	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := log.New(&buf, false)

	ctx := log.ContextAttrs(t.Context(), slog.String("run_id", "abc"))
	child := log.ContextAttrs(ctx, slog.Int("invocation", 2))

	logger.InfoContext(child, "hello")
	logger.DebugContext(child, "not logged")
	logger.InfoContext(ctx, "parent")

	dec := json.NewDecoder(&buf)
	var first map[string]any
	require.NoError(t, dec.Decode(&first))
	require.Equal(t, "hello", first["msg"])
	require.Equal(t, "abc", first["run_id"])
	require.EqualValues(t, 2, first["invocation"])

	var second map[string]any
	require.NoError(t, dec.Decode(&second))
	require.Equal(t, "parent", second["msg"])
	require.NotContains(t, second, "invocation")
}

func TestOutput(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    string
		then     io.Writer
	}{
		{"empty", "", os.Stderr},
		{"stderr", log.Stderr, os.Stderr},
		{"stdout", log.Stdout, os.Stdout},
		{"discard", log.Discard, io.Discard},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			w, closeFn, err := log.Output(tc.given)
			require.NoError(t, err)
			require.Equal(t, tc.then, w)
			require.NoError(t, closeFn())
		})
	}

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fossrun.log")
		w, closeFn, err := log.Output(path)
		require.NoError(t, err)
		log.New(w, true).Debug("debug line")
		require.NoError(t, closeFn())

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(b), `"msg":"debug line"`)
	})
}
