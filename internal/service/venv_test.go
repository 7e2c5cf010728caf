package service_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/CZERTAINLY/fossrun/internal/venv"

	"github.com/stretchr/testify/require"
)

// fakeScanner mimics fosslight: it records its arguments, prints to both
// streams, fails for subjects containing "fail" and hangs for "slow".
const fakeScanner = `#!/bin/sh
echo "$@" >> '%s'
case "$*" in
*fail*) echo "failing $*" 1>&2; exit 3;;
*slow*) echo "started $*"; sleep 30;;
esac
echo "out $*"
echo "err $*" 1>&2
`

// fakeEnv creates a virtual environment with a shell script in place of the
// scanner. It returns the env and the file the script appends its args to.
func fakeEnv(t *testing.T) (venv.Env, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipped, fake scanner is a shell script")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}

	dir := t.TempDir()
	env := venv.NewEnv(filepath.Join(dir, "venv"))
	calls := filepath.Join(dir, "calls.txt")

	require.NoError(t, os.MkdirAll(env.Bin, 0o755))
	require.NoError(t, os.WriteFile(env.Python, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(env.Activate, []byte("# activate\n"), 0o644))
	require.NoError(t, os.WriteFile(env.Tool, fmt.Appendf(nil, fakeScanner, calls), 0o755))
	require.True(t, env.Ready())
	return env, calls
}

func readCalls(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

// collector is an observer remembering every chunk it got.
type collector struct {
	mx     sync.Mutex
	chunks []string
	first  chan struct{}
	once   sync.Once
}

func newCollector() *collector {
	return &collector{first: make(chan struct{})}
}

func (c *collector) Observe(_ context.Context, chunk string) {
	c.mx.Lock()
	c.chunks = append(c.chunks, chunk)
	c.mx.Unlock()
	c.once.Do(func() { close(c.first) })
}

func (c *collector) String() string {
	c.mx.Lock()
	defer c.mx.Unlock()
	return strings.Join(c.chunks, "")
}
