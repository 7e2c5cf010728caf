package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CZERTAINLY/fossrun/internal/model"
	"github.com/CZERTAINLY/fossrun/internal/service"

	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mx  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.String()
}

func decodeReports(t *testing.T, s string) []service.Report {
	t.Helper()
	var ret []service.Report
	for line := range strings.Lines(s) {
		var r service.Report
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		ret = append(ret, r)
	}
	return ret
}

func TestSupervisor(t *testing.T) {
	t.Parallel()
	scans := []model.Scan{
		{
			Name:     "sources",
			Mode:     []string{"source"},
			Subjects: []model.Subject{{Type: model.SubjectDir, Path: "src"}},
		},
		{
			Name:     "broken",
			Subjects: []model.Subject{{Type: model.SubjectDir, Path: "fail"}},
		},
	}

	t.Run("oneshot", func(t *testing.T) {
		t.Parallel()
		env, calls := fakeEnv(t)
		var buf syncBuffer
		out := newCollector()
		supervisor := service.NewSupervisor(service.NewOrchestrator(env), scans, service.NewWriteUploader(&buf)).
			WithObservers(out)

		err := supervisor.Do(t.Context())
		require.Error(t, err)
		require.ErrorContains(t, err, "scan broken: scan is stopped where path: fail, with exit code: 3")

		reports := decodeReports(t, buf.String())
		require.Len(t, reports, 2)
		require.Equal(t, "sources", reports[0].Scan)
		require.True(t, reports[0].Success)
		require.Equal(t, []string{"src"}, reports[0].Data)
		require.Equal(t, "broken", reports[1].Scan)
		require.False(t, reports[1].Success)
		require.Empty(t, reports[1].Data)

		require.Equal(t, []string{"source -p src", "all -p fail"}, readCalls(t, calls))
		require.Contains(t, out.String(), "out source -p src\n")
	})

	t.Run("invalid scan", func(t *testing.T) {
		t.Parallel()
		env, calls := fakeEnv(t)
		var buf syncBuffer
		invalid := []model.Scan{{Name: "compare", Type: "compare"}}
		supervisor := service.NewSupervisor(service.NewOrchestrator(env), invalid, service.NewWriteUploader(&buf))

		err := supervisor.Do(t.Context())
		require.ErrorIs(t, err, model.ErrInvalidRequest)
		require.Empty(t, buf.String())
		require.Empty(t, readCalls(t, calls))
	})

	t.Run("service", func(t *testing.T) {
		t.Parallel()
		env, _ := fakeEnv(t)
		var buf syncBuffer
		supervisor := service.NewSupervisor(service.NewOrchestrator(env), scans[:1], service.NewWriteUploader(&buf)).
			SetOneshot(false)
		ctx, cancel := context.WithCancel(t.Context())
		t.Cleanup(cancel)

		var g sync.WaitGroup
		g.Go(func() {
			err := supervisor.Do(ctx)
			require.NoError(t, err)
		})

		for range 3 {
			supervisor.Start()
			require.Eventually(t, func() bool {
				return strings.Count(buf.String(), "\n") > 0
			}, 10*time.Second, 10*time.Millisecond)
		}
		require.Eventually(t, func() bool {
			return len(decodeReports(t, buf.String())) >= 1
		}, 10*time.Second, 10*time.Millisecond)

		cancel()
		g.Wait()
		for _, r := range decodeReports(t, buf.String()) {
			require.Equal(t, "sources", r.Scan)
			require.True(t, r.Success)
		}
	})
}

func TestSupervisorFromConfig(t *testing.T) {
	t.Parallel()
	env, _ := fakeEnv(t)
	orch := service.NewOrchestrator(env)

	t.Run("manual", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfg := model.Config{
			Service: model.Service{
				Mode: model.ServiceModeManual,
				Dir:  &dir,
			},
		}
		supervisor, err := service.SupervisorFromConfig(t.Context(), cfg, orch)
		require.NoError(t, err)
		require.NoError(t, supervisor.Do(t.Context()))
	})

	t.Run("timer", func(t *testing.T) {
		t.Parallel()
		cfg := model.Config{
			Service: model.Service{
				Mode:     model.ServiceModeTimer,
				Schedule: &model.TimerSchedule{Duration: "PT1H"},
			},
		}
		supervisor, err := service.SupervisorFromConfig(t.Context(), cfg, orch)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		require.NoError(t, supervisor.Do(ctx))
	})

	t.Run("timer without schedule", func(t *testing.T) {
		t.Parallel()
		cfg := model.Config{
			Service: model.Service{Mode: model.ServiceModeTimer},
		}
		_, err := service.SupervisorFromConfig(t.Context(), cfg, orch)
		require.Error(t, err)
	})

	t.Run("invalid repository", func(t *testing.T) {
		t.Parallel()
		cfg := model.Config{
			Service: model.Service{
				Mode:       model.ServiceModeManual,
				Repository: &model.Repository{URL: "localhost/api"},
			},
		}
		_, err := service.SupervisorFromConfig(t.Context(), cfg, orch)
		require.Error(t, err)
	})
}
