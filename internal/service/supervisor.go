package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	gocron "github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/CZERTAINLY/fossrun/internal/broadcast"
	"github.com/CZERTAINLY/fossrun/internal/log"
	"github.com/CZERTAINLY/fossrun/internal/model"
	"github.com/CZERTAINLY/fossrun/internal/parser"
)

// Supervisor runs the configured scans through an Orchestrator and hands
// every result to the uploaders.
type Supervisor struct {
	orchestrator *Orchestrator
	scans        []model.Scan
	uploaders    []model.Uploader
	observers    []broadcast.Observer[string]
	oneshot      bool
	scheduler    gocron.Scheduler
	start        chan struct{}
}

// Report is the uploaded form of a scan result.
type Report struct {
	Scan string `json:"scan"`
	model.Result
}

func NewSupervisor(orchestrator *Orchestrator, scans []model.Scan, uploaders ...model.Uploader) *Supervisor {
	return &Supervisor{
		orchestrator: orchestrator,
		scans:        scans,
		uploaders:    uploaders,
		oneshot:      true,
		start:        make(chan struct{}, 1),
	}
}

// SupervisorFromConfig creates a supervisor with uploaders and, in timer
// mode, a scheduler defined by cfg.Service.
func SupervisorFromConfig(ctx context.Context, cfg model.Config, orchestrator *Orchestrator) (*Supervisor, error) {
	uploaders, err := uploaders(ctx, cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("initializing uploaders: %w", err)
	}

	supervisor := NewSupervisor(orchestrator, cfg.Scans, uploaders...)
	if cfg.Service.Mode == model.ServiceModeTimer {
		scheduler, err := newScheduler(ctx, cfg.Service.Schedule, supervisor.Start)
		if err != nil {
			supervisor.closeUploaders(ctx)
			return nil, fmt.Errorf("timer mode failed: %w", err)
		}
		supervisor.scheduler = scheduler
		supervisor.oneshot = false
	}
	return supervisor, nil
}

// SetOneshot makes Do run all scans once and return.
func (s *Supervisor) SetOneshot(oneshot bool) *Supervisor {
	s.oneshot = oneshot
	return s
}

// WithObservers sets observers receiving scanner output of every scan.
func (s *Supervisor) WithObservers(observers ...broadcast.Observer[string]) *Supervisor {
	s.observers = observers
	return s
}

// Start asks the supervisor to run all scans. It never blocks; a request
// made while one is pending is coalesced with it.
func (s *Supervisor) Start() {
	select {
	case s.start <- struct{}{}:
	default:
	}
}

// Do runs the supervisor. In oneshot mode all scans run once and the joined
// errors of failed scans are returned. Otherwise scans run on every Start
// or scheduler tick, errors are only logged and Do returns nil once ctx is
// cancelled.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor", "scans", len(s.scans), "oneshot", s.oneshot)
	defer s.closeUploaders(ctx)

	if s.oneshot {
		return s.runAll(ctx)
	}

	if s.scheduler != nil {
		s.scheduler.Start()
		defer func() {
			if err := s.scheduler.Shutdown(); err != nil {
				slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.start:
			if err := s.runAll(ctx); err != nil {
				slog.ErrorContext(ctx, "scans have failed", "error", err)
			}
		}
	}
}

func (s *Supervisor) runAll(ctx context.Context) error {
	var errs []error
	for _, scan := range s.scans {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.runScan(ctx, scan); err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", scan.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Supervisor) runScan(ctx context.Context, scan model.Scan) error {
	ctx = log.ContextAttrs(ctx, slog.String("scan", scan.Name))
	batch, err := parser.Parse(scan.Request())
	if err != nil {
		return err
	}

	result := s.orchestrator.Execute(ctx, batch, s.observers...)
	raw, err := json.Marshal(Report{Scan: scan.Name, Result: result})
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	uploadErr := s.upload(ctx, append(raw, '\n'))

	if !result.Success {
		return errors.Join(errors.New(result.Message), uploadErr)
	}
	return uploadErr
}

func (s *Supervisor) upload(ctx context.Context, raw []byte) error {
	errs := make([]error, len(s.uploaders))
	var g errgroup.Group
	for idx, u := range s.uploaders {
		g.Go(func() error {
			errs[idx] = u.Upload(ctx, raw)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (s *Supervisor) closeUploaders(ctx context.Context) {
	for _, uploader := range s.uploaders {
		if closer, ok := uploader.(model.UploadCloser); ok {
			if err := closer.Close(); err != nil {
				slog.ErrorContext(ctx, "closing uploader have failed", "error", err)
			}
		}
	}
}

func newScheduler(ctx context.Context, cfgp *model.TimerSchedule, startFunc func()) (gocron.Scheduler, error) {
	if cfgp == nil {
		return nil, errors.New("service.schedule is nil")
	}
	cfg := *cfgp
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("service.schedule: %w", err)
	}

	var job gocron.JobDefinition
	if cfg.Cron != "" {
		job = gocron.CronJob(cfg.Cron, false)
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Cron)
	} else {
		d, err := model.ParseISODuration(cfg.Duration)
		if err != nil {
			return nil, fmt.Errorf("parsing service.schedule.duration: %w", err)
		}
		job = gocron.DurationJob(d)
		slog.DebugContext(ctx, "successfully parsed", "duration", d.String())
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(job, gocron.NewTask(startFunc))
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}

func uploaders(_ context.Context, cfg model.Service) ([]model.Uploader, error) {
	var uploaders []model.Uploader
	if dir := model.Get(cfg.Dir, ""); dir != "" {
		u, err := NewOSRootUploader(dir)
		if err != nil {
			return nil, err
		}
		uploaders = append(uploaders, u)
	}

	if cfg.Repository != nil && model.Get(cfg.Repository.Enabled, true) {
		u, err := NewRepositoryUploader(cfg.Repository.URL)
		if err != nil {
			return nil, err
		}
		uploaders = append(uploaders, u)
	}

	if cfg.ObjectStore != nil && model.Get(cfg.ObjectStore.Enabled, true) {
		u, err := NewObjectStoreUploader(*cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		uploaders = append(uploaders, u)
	}

	if len(uploaders) == 0 {
		uploaders = append(uploaders, NewWriteUploader(os.Stdout))
	}
	return uploaders, nil
}
