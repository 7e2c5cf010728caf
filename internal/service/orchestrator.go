package service

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/CZERTAINLY/fossrun/internal/broadcast"
	"github.com/CZERTAINLY/fossrun/internal/log"
	"github.com/CZERTAINLY/fossrun/internal/model"
	"github.com/CZERTAINLY/fossrun/internal/venv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const SuccessMessage = "Fosslight Scanner finished successfully"

// Orchestrator runs batches of scanner invocations inside a virtual
// environment. Invocations of a batch run one after another and the batch
// stops on the first failure. Output of the scanner is published to the
// subscribed observers.
//
// Observers subscribed via Subscribe receive output of every batch, so
// callers running overlapping batches should pass observers to Execute
// instead, which scopes them to that call.
type Orchestrator struct {
	env     venv.Env
	runner  *Runner
	logs    *broadcast.Broadcast[string]
	timeout time.Duration
	tracer  trace.Tracer
}

func NewOrchestrator(env venv.Env) *Orchestrator {
	return &Orchestrator{
		env:    env,
		runner: NewRunner(),
		logs:   broadcast.New[string](),
		tracer: otel.Tracer(tracerName),
	}
}

// WithTracerProvider records batch and invocation spans with tp instead of
// the global provider.
func (o *Orchestrator) WithTracerProvider(tp trace.TracerProvider) *Orchestrator {
	o.tracer = tp.Tracer(tracerName)
	return o
}

// WithTimeout bounds every invocation, zero means no limit.
func (o *Orchestrator) WithTimeout(d time.Duration) *Orchestrator {
	o.timeout = d
	return o
}

func (o *Orchestrator) Env() venv.Env {
	return o.env
}

func (o *Orchestrator) Subscribe(obs broadcast.Observer[string]) *broadcast.Subscription[string] {
	return o.logs.Subscribe(obs)
}

func (o *Orchestrator) Unsubscribe(s *broadcast.Subscription[string]) {
	o.logs.Unsubscribe(s)
}

// ForceQuit kills the currently running invocation if any. The batch
// running it then fails.
func (o *Orchestrator) ForceQuit(ctx context.Context) {
	o.runner.ForceQuit(ctx)
}

// Execute runs all invocations of batch in order. observers receive the
// output of this call only. Result.Data lists paths of invocations which
// succeeded before a failure.
func (o *Orchestrator) Execute(ctx context.Context, batch model.Batch, observers ...broadcast.Observer[string]) (result model.Result) {
	runID := uuid.NewString()
	ctx = log.ContextAttrs(ctx, slog.String("run_id", runID))
	ctx, span := startBatchSpan(ctx, o.tracer, runID, batch)

	release := o.logs.Scope(observers...)
	defer release()

	result = model.Result{
		RunID:   runID,
		Data:    []string{},
		Started: time.Now().UTC(),
	}
	defer func() {
		result.Stopped = time.Now().UTC()
		endBatchSpan(span, result)
	}()

	if !o.env.Ready() {
		slog.ErrorContext(ctx, "environment is not ready: running anyway", "venv", o.env.Dir)
	}

	invocations := Expand(batch)
	slog.InfoContext(ctx, "batch started", "jobs", len(invocations))
	for idx, inv := range invocations {
		if err := ctx.Err(); err != nil {
			result.Message = err.Error()
			return result
		}
		path, err := o.run(ctx, idx, inv)
		if err != nil {
			slog.ErrorContext(ctx, "batch failed", "job", idx, "error", err)
			result.Message = err.Error()
			return result
		}
		result.Data = append(result.Data, path)
	}

	slog.InfoContext(ctx, "batch finished", "jobs", len(invocations))
	result.Success = true
	result.Message = SuccessMessage
	return result
}

func (o *Orchestrator) run(ctx context.Context, idx int, inv model.Invocation) (string, error) {
	ctx = log.ContextAttrs(ctx, slog.Int("job", idx))
	ctx, span := startInvocationSpan(ctx, o.tracer, idx, inv)
	proto := Command{
		Path:    o.env.Tool,
		Env:     o.env.Environ(os.Environ()),
		Timeout: o.timeout,
	}
	path, err := o.runner.Run(ctx, proto, inv, o.logs.Publish)
	endInvocationSpan(span, err)
	return path, err
}

// Expand turns a batch into invocations. A comparison batch yields a single
// invocation over all paths. Otherwise every path and then every workspace
// gets its own invocation. NoSubject as the first path becomes the current
// directory, elsewhere it is passed through as is.
func Expand(batch model.Batch) []model.Invocation {
	if batch.IsCompare() {
		return []model.Invocation{{
			Mode:     slices.Clone(batch.Mode),
			Selector: model.SelectorPath,
			Subject:  slices.Clone(batch.Paths),
			Flags:    slices.Clone(batch.Flags),
		}}
	}

	jobs := len(batch.Paths) + len(batch.Workspaces)
	ret := make([]model.Invocation, 0, jobs)
	for i := range jobs {
		inv := model.Invocation{
			Mode:  slices.Clone(batch.Mode),
			Flags: slices.Clone(batch.Flags),
		}
		if i < len(batch.Paths) {
			path := batch.Paths[i]
			if i == 0 && path == model.NoSubject {
				path = "."
			}
			inv.Selector = model.SelectorPath
			inv.Subject = []string{path}
		} else {
			inv.Selector = model.SelectorWorkspace
			inv.Subject = []string{batch.Workspaces[i-len(batch.Paths)]}
		}
		ret = append(ret, inv)
	}
	return ret
}
