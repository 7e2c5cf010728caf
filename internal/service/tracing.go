package service

import (
	"context"

	"github.com/CZERTAINLY/fossrun/internal/model"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/CZERTAINLY/fossrun/internal/service"

func startBatchSpan(ctx context.Context, tracer trace.Tracer, runID string, batch model.Batch) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "batch.run")
	span.SetAttributes(
		attribute.String("batch.run_id", runID),
		attribute.StringSlice("batch.mode", batch.Mode),
		attribute.Int("batch.paths", len(batch.Paths)),
		attribute.Int("batch.workspaces", len(batch.Workspaces)),
	)
	return ctx, span
}

func endBatchSpan(span trace.Span, result model.Result) {
	span.SetAttributes(
		attribute.Bool("batch.success", result.Success),
		attribute.Int("batch.completed", len(result.Data)),
	)
	if !result.Success {
		span.SetStatus(codes.Error, result.Message)
	}
	span.End()
}

func startInvocationSpan(ctx context.Context, tracer trace.Tracer, idx int, inv model.Invocation) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "invocation.run")
	span.SetAttributes(
		attribute.Int("invocation.index", idx),
		attribute.String("invocation.selector", inv.Selector),
		attribute.String("invocation.path", inv.Path()),
	)
	return ctx, span
}

func endInvocationSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
