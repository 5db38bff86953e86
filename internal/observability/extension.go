package observability

import (
	"context"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/MosinFAM/graphql-channels"

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	_ graphql.HandlerExtension    = (*Extension)(nil)
	_ graphql.ResponseInterceptor = (*Extension)(nil)
)

// Extension - расширение gqlgen: span и метрики на каждый ответ.
// Для подписок ответ - одно событие.
type Extension struct {
	metrics *Metrics
	tracer  trace.Tracer
}

// NewExtension создает расширение. Если provider nil, используется глобальный провайдер.
func NewExtension(metrics *Metrics, provider trace.TracerProvider) *Extension {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Extension{
		metrics: metrics,
		tracer:  provider.Tracer(instrumentationName),
	}
}

func (e *Extension) ExtensionName() string {
	return "Observability"
}

func (e *Extension) Validate(graphql.ExecutableSchema) error {
	return nil
}

func (e *Extension) InterceptResponse(ctx context.Context, next graphql.ResponseHandler) *graphql.Response {
	if !graphql.HasOperationContext(ctx) {
		return next(ctx)
	}

	opCtx := graphql.GetOperationContext(ctx)
	operation := "unknown"
	if opCtx.Operation != nil {
		operation = string(opCtx.Operation.Operation)
	}

	ctx, span := e.tracer.Start(ctx, "graphql."+operation,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	span.SetAttributes(attribute.String("graphql.operation.type", operation))
	if opCtx.OperationName != "" {
		span.SetAttributes(attribute.String("graphql.operation.name", opCtx.OperationName))
	}

	start := time.Now()
	resp := next(ctx)
	if resp == nil {
		// поток подписки завершен
		return nil
	}

	outcome := OutcomeOK
	if len(resp.Errors) > 0 {
		outcome = OutcomeError
		span.SetStatus(codes.Error, resp.Errors.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if e.metrics != nil {
		e.metrics.RecordOperation(operation, outcome, time.Since(start))
	}
	return resp
}
