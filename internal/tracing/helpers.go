package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DBOperation labels the kind of database work a span covers.
type DBOperation string

const (
	DBOperationQuery  DBOperation = "query"
	DBOperationInsert DBOperation = "insert"
	DBOperationUpdate DBOperation = "update"
	DBOperationDelete DBOperation = "delete"
	DBOperationExec   DBOperation = "exec"
)

// StartDBSpan opens a client span for a database operation. The returned
// function ends the span, recording err when non-nil:
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "places", tracing.DBOperationQuery)
//	defer func() { endSpan(err) }()
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, func(error)) {
	tracer := otel.Tracer("karib/db")

	spanName := string(operation)
	if table != "" {
		spanName = spanName + " " + table
	}

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", string(operation)),
		),
	)

	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSpan opens a span for an internal operation, e.g. ranking a result
// set. Same end-function contract as StartDBSpan.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("karib")

	ctx, span := tracer.Start(ctx, name)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
