package dbhelper

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/eleven-am/dbhelper"

// TracingMiddleware records one client span per operation. A nil tracer
// uses the global tracer provider.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return func(next Handler) Handler {
		return func(op *OperationContext) error {
			attrs := []attribute.KeyValue{
				attribute.String("db.system", op.Dialect),
				attribute.String("dbhelper.operation.id", op.ID),
			}
			if op.Statement != nil {
				attrs = append(attrs,
					attribute.String("db.statement", op.Statement.Query),
					attribute.String("dbhelper.statement.kind", op.Statement.Kind.String()),
					attribute.String("dbhelper.statement.source", summarize(op.Statement.Source)),
				)
			}

			ctx, span := tracer.Start(op.Context, "dbhelper."+string(op.Operation),
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			op.Context = ctx
			err := next(op)

			span.SetAttributes(attribute.Int64("dbhelper.rows", op.Rows))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}
