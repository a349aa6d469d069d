package dbhelper

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestMiddlewareOrder(t *testing.T) {
	var calls []string
	record := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(op *OperationContext) error {
				calls = append(calls, name+":before")
				err := next(op)
				calls = append(calls, name+":after")
				return err
			}
		}
	}

	h, mock := newTestHelper(t, WithMiddleware(record("first")))
	h.Use(record("second"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions")).
		WillReturnResult(sqlmock.NewResult(0, 4))

	_, err := h.Execute(context.Background(), "DELETE FROM sessions")
	require.NoError(t, err)
	assert.Equal(t, []string{"first:before", "second:before", "second:after", "first:after"}, calls)
}

func TestOperationContext(t *testing.T) {
	ctx := context.Background()

	var seen []*OperationContext
	capture := func(next Handler) Handler {
		return func(op *OperationContext) error {
			op.Metadata["tenant"] = "acme"
			err := next(op)
			seen = append(seen, op)
			return err
		}
	}

	h, mock := newTestHelper(t, WithMiddleware(capture))

	mock.ExpectExec(regexp.QuoteMeta("CALL archive_orders($1)")).
		WithArgs(30).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users")).
		WillReturnError(errors.New("ERROR: relation \"users\" does not exist"))

	rows, err := h.Execute(ctx, "archive_orders", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(12), rows)

	_, err = Query[user](ctx, h, "SELECT id, name FROM users")
	require.Error(t, err)

	require.Len(t, seen, 2)

	exec := seen[0]
	_, parseErr := uuid.Parse(exec.ID)
	assert.NoError(t, parseErr)
	assert.Equal(t, OpExecute, exec.Operation)
	assert.Equal(t, "postgres", exec.Dialect)
	assert.Equal(t, "archive_orders", exec.Statement.Source)
	assert.Equal(t, "CALL archive_orders($1)", exec.Statement.Query)
	assert.Equal(t, int64(12), exec.Rows)
	assert.NoError(t, exec.Err)
	assert.False(t, exec.StartTime.IsZero())
	assert.Equal(t, "acme", exec.Metadata["tenant"])

	query := seen[1]
	assert.Equal(t, OpQuery, query.Operation)
	assert.NotEqual(t, exec.ID, query.ID)
	assert.Equal(t, err, query.Err)
	var helperErr *Error
	assert.ErrorAs(t, query.Err, &helperErr)
}

func TestMiddlewareCanShortCircuit(t *testing.T) {
	denied := errors.New("read only")
	readOnly := func(next Handler) Handler {
		return func(op *OperationContext) error {
			if op.Operation == OpExecute {
				return denied
			}
			return next(op)
		}
	}

	h, _ := newTestHelper(t, WithMiddleware(readOnly))

	_, err := h.Execute(context.Background(), "DELETE FROM users")
	assert.ErrorIs(t, err, denied)
}

func TestTracingMiddleware(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	h, mock := newTestHelper(t, WithMiddleware(TracingMiddleware(provider.Tracer("test"))))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = $1")).
		WithArgs("x").
		WillReturnError(errors.New("ERROR: null value in column \"name\" violates not-null constraint"))

	count, err := Scalar[int64](ctx, h, "SELECT count(*) FROM users")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	_, err = h.Execute(ctx, "UPDATE users SET name = $1", "x")
	require.ErrorIs(t, err, ErrNotNull)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	scalar := spans[0]
	assert.Equal(t, "dbhelper.scalar", scalar.Name())
	assert.Equal(t, trace.SpanKindClient, scalar.SpanKind())
	assert.Contains(t, scalar.Attributes(), attribute.String("db.system", "postgres"))
	assert.Contains(t, scalar.Attributes(), attribute.String("db.statement", "SELECT count(*) FROM users"))
	assert.Contains(t, scalar.Attributes(), attribute.String("dbhelper.statement.kind", "text"))
	assert.Contains(t, scalar.Attributes(), attribute.Int64("dbhelper.rows", 1))
	assert.Equal(t, codes.Unset, scalar.Status().Code)

	failed := spans[1]
	assert.Equal(t, "dbhelper.execute", failed.Name())
	assert.Equal(t, codes.Error, failed.Status().Code)
	require.Len(t, failed.Events(), 1)
	assert.Equal(t, "exception", failed.Events()[0].Name)
}

func TestLoggingMiddlewarePassesErrorsThrough(t *testing.T) {
	h, mock := newTestHelper(t, WithMiddleware(LoggingMiddleware()))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email) VALUES ($1)")).
		WithArgs("a@b.c").
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint \"users_email_key\""))

	_, err := h.Execute(context.Background(), "INSERT INTO users (email) VALUES ($1)", "a@b.c")
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, "users_email_key", GetConstraintName(err))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	rows, err := h.Execute(context.Background(), "DELETE FROM users")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
}
