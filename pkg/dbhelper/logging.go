package dbhelper

import (
	"github.com/eleven-am/dbhelper/internal/logger"
)

// LoggingMiddleware logs every operation on the db component logger:
// debug on success, warn on failure.
func LoggingMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(op *OperationContext) error {
			err := next(op)

			fields := map[string]interface{}{
				"op_id":       op.ID,
				"operation":   string(op.Operation),
				"duration_ms": op.Duration.Milliseconds(),
				"rows":        op.Rows,
			}
			if op.Statement != nil {
				fields["kind"] = op.Statement.Kind.String()
				fields["statement"] = summarize(op.Statement.Source)
			}

			l := logger.DB().WithFields(fields)
			if err != nil {
				l.WithError(err).Warn("statement failed")
				return err
			}
			l.Debug("statement executed")
			return nil
		}
	}
}
