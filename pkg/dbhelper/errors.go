package dbhelper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/eleven-am/dbhelper/pkg/script"
)

// Common errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrMultipleRows      = errors.New("more than one row returned")
	ErrNestedTransaction = errors.New("nested transactions are not supported")
	ErrNoTransaction     = errors.New("no transaction in progress")
	ErrClosed            = errors.New("helper is closed")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrNamedRoutineArgs  = errors.New("named arguments for a routine must be a map[string]interface{}")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrForeignKey        = errors.New("foreign key violation")
	ErrCheckConstraint   = errors.New("check constraint violation")
	ErrNotNull           = errors.New("not null constraint violation")
	ErrConnectionFailed  = errors.New("database connection failed")
	ErrTimeout           = errors.New("operation timeout")
	ErrCanceled          = errors.New("operation canceled")
)

// Error provides detailed error information
type Error struct {
	Op         string // Operation that failed
	Statement  string // Statement as supplied by the caller
	Err        error  // Underlying error
	Constraint string // Constraint name (if applicable)
	Column     string // Column name (if applicable)
	Retryable  bool   // Whether the operation can be retried
}

func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("dbhelper: %s", e.Op))

	if e.Statement != "" {
		parts = append(parts, fmt.Sprintf("statement=%s", summarize(e.Statement)))
	}

	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column=%s", e.Column))
	}

	if e.Constraint != "" {
		parts = append(parts, fmt.Sprintf("constraint=%s", e.Constraint))
	}

	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for Error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return errors.Is(e.Err, target)
	}

	if t.Op != "" && e.Op == t.Op {
		return true
	}

	return errors.Is(e.Err, t.Err)
}

// ParseError converts driver errors into dbhelper errors. Script resolution
// errors and errors that are already *Error are returned unchanged.
func ParseError(err error, op, statement string) error {
	if err == nil {
		return nil
	}

	var helperErr *Error
	if errors.As(err, &helperErr) {
		return err
	}
	var scriptErr *script.Error
	if errors.As(err, &scriptErr) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Op: op, Statement: statement, Err: ErrNotFound}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Statement: statement, Err: ErrTimeout, Retryable: true}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Op: op, Statement: statement, Err: ErrCanceled}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if parsed := fromSQLState(string(pqErr.Code), pqErr.Constraint, pqErr.Column, op, statement); parsed != nil {
			if parsed.Constraint == "" {
				parsed.Constraint = extractConstraintName(pqErr.Message)
			}
			if parsed.Column == "" {
				parsed.Column = extractColumnName(pqErr.Message)
			}
			return parsed
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if parsed := fromSQLState(pgErr.Code, pgErr.ConstraintName, pgErr.ColumnName, op, statement); parsed != nil {
			if parsed.Column == "" {
				parsed.Column = extractColumnName(pgErr.Message)
			}
			return parsed
		}
	}

	errStr := err.Error()

	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return &Error{Op: op, Statement: statement, Err: ErrDuplicateKey, Constraint: extractConstraintName(errStr)}
	}

	if strings.Contains(errStr, "violates foreign key constraint") {
		return &Error{Op: op, Statement: statement, Err: ErrForeignKey, Constraint: extractConstraintName(errStr)}
	}

	if strings.Contains(errStr, "violates not-null constraint") {
		return &Error{Op: op, Statement: statement, Err: ErrNotNull, Column: extractColumnName(errStr)}
	}

	if strings.Contains(errStr, "violates check constraint") {
		return &Error{Op: op, Statement: statement, Err: ErrCheckConstraint, Constraint: extractConstraintName(errStr)}
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "broken pipe") {
		return &Error{Op: op, Statement: statement, Err: fmt.Errorf("%w: %w", ErrConnectionFailed, err), Retryable: true}
	}

	return &Error{Op: op, Statement: statement, Err: err}
}

// SQLSTATE class 23 codes
func fromSQLState(code, constraint, column, op, statement string) *Error {
	var target error
	switch code {
	case "23505":
		target = ErrDuplicateKey
	case "23503":
		target = ErrForeignKey
	case "23502":
		target = ErrNotNull
	case "23514":
		target = ErrCheckConstraint
	case "57014":
		return &Error{Op: op, Statement: statement, Err: ErrCanceled}
	default:
		return nil
	}
	return &Error{Op: op, Statement: statement, Err: target, Constraint: constraint, Column: column}
}

// Helper functions to extract information from error messages

func extractConstraintName(errStr string) string {
	idx := strings.Index(errStr, "constraint \"")
	if idx == -1 {
		return ""
	}
	start := idx + len("constraint \"")
	end := strings.Index(errStr[start:], "\"")
	if end == -1 {
		return ""
	}
	return errStr[start : start+end]
}

func extractColumnName(errStr string) string {
	columnIdx := strings.Index(errStr, "column \"")
	if columnIdx == -1 {
		return ""
	}
	start := columnIdx + 8
	end := strings.Index(errStr[start:], "\"")
	if end == -1 {
		return ""
	}
	return errStr[start : start+end]
}

func summarize(statement string) string {
	statement = strings.Join(strings.Fields(statement), " ")
	if len(statement) > 80 {
		return statement[:77] + "..."
	}
	return statement
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var helperErr *Error
	if errors.As(err, &helperErr) {
		return helperErr.Retryable
	}
	return false
}

// IsConstraintError checks if an error is a constraint violation
func IsConstraintError(err error) bool {
	return errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrForeignKey) ||
		errors.Is(err, ErrCheckConstraint) ||
		errors.Is(err, ErrNotNull)
}

// GetConstraintName extracts the constraint name from an error
func GetConstraintName(err error) string {
	var helperErr *Error
	if errors.As(err, &helperErr) {
		return helperErr.Constraint
	}
	return ""
}

// GetColumnName extracts the column name from an error
func GetColumnName(err error) string {
	var helperErr *Error
	if errors.As(err, &helperErr) {
		return helperErr.Column
	}
	return ""
}
