package dbhelper

import (
	"context"
	"database/sql"
	"fmt"
)

// Query runs statement and maps every row to T. T may be a struct with db
// tags or a scalar type for single-column results.
func Query[T any](ctx context.Context, h *Helper, statement string, args ...interface{}) ([]T, error) {
	stmt, err := h.Prepare(statement, ModeQuery, args...)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0)
	err = h.run(ctx, OpQuery, stmt, func(ctx context.Context, exec DBExecutor) (int64, error) {
		if err := exec.SelectContext(ctx, &out, stmt.Query, stmt.Args...); err != nil {
			return 0, err
		}
		return int64(len(out)), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryFirst returns the first row. ErrNotFound when there is none.
func QueryFirst[T any](ctx context.Context, h *Helper, statement string, args ...interface{}) (T, error) {
	var out T

	stmt, err := h.Prepare(statement, ModeQuery, args...)
	if err != nil {
		return out, err
	}

	err = h.run(ctx, OpQueryFirst, stmt, func(ctx context.Context, exec DBExecutor) (int64, error) {
		if err := exec.GetContext(ctx, &out, stmt.Query, stmt.Args...); err != nil {
			return 0, err
		}
		return 1, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// QuerySingle returns the only row. ErrNotFound when there is none and
// ErrMultipleRows when there are more.
func QuerySingle[T any](ctx context.Context, h *Helper, statement string, args ...interface{}) (T, error) {
	var zero T

	stmt, err := h.Prepare(statement, ModeQuery, args...)
	if err != nil {
		return zero, err
	}

	var rows []T
	err = h.run(ctx, OpQuerySingle, stmt, func(ctx context.Context, exec DBExecutor) (int64, error) {
		if err := exec.SelectContext(ctx, &rows, stmt.Query, stmt.Args...); err != nil {
			return 0, err
		}
		switch len(rows) {
		case 0:
			return 0, sql.ErrNoRows
		case 1:
			return 1, nil
		default:
			return int64(len(rows)), ErrMultipleRows
		}
	})
	if err != nil {
		return zero, err
	}
	return rows[0], nil
}

// Scalar returns the first column of the first row. Remaining columns and
// rows are ignored. ErrNotFound when the statement returns no rows.
func Scalar[T any](ctx context.Context, h *Helper, statement string, args ...interface{}) (T, error) {
	var zero T

	stmt, err := h.Prepare(statement, ModeQuery, args...)
	if err != nil {
		return zero, err
	}

	var out T
	err = h.run(ctx, OpScalar, stmt, func(ctx context.Context, exec DBExecutor) (int64, error) {
		rows, err := exec.QueryxContext(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, sql.ErrNoRows
		}

		columns, err := rows.Columns()
		if err != nil {
			return 0, err
		}
		if len(columns) == 0 {
			return 0, fmt.Errorf("statement returned no columns")
		}

		dest := make([]interface{}, len(columns))
		dest[0] = &out
		for i := 1; i < len(dest); i++ {
			dest[i] = new(interface{})
		}
		if err := rows.Scan(dest...); err != nil {
			return 0, err
		}
		return 1, nil
	})
	if err != nil {
		return zero, err
	}
	return out, nil
}

// Execute runs statement for its side effects and returns the rows affected
func (h *Helper) Execute(ctx context.Context, statement string, args ...interface{}) (int64, error) {
	stmt, err := h.Prepare(statement, ModeExec, args...)
	if err != nil {
		return 0, err
	}

	var affected int64
	err = h.run(ctx, OpExecute, stmt, func(ctx context.Context, exec DBExecutor) (int64, error) {
		result, err := exec.ExecContext(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return 0, err
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return 0, err
		}
		return affected, nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// QueryMaps runs statement and returns each row as a column-name map.
// []byte values are converted to strings.
func (h *Helper) QueryMaps(ctx context.Context, statement string, args ...interface{}) ([]map[string]interface{}, error) {
	stmt, err := h.Prepare(statement, ModeQuery, args...)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0)
	err = h.run(ctx, OpQuery, stmt, func(ctx context.Context, exec DBExecutor) (int64, error) {
		rows, err := exec.QueryxContext(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			row := make(map[string]interface{})
			if err := rows.MapScan(row); err != nil {
				return int64(len(out)), err
			}
			for k, v := range row {
				if b, ok := v.([]byte); ok {
					row[k] = string(b)
				}
			}
			out = append(out, row)
		}
		return int64(len(out)), rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
