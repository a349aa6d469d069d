package dbhelper

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/dbhelper/pkg/script"
)

type user struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func newTestHelper(t *testing.T, opts ...Option) (*Helper, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	h, err := New(sqlx.NewDb(mockDB, "postgres"), opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		h.mu.Lock()
		closed := h.closed
		h.mu.Unlock()
		if !closed {
			mock.ExpectClose()
			assert.NoError(t, h.Close())
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return h, mock
}

func newTestResolver(t *testing.T, files map[string]string) *script.Resolver {
	t.Helper()
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	reg, err := script.NewRegistry(script.NewFSBundle("test", fsys))
	require.NoError(t, err)
	return script.NewResolver(reg)
}

func TestNew(t *testing.T) {
	t.Run("nil database", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		_, err = New(sqlx.NewDb(mockDB, "sqlite3"))
		assert.ErrorIs(t, err, ErrUnsupportedDriver)
	})

	t.Run("explicit dialect", func(t *testing.T) {
		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		h, err := New(sqlx.NewDb(mockDB, "sqlite3"), WithDialect(PostgresDialect{}))
		require.NoError(t, err)
		assert.Equal(t, "postgres", h.Dialect().Name())
		assert.NotNil(t, h.Resolver())
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("statement text", func(t *testing.T) {
		h, mock := newTestHelper(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users WHERE active = $1")).
			WithArgs(true).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada").AddRow(2, "grace"))

		users, err := Query[user](ctx, h, "SELECT id, name FROM users WHERE active = $1", true)
		require.NoError(t, err)
		assert.Equal(t, []user{{ID: 1, Name: "ada"}, {ID: 2, Name: "grace"}}, users)
	})

	t.Run("routine name", func(t *testing.T) {
		h, mock := newTestHelper(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM get_users($1)")).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(5, "linus"))

		users, err := Query[user](ctx, h, "get_users", 5)
		require.NoError(t, err)
		assert.Equal(t, []user{{ID: 5, Name: "linus"}}, users)
	})

	t.Run("bracketed routine name", func(t *testing.T) {
		h, mock := newTestHelper(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "dbo"."GetUsers"()`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

		users, err := Query[user](ctx, h, "[dbo].[GetUsers]")
		require.NoError(t, err)
		assert.Empty(t, users)
		assert.NotNil(t, users)
	})

	t.Run("scalar rows", func(t *testing.T) {
		h, mock := newTestHelper(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(4)))

		ids, err := Query[int64](ctx, h, "SELECT id FROM users")
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 4}, ids)
	})
}

func TestQueryScriptReference(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver(t, map[string]string{
		"queries/users/Active.sql": "SELECT id, name FROM users WHERE active = $1\n",
		"procs/Daily.sql":          "  [reporting].[daily_totals]\n",
	})
	h, mock := newTestHelper(t, WithResolver(resolver))

	t.Run("resolved text", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users WHERE active = $1")).
				WithArgs(true).
				WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada"))

			users, err := Query[user](ctx, h, "users/Active.sql", true)
			require.NoError(t, err)
			assert.Len(t, users, 1)
		}
		assert.Equal(t, 1, resolver.Len())
	})

	t.Run("script containing a routine name", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`CALL "reporting"."daily_totals"()`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := h.Execute(ctx, "Daily.sql")
		require.NoError(t, err)
	})

	t.Run("missing script never reaches the database", func(t *testing.T) {
		_, err := Query[user](ctx, h, "Missing.sql")
		require.Error(t, err)
		assert.ErrorIs(t, err, script.ErrScriptNotFound)
	})
}

func TestQueryFirst(t *testing.T) {
	ctx := context.Background()
	h, mock := newTestHelper(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users ORDER BY id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada").AddRow(2, "grace"))

	first, err := QueryFirst[user](ctx, h, "SELECT id, name FROM users ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, user{ID: 1, Name: "ada"}, first)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users WHERE id = $1")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err = QueryFirst[user](ctx, h, "SELECT id, name FROM users WHERE id = $1", 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuerySingle(t *testing.T) {
	ctx := context.Background()
	const stmt = "SELECT id, name FROM users WHERE name = $1"

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		want    user
		wantErr error
	}{
		{
			name: "one row",
			rows: sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada"),
			want: user{ID: 1, Name: "ada"},
		},
		{
			name:    "no rows",
			rows:    sqlmock.NewRows([]string{"id", "name"}),
			wantErr: ErrNotFound,
		},
		{
			name:    "two rows",
			rows:    sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada").AddRow(2, "ada"),
			wantErr: ErrMultipleRows,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock := newTestHelper(t)
			mock.ExpectQuery(regexp.QuoteMeta(stmt)).WithArgs("ada").WillReturnRows(tt.rows)

			got, err := QuerySingle[user](ctx, h, stmt, "ada")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, user{}, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScalar(t *testing.T) {
	ctx := context.Background()
	h, mock := newTestHelper(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*), max(id) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).AddRow(int64(42), int64(7)))

	count, err := Scalar[int64](ctx, h, "SELECT count(*), max(id) FROM users")
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM current_tenant()")).
		WillReturnRows(sqlmock.NewRows([]string{"current_tenant"}).AddRow("acme"))

	tenant, err := Scalar[string](ctx, h, "current_tenant")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM users WHERE id = $1")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err = Scalar[string](ctx, h, "SELECT name FROM users WHERE id = $1", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	h, mock := newTestHelper(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE expires_at < now()")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := h.Execute(ctx, "DELETE FROM sessions WHERE expires_at < now()")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	mock.ExpectExec(regexp.QuoteMeta("CALL archive_orders($1, $2)")).
		WithArgs("2024-01-01", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = h.Execute(ctx, "archive_orders", "2024-01-01", true)
	require.NoError(t, err)
}

func TestNamedArguments(t *testing.T) {
	ctx := context.Background()

	t.Run("map on statement text", func(t *testing.T) {
		h, mock := newTestHelper(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = $1 WHERE id = $2")).
			WithArgs("ada", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := h.Execute(ctx, "UPDATE users SET name = :name WHERE id = :id",
			Named(map[string]interface{}{"id": 1, "name": "ada"}))
		require.NoError(t, err)
	})

	t.Run("struct on statement text", func(t *testing.T) {
		h, mock := newTestHelper(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, name) VALUES ($1, $2)")).
			WithArgs(int64(2), "grace").
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := h.Execute(ctx, "INSERT INTO users (id, name) VALUES (:id, :name)",
			Named(user{ID: 2, Name: "grace"}))
		require.NoError(t, err)
	})

	t.Run("map on routine", func(t *testing.T) {
		h, mock := newTestHelper(t)
		mock.ExpectExec(regexp.QuoteMeta(`CALL upsert_user("id" => $1, "name" => $2)`)).
			WithArgs(3, "linus").
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := h.Execute(ctx, "upsert_user", Named(map[string]interface{}{"name": "linus", "id": 3}))
		require.NoError(t, err)
	})

	t.Run("struct on routine", func(t *testing.T) {
		h, _ := newTestHelper(t)
		_, err := h.Execute(ctx, "upsert_user", Named(user{ID: 3}))
		assert.ErrorIs(t, err, ErrNamedRoutineArgs)
	})
}

func TestQueryMaps(t *testing.T) {
	ctx := context.Background()
	h, mock := newTestHelper(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), []byte("ada")))

	rows, err := h.QueryMaps(ctx, "SELECT id, name FROM users")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "ada", rows[0]["name"])
}

func TestDriverErrors(t *testing.T) {
	ctx := context.Background()
	h, mock := newTestHelper(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email) VALUES ($1)")).
		WithArgs("a@example.com").
		WillReturnError(&pq.Error{
			Code:       "23505",
			Message:    "duplicate key value violates unique constraint \"users_email_key\"",
			Constraint: "users_email_key",
		})

	_, err := h.Execute(ctx, "INSERT INTO users (email) VALUES ($1)", "a@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.True(t, IsConstraintError(err))
	assert.Equal(t, "users_email_key", GetConstraintName(err))

	var helperErr *Error
	require.True(t, errors.As(err, &helperErr))
	assert.Equal(t, "execute", helperErr.Op)
	assert.Equal(t, "INSERT INTO users (email) VALUES ($1)", helperErr.Statement)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	h, mock := newTestHelper(t)

	mock.ExpectClose()
	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "closing twice is a no-op")

	_, err := Query[user](ctx, h, "SELECT 1")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = h.Execute(ctx, "DELETE FROM users")
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, h.Begin(ctx, nil), ErrClosed)
}
