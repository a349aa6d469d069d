package dbhelper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eleven-am/dbhelper/internal/logger"
	"github.com/eleven-am/dbhelper/pkg/script"
)

// Helper runs statements, routine names and script references against one
// connection pool, optionally inside a transaction it holds.
type Helper struct {
	db       *sqlx.DB
	dialect  Dialect
	resolver *script.Resolver
	timeout  time.Duration

	mu     sync.Mutex
	tx     *sqlx.Tx
	closed bool

	mwMu       sync.RWMutex
	middleware *middlewareManager
}

// Option configures a Helper
type Option func(*Helper)

// WithResolver sets the script resolver. Helpers sharing a resolver share its caches.
func WithResolver(r *script.Resolver) Option {
	return func(h *Helper) {
		h.resolver = r
	}
}

// WithDialect overrides the dialect derived from the driver name
func WithDialect(d Dialect) Option {
	return func(h *Helper) {
		h.dialect = d
	}
}

// WithMiddleware appends operation middleware
func WithMiddleware(middleware ...Middleware) Option {
	return func(h *Helper) {
		h.middleware.Add(middleware...)
	}
}

// WithQueryTimeout bounds every statement when d is positive
func WithQueryTimeout(d time.Duration) Option {
	return func(h *Helper) {
		h.timeout = d
	}
}

// New wraps db. The Helper owns db from here on and closes it in Close.
func New(db *sqlx.DB, opts ...Option) (*Helper, error) {
	if db == nil {
		return nil, fmt.Errorf("dbhelper: nil database handle")
	}

	h := &Helper{
		db:         db,
		middleware: newMiddlewareManager(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.dialect == nil {
		dialect, err := DialectFor(db.DriverName())
		if err != nil {
			return nil, err
		}
		h.dialect = dialect
	}
	if h.resolver == nil {
		h.resolver = script.NewResolver(nil)
	}

	return h, nil
}

// Open connects using cfg and wraps the pool
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Helper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dbhelper: nil config")
	}
	if _, err := DialectFor(cfg.Driver); err != nil {
		return nil, err
	}

	db, err := cfg.Connect(ctx)
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithQueryTimeout(cfg.QueryTimeout)}, opts...)
	h, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.DB().WithField("driver", cfg.Driver).Debug("connection opened")
	return h, nil
}

// Opener produces a ready Helper
type Opener func(ctx context.Context) (*Helper, error)

// Acquire opens a Helper, runs fn and always closes the Helper again, also
// when fn returns an error or panics.
func Acquire(ctx context.Context, open Opener, fn func(*Helper) error) (err error) {
	h, err := open(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = h.Close()
			panic(p)
		}
		if closeErr := h.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close connection: %w", closeErr)
		}
	}()

	return fn(h)
}

// WithConnection opens a connection from cfg for the duration of fn
func WithConnection(ctx context.Context, cfg *Config, fn func(*Helper) error, opts ...Option) error {
	return Acquire(ctx, func(ctx context.Context) (*Helper, error) {
		return Open(ctx, cfg, opts...)
	}, fn)
}

// Use appends middleware to the chain
func (h *Helper) Use(middleware ...Middleware) {
	h.mwMu.Lock()
	defer h.mwMu.Unlock()
	h.middleware.Add(middleware...)
}

// Resolver returns the script resolver in use
func (h *Helper) Resolver() *script.Resolver {
	return h.resolver
}

// Dialect returns the dialect in use
func (h *Helper) Dialect() Dialect {
	return h.dialect
}

// DB returns the underlying pool
func (h *Helper) DB() *sqlx.DB {
	return h.db
}

// Close rolls back a pending transaction and closes the pool.
// Closing twice is a no-op.
func (h *Helper) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.tx != nil {
		if err := h.tx.Rollback(); err != nil {
			logger.Tx().WithError(err).Warn("failed to roll back pending transaction on close")
		}
		h.tx = nil
	}

	if err := h.db.Close(); err != nil {
		return ParseError(err, "close", "")
	}
	return nil
}

// executor returns the active transaction, or the pool when none is held
func (h *Helper) executor() (DBExecutor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if h.tx != nil {
		return h.tx, nil
	}
	return h.db, nil
}

// run executes fn through the middleware chain
func (h *Helper) run(ctx context.Context, op OperationType, stmt *Statement, fn func(ctx context.Context, exec DBExecutor) (int64, error)) error {
	exec, err := h.executor()
	if err != nil {
		return &Error{Op: string(op), Statement: stmt.Source, Err: err}
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	opCtx := &OperationContext{
		ID:        uuid.NewString(),
		Operation: op,
		Dialect:   h.dialect.Name(),
		Statement: stmt,
		Context:   ctx,
		StartTime: time.Now(),
		Metadata:  make(map[string]interface{}),
	}

	final := func(opCtx *OperationContext) error {
		rows, err := fn(opCtx.Context, exec)
		opCtx.Duration = time.Since(opCtx.StartTime)
		opCtx.Rows = rows
		opCtx.Err = ParseError(err, string(op), stmt.Source)
		return opCtx.Err
	}

	h.mwMu.RLock()
	chain := &middlewareManager{middleware: append([]Middleware(nil), h.middleware.middleware...)}
	h.mwMu.RUnlock()

	return chain.Execute(opCtx, final)
}
