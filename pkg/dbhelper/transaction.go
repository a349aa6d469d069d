package dbhelper

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eleven-am/dbhelper/internal/logger"
)

// TransactionOptions configures transaction behavior
type TransactionOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// DefaultTransactionOptions returns sensible defaults
func DefaultTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		Isolation: sql.LevelDefault,
		ReadOnly:  false,
	}
}

// ToTxOptions converts TransactionOptions to sql.TxOptions
func (o *TransactionOptions) ToTxOptions() *sql.TxOptions {
	if o == nil {
		return nil
	}
	return &sql.TxOptions{
		Isolation: o.Isolation,
		ReadOnly:  o.ReadOnly,
	}
}

// Begin starts a transaction that every following statement runs in until
// Commit or Rollback. A Helper holds at most one transaction.
func (h *Helper) Begin(ctx context.Context, opts *TransactionOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return &Error{Op: "begin", Err: ErrClosed}
	}
	if h.tx != nil {
		return &Error{Op: "begin", Err: ErrNestedTransaction}
	}

	tx, err := h.db.BeginTxx(ctx, opts.ToTxOptions())
	if err != nil {
		return ParseError(fmt.Errorf("failed to begin transaction: %w", err), "begin", "")
	}
	h.tx = tx
	logger.Tx().Debug("transaction started")
	return nil
}

// Commit commits the held transaction
func (h *Helper) Commit() error {
	tx, err := h.takeTx("commit")
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return ParseError(fmt.Errorf("failed to commit transaction: %w", err), "commit", "")
	}
	logger.Tx().Debug("transaction committed")
	return nil
}

// Rollback aborts the held transaction
func (h *Helper) Rollback() error {
	tx, err := h.takeTx("rollback")
	if err != nil {
		return err
	}
	if err := tx.Rollback(); err != nil {
		return ParseError(fmt.Errorf("failed to rollback transaction: %w", err), "rollback", "")
	}
	logger.Tx().Debug("transaction rolled back")
	return nil
}

// InTransaction reports whether a transaction is held
func (h *Helper) InTransaction() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tx != nil
}

func (h *Helper) takeTx(op string) (txCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, &Error{Op: op, Err: ErrClosed}
	}
	if h.tx == nil {
		return nil, &Error{Op: op, Err: ErrNoTransaction}
	}
	tx := h.tx
	h.tx = nil
	return tx, nil
}

type txCloser interface {
	Commit() error
	Rollback() error
}

// WithTransaction runs fn inside a new transaction. The transaction is rolled
// back when fn returns an error or panics and committed otherwise.
func (h *Helper) WithTransaction(ctx context.Context, fn func(*Helper) error) error {
	return h.WithTransactionOptions(ctx, nil, fn)
}

// WithTransactionOptions executes a function within a transaction with specific options
func (h *Helper) WithTransactionOptions(ctx context.Context, opts *TransactionOptions, fn func(*Helper) error) error {
	if err := h.Begin(ctx, opts); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = h.Rollback()
			panic(p)
		}
	}()

	if err := fn(h); err != nil {
		if rbErr := h.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	return h.Commit()
}
