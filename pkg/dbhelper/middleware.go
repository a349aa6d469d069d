package dbhelper

import (
	"context"
	"time"
)

// OperationType identifies a Helper operation
type OperationType string

const (
	OpQuery       OperationType = "query"
	OpQueryFirst  OperationType = "query_first"
	OpQuerySingle OperationType = "query_single"
	OpScalar      OperationType = "scalar"
	OpExecute     OperationType = "execute"
)

// OperationContext contains information passed to middleware
type OperationContext struct {
	ID        string
	Operation OperationType
	Dialect   string
	Statement *Statement
	// Context is handed to the driver; middleware may replace it before calling next
	Context   context.Context
	StartTime time.Time
	Duration  time.Duration
	// Rows is the number of rows returned, or affected for OpExecute
	Rows     int64
	Err      error
	Metadata map[string]interface{}
}

// Handler runs one operation
type Handler func(op *OperationContext) error

// Middleware wraps every statement the Helper runs
type Middleware func(next Handler) Handler

// middlewareManager manages operation middleware
type middlewareManager struct {
	middleware []Middleware
}

func newMiddlewareManager() *middlewareManager {
	return &middlewareManager{
		middleware: make([]Middleware, 0),
	}
}

func (mm *middlewareManager) Add(middleware ...Middleware) {
	mm.middleware = append(mm.middleware, middleware...)
}

// Execute runs final through the chain; the first registered middleware is outermost
func (mm *middlewareManager) Execute(op *OperationContext, final Handler) error {
	handler := final

	for i := len(mm.middleware) - 1; i >= 0; i-- {
		handler = mm.middleware[i](handler)
	}

	return handler(op)
}
