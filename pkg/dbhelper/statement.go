package dbhelper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eleven-am/dbhelper/pkg/script"
)

// Statement is a prepared invocation ready for the driver
type Statement struct {
	// Source is the statement as supplied by the caller
	Source string
	// Text is Source after script resolution
	Text string
	Kind script.Kind
	// Query is the SQL handed to the driver
	Query string
	Args  []interface{}
}

// NamedArgs marks an argument whose fields or keys bind :name parameters
type NamedArgs struct {
	Value interface{}
}

// Named binds :name parameters from a struct (db tags) or a map
func Named(arg interface{}) NamedArgs {
	return NamedArgs{Value: arg}
}

func namedArg(args []interface{}) (interface{}, bool) {
	if len(args) != 1 {
		return nil, false
	}
	named, ok := args[0].(NamedArgs)
	if !ok {
		return nil, false
	}
	return named.Value, true
}

// Prepare resolves statement, classifies it and builds the SQL to run.
// Script references (*.sql) are resolved first; routine names become an
// invocation through the dialect; anything else is sent as text.
func (h *Helper) Prepare(statement string, mode Mode, args ...interface{}) (*Statement, error) {
	source := strings.TrimSpace(statement)

	text, err := h.resolver.Resolve(source)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)

	stmt := &Statement{
		Source: source,
		Text:   text,
		Kind:   script.Classify(text),
	}

	named, isNamed := namedArg(args)

	switch {
	case stmt.Kind == script.KindRoutine && isNamed:
		params, ok := named.(map[string]interface{})
		if !ok {
			return nil, &Error{Op: "prepare", Statement: source, Err: ErrNamedRoutineArgs}
		}
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)

		invocation, err := h.dialect.InvokeNamed(text, mode, names)
		if err != nil {
			return nil, &Error{Op: "prepare", Statement: source, Err: err}
		}
		stmt.Query, stmt.Args, err = h.db.BindNamed(invocation, params)
		if err != nil {
			return nil, &Error{Op: "prepare", Statement: source, Err: fmt.Errorf("bind named arguments: %w", err)}
		}

	case stmt.Kind == script.KindRoutine:
		stmt.Query, err = h.dialect.Invoke(text, mode, len(args))
		if err != nil {
			return nil, &Error{Op: "prepare", Statement: source, Err: err}
		}
		stmt.Args = args

	case isNamed:
		stmt.Query, stmt.Args, err = h.db.BindNamed(text, named)
		if err != nil {
			return nil, &Error{Op: "prepare", Statement: source, Err: fmt.Errorf("bind named arguments: %w", err)}
		}

	default:
		stmt.Query = text
		stmt.Args = args
	}

	return stmt, nil
}
