package dbhelper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// Mode selects how a routine is invoked
type Mode int

const (
	// ModeQuery invokes a routine that returns rows
	ModeQuery Mode = iota
	// ModeExec invokes a routine for its side effects
	ModeExec
)

// Dialect turns a routine name into an invocation statement
type Dialect interface {
	Name() string
	// Invoke builds a statement calling routine with n positional arguments
	Invoke(routine string, mode Mode, n int) (string, error)
	// InvokeNamed builds a statement calling routine with :name parameters
	InvokeNamed(routine string, mode Mode, names []string) (string, error)
}

// DialectFor returns the dialect for a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx", "pgx/v5":
		return PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// PostgresDialect invokes functions with SELECT * FROM name(...) and
// procedures with CALL name(...).
type PostgresDialect struct{}

var bracketPart = regexp.MustCompile(`\[([^\]]*)\]`)

func (PostgresDialect) Name() string {
	return "postgres"
}

func (d PostgresDialect) Invoke(routine string, mode Mode, n int) (string, error) {
	placeholders := make([]string, n)
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return d.build(routine, mode, strings.Join(placeholders, ", "))
}

func (d PostgresDialect) InvokeNamed(routine string, mode Mode, names []string) (string, error) {
	params := make([]string, len(names))
	for i, name := range names {
		params[i] = fmt.Sprintf("%s => :%s", strings.ReplaceAll(pq.QuoteIdentifier(name), "?", "??"), name)
	}
	return d.build(routine, mode, strings.Join(params, ", "))
}

func (PostgresDialect) build(routine string, mode Mode, params string) (string, error) {
	// squirrel reads ? as a placeholder; ?? keeps a literal ? inside quoted names
	ident := strings.ReplaceAll(RoutineIdentifier(routine), "?", "??")
	call := fmt.Sprintf("%s(%s)", ident, params)

	switch mode {
	case ModeExec:
		return squirrel.Dollar.ReplacePlaceholders("CALL " + call)
	case ModeQuery:
		query, _, err := squirrel.Select("*").From(call).PlaceholderFormat(squirrel.Dollar).ToSql()
		return query, err
	default:
		return "", fmt.Errorf("unknown invocation mode %d", mode)
	}
}

// RoutineIdentifier renders a routine name for postgres. Bare identifiers are
// used as-is; bracketed parts such as [dbo].[Proc] become "dbo"."Proc".
func RoutineIdentifier(routine string) string {
	routine = strings.TrimSpace(routine)
	if !strings.HasPrefix(routine, "[") || !strings.HasSuffix(routine, "]") {
		return routine
	}

	matches := bracketPart.FindAllStringSubmatch(routine, -1)
	parts := make([]string, 0, len(matches))
	rebuilt := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, pq.QuoteIdentifier(m[1]))
		rebuilt = append(rebuilt, m[0])
	}

	// anything other than [a].[b].[c] is treated as one quoted name
	if len(matches) == 0 || strings.Join(rebuilt, ".") != routine {
		return pq.QuoteIdentifier(routine[1 : len(routine)-1])
	}
	return strings.Join(parts, ".")
}
