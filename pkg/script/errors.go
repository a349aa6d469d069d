package script

import (
	"errors"
	"fmt"
	"strings"
)

// Resolution failures. Callers match them with errors.Is.
var (
	ErrAmbiguousScript = errors.New("ambiguous script reference")
	ErrScriptNotFound  = errors.New("script not found")
	ErrResourceRead    = errors.New("script resource could not be read")
)

// Error carries the details of a failed resolution
type Error struct {
	Op         string   // resolve, index or read
	Reference  string   // reference as supplied by the caller
	Key        string   // normalized cache key
	Bundle     string   // bundle being scanned, if any
	Resource   string   // resource name, for read failures
	Candidates []string // matching resource names, for ambiguity
	Err        error
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("script: %s", e.Op)}

	if e.Reference != "" {
		parts = append(parts, fmt.Sprintf("reference=%s", e.Reference))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}
	if e.Bundle != "" {
		parts = append(parts, fmt.Sprintf("bundle=%s", e.Bundle))
	}
	if e.Resource != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", e.Resource))
	}
	if len(e.Candidates) > 0 {
		parts = append(parts, fmt.Sprintf("candidates=[%s]", strings.Join(e.Candidates, ", ")))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsAmbiguous reports whether err is an ambiguous script reference
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguousScript)
}

// IsNotFound reports whether err is a missing script
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScriptNotFound)
}
