package script

import (
	"regexp"
	"strings"
)

// Kind describes how a statement is submitted to the database
type Kind int

const (
	// KindText is free-form statement text
	KindText Kind = iota
	// KindRoutine is the name of a stored routine to invoke
	KindRoutine
)

func (k Kind) String() string {
	switch k {
	case KindRoutine:
		return "routine"
	default:
		return "text"
	}
}

// A bare identifier, or anything wrapped in a single pair of outer brackets.
var routinePattern = regexp.MustCompile(`^(?:[\p{L}\p{N}_]+|\[.*\])$`)

// Classify reports whether statement names a stored routine or is statement text.
// Anything that is not unambiguously identifier-shaped is text.
func Classify(statement string) Kind {
	if IsRoutineName(statement) {
		return KindRoutine
	}
	return KindText
}

// IsRoutineName reports whether the trimmed statement is a bare identifier
// such as TestProc or a bracketed identifier such as [dbo].[TestProc].
func IsRoutineName(statement string) bool {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return false
	}
	return routinePattern.MatchString(statement)
}
