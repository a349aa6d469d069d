package script

import "strings"

const (
	// Suffix is the file extension that marks a reference as a script resource
	Suffix = ".sql"

	keySeparator = ":"
	keySuffix    = keySeparator + "sql"
)

var keyReplacer = strings.NewReplacer(".", keySeparator, `\`, keySeparator, "/", keySeparator)

// NormalizeKey lowercases reference and maps every path or extension separator
// to ':', prefixed with ':'. "Sub/Test.SQL" and "Sub.Test.sql" both become
// ":sub:test:sql".
func NormalizeKey(reference string) string {
	return keySeparator + keyReplacer.Replace(strings.ToLower(reference))
}

// IsScriptReference reports whether reference must be resolved against bundles
func IsScriptReference(reference string) bool {
	return strings.HasSuffix(NormalizeKey(reference), keySuffix)
}

func hasScriptSuffix(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), Suffix)
}
