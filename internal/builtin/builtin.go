// Package builtin ships the scripts the dbhelper CLI can always resolve,
// such as ping.sql and list_routines.sql.
package builtin

import (
	"embed"
	"io/fs"

	"github.com/eleven-am/dbhelper/pkg/script"
)

// Name is the bundle name of the built-in scripts
const Name = "builtin"

//go:embed sql/*.sql
var files embed.FS

// Bundle returns the built-in scripts as a bundle. Resources are named
// without the sql/ directory, e.g. ping.sql.
func Bundle() script.Bundle {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		panic(err)
	}
	return script.NewFSBundle(Name, sub)
}
