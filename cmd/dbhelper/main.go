package main

import (
	"fmt"
	"os"

	"github.com/eleven-am/dbhelper/internal/cli"
	"github.com/eleven-am/dbhelper/pkg/version"
)

// Set with -ldflags "-X main.commit=... -X main.date=..."
var (
	commit string
	date   string
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func Execute() error {
	version.SetBuildInfo(commit, date, "")

	cmd := cli.NewRootCommand()
	return cmd.Execute()
}
