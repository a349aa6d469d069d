package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eleven-am/dbhelper/pkg/script"
)

var resolveShowKind bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <reference>",
	Short: "Print the statement a script reference resolves to",
	Long: `Resolves a script reference against the script directories and the
built-in bundle without touching the database. Anything not ending in .sql
is printed unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <statement>",
	Short: "Print whether a statement is a routine name or text",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), script.Classify(args[0]))
	},
}

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "List the scripts every bundle provides",
	Args:  cobra.NoArgs,
	RunE:  runScripts,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveShowKind, "kind", false, "also print the statement kind")
}

func runResolve(cmd *cobra.Command, args []string) error {
	s, err := currentSession()
	if err != nil {
		return err
	}

	text, err := s.resolver.Resolve(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resolveShowKind {
		fmt.Fprintf(out, "-- kind: %s\n", script.Classify(text))
	}
	fmt.Fprintln(out, text)
	return nil
}

func runScripts(cmd *cobra.Command, args []string) error {
	s, err := currentSession()
	if err != nil {
		return err
	}

	scripts, err := s.resolver.Scripts()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUNDLE\tRESOURCE\tKEY")
	for _, info := range scripts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Bundle, info.Resource, info.Key)
	}
	return w.Flush()
}
