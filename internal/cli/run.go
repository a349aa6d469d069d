package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eleven-am/dbhelper/pkg/dbhelper"
)

var (
	runExec   bool
	runScalar bool
	runNamed  bool
	runFormat string
)

var runCmd = &cobra.Command{
	Use:   "run <statement> [args...]",
	Short: "Run a statement, routine or script",
	Long: `Runs one statement and prints the result.

Rows are printed as yaml or json. --exec prints the number of rows affected
and invokes routines with CALL. --scalar prints the first column of the first
row. With --named every argument is a key=value pair bound to :key.`,
	Example: `  dbhelper run "SELECT * FROM users WHERE id = \$1" 42
  dbhelper run get_active_users
  dbhelper run --exec archive_orders 30
  dbhelper run --named users/ByEmail.sql email=ada@example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runExec, "exec", false, "execute for side effects and print rows affected")
	runCmd.Flags().BoolVar(&runScalar, "scalar", false, "print only the first column of the first row")
	runCmd.Flags().BoolVar(&runNamed, "named", false, "treat arguments as key=value named parameters")
	runCmd.Flags().StringVar(&runFormat, "format", "yaml", "output format for rows (yaml, json)")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runExec && runScalar {
		return fmt.Errorf("--exec and --scalar are mutually exclusive")
	}
	if runFormat != "yaml" && runFormat != "json" {
		return fmt.Errorf("unsupported format %q", runFormat)
	}

	statement := args[0]
	params, err := statementArgs(args[1:], runNamed)
	if err != nil {
		return err
	}

	s, err := currentSession()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	return s.withHelper(cmd.Context(), func(h *dbhelper.Helper) error {
		ctx := cmd.Context()

		switch {
		case runExec:
			affected, err := h.Execute(ctx, statement, params...)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d rows affected\n", affected)
			return nil

		case runScalar:
			value, err := dbhelper.Scalar[interface{}](ctx, h, statement, params...)
			if err != nil {
				return err
			}
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			fmt.Fprintln(out, value)
			return nil

		default:
			rows, err := h.QueryMaps(ctx, statement, params...)
			if err != nil {
				return err
			}
			return writeRows(out, rows, runFormat)
		}
	})
}

// statementArgs converts CLI arguments into statement arguments
func statementArgs(args []string, named bool) ([]interface{}, error) {
	if !named {
		params := make([]interface{}, len(args))
		for i, a := range args {
			params[i] = a
		}
		return params, nil
	}

	values := make(map[string]interface{}, len(args))
	for _, a := range args {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("named argument %q must be key=value", a)
		}
		values[key] = value
	}
	return []interface{}{dbhelper.Named(values)}, nil
}

func writeRows(w io.Writer, rows []map[string]interface{}, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode rows: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}
	return enc.Close()
}
