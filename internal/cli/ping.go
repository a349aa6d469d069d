package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eleven-am/dbhelper/internal/logger"
	"github.com/eleven-am/dbhelper/pkg/dbhelper"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the database connection",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

func runPing(cmd *cobra.Command, args []string) error {
	s, err := currentSession()
	if err != nil {
		return err
	}

	start := time.Now()
	return s.withHelper(cmd.Context(), func(h *dbhelper.Helper) error {
		if _, err := dbhelper.Scalar[int64](cmd.Context(), h, "ping.sql"); err != nil {
			return err
		}
		elapsed := time.Since(start)

		serverVersion, err := dbhelper.Scalar[string](cmd.Context(), h, "server_version.sql")
		if err != nil {
			logger.CLI().WithError(err).Debug("server version unavailable")
			serverVersion = "unknown"
		}

		fmt.Fprintf(cmd.OutOrStdout(), "ok: %s server %s in %s\n", h.Dialect().Name(), serverVersion, elapsed.Round(time.Millisecond))
		return nil
	})
}
