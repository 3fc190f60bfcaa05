package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapledger/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API server",
		Long: `Start a local HTTP server exposing the ledger as a JSON API under
/api/v1. Queries are GETs; operations are POSTs carrying the caller
address in the request body.`,
		Example: `  # Serve on the configured port
  leapledger serve

  # Serve on a custom port
  leapledger serve --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig()
			srvCfg := cfg.GetServerConfig()

			// CLI flags override config file
			if cmd.Flags().Changed("host") {
				srvCfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				srvCfg.Port = port
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := server.NewServer(server.Config{
				Service: cmdCtx.Service,
				Host:    srvCfg.Host,
				Port:    srvCfg.Port,
				Logger:  cmdCtx.Logger,
			})

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving ledger API on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host to bind (default: configured host)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to serve on (default: configured port)")

	return cmd
}
