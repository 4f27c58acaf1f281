package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telekom/autofix-notifier/pkg/api"
)

func NewServeCommand() *cobra.Command {
	var listenAddress string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if listenAddress != "" {
				rt.cfg.Server.ListenAddress = listenAddress
			}
			log := rt.logger.Sugar()
			rt.Print(log)

			a, err := newApp(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); cerr != nil {
					log.Warnw("Failed to close notifier resources", "error", cerr)
				}
			}()

			server := api.NewServer(rt.logger, rt.cfg, rt.debug)
			defer server.Close()
			server.SetAuditHealth(a.audit)
			if err := server.RegisterAll([]api.APIController{
				api.NewNotificationController(a.dispatcher, log),
			}); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listenAddress, "listen-address", getEnvString("AUTOFIX_NOTIFIER_LISTEN_ADDRESS", ""),
		"Address the API binds to (overrides server.listenAddress)")

	return cmd
}
