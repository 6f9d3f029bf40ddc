package commands

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kanban/internal/kanban"
	"kanban/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg, log)
		if err != nil {
			log.Error("db open", "err", err)
			return err
		}
		defer st.Close()

		var opts []kanban.Option
		if !cfg.AllowDelete {
			opts = append(opts, kanban.WithDeletesDisabled())
			log.Warn("deletes disabled")
		}
		svc := kanban.NewService(st, log, opts...)
		h := server.NewHandler(svc, st, log, server.Options{
			CORSOrigins: cfg.CORSOrigins,
			Heartbeat:   cfg.EventHeartbeat,
		})

		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return err
		}
		return server.Serve(ctx, ln, h, cfg.ShutdownTimeout, log)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address")
	serveCmd.Flags().Bool("allow-delete", true, "allow delete operations")
	_ = v.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("allow_delete", serveCmd.Flags().Lookup("allow-delete"))
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		return st.Close()
	},
}
