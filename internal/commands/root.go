package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kanban/internal/config"
	"kanban/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile string
	envFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "kanban",
	Short: "Kanban board backend",
	Long: `kanban serves boards, columns, tasks and subtasks over a JSON API
and ships the tooling to migrate the database and import seed documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// SetVersion sets the version information
func SetVersion(ver, c, d string) {
	version = ver
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("db-driver", "", "database driver: postgres or sqlite")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string")
	_ = v.BindPFlag("db.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = v.BindPFlag("db.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(assignIDsCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(v, cfgFile, envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, cfg.Logger(stderr), nil
}

// openStore connects and brings the schema up to date.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	log.Info("database ready", "driver", string(st.Dialect()))
	return st, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kanban %s (commit %s, built %s)\n", version, commit, date)
	},
}
