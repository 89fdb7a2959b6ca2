package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/lifetable/internal/config"
	"github.com/JonMunkholm/lifetable/internal/core"
	"github.com/JonMunkholm/lifetable/internal/logging"
	"github.com/JonMunkholm/lifetable/internal/store"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "0.1.0-dev"

var (
	envFile string

	cfg     *config.Config
	sources *config.Sources
)

var rootCmd = &cobra.Command{
	Use:   "lifetable",
	Short: "Build merged demographic life tables",
	Long: `lifetable merges HMD mortality, HFD fertility, hunter-gatherer samples and
World Bank income groups into one life table per population and year, and
derives lxmx, dx, qx, sx and vx.

Configuration comes from the environment, optionally overlaid by a .env file.
Source file locations come from SOURCES_FILE (defaults apply when it is absent).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		// Overload lets .env win over the inherited environment.
		if err := godotenv.Overload(envFile); err != nil {
			slog.Debug("no env file loaded", "file", envFile, "error", err)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

		sources, err = config.LoadSources(cfg.Paths.SourcesFile)
		if err != nil {
			return err
		}
		slog.Debug("configuration loaded", "config", cfg.String())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "lifetable", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to overlay")
	rootCmd.AddCommand(runCmd, fetchCmd, serveCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if msg := core.FormatUserError(err); core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, msg)
		}
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// openStore connects to the database when one is configured. It returns a
// nil store otherwise.
func openStore(ctx context.Context) (*store.Store, error) {
	if !cfg.Database.Enabled() {
		return nil, nil
	}
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	slog.Info("connected to database", "max_conns", cfg.Database.MaxConns)
	return st, nil
}
