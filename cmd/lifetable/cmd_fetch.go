package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/lifetable/internal/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download HMD, HFD and World Bank source files",
	Long: `Logs in to the Human Mortality Database and the Human Fertility Database
with HMD_EMAIL and HMD_PASSWORD, downloads their archives and extracts them
under DOWNLOAD_DIR/HMD and DOWNLOAD_DIR/HFD. The World Bank income group
workbook is saved to DOWNLOAD_DIR/WBLG. Downloads run concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchAll(cmd.Context())
	},
}

func fetchAll(ctx context.Context) error {
	if cfg.Fetch.Email == "" || cfg.Fetch.Password == "" {
		return errors.New("fetch: HMD_EMAIL and HMD_PASSWORD must be set")
	}

	start := time.Now()
	client := fetch.NewClient(cfg.Paths.DownloadDir, fetch.Credentials{
		Email:    cfg.Fetch.Email,
		Password: cfg.Fetch.Password,
	}, cfg.Fetch.Timeout, slog.Default())

	err := client.FetchAll(ctx, []fetch.Provider{fetch.HMD, fetch.HFD}, []fetch.Direct{fetch.WorldBank})
	if err != nil {
		return err
	}
	slog.Info("sources downloaded", "dir", cfg.Paths.DownloadDir, "duration", time.Since(start))
	return nil
}
