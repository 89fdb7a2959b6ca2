package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/lifetable/internal/pipeline"
)

var (
	runFetch        bool
	runMinAge       int
	runMaxAge       int
	runIncludeEdges bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the life table once",
	Long: `Loads every source, merges them onto the age grid, derives the life-table
columns and writes the artifacts to the next free OUTPUT_DIR/data{i} directory:

  hmd.csv, hfd.csv, hg.csv, income_status.csv   canonical source rows
  life_table.csv                                the merged table
  country_table.csv                             income status by country and year
  log_file.log                                  the run's log

Flags override the matching LT_* settings for this run only.`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&runFetch, "fetch", false, "download the sources before running")
	runCmd.Flags().IntVar(&runMinAge, "min-age", 0, "override LT_MIN_AGE")
	runCmd.Flags().IntVar(&runMaxAge, "max-age", 0, "override LT_MAX_AGE")
	runCmd.Flags().BoolVar(&runIncludeEdges, "include-edge-data", false, "override LT_INCLUDE_EDGE_DATA")
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if runFetch || cfg.Fetch.Enabled {
		if err := fetchAll(ctx); err != nil {
			return err
		}
	}

	p := pipeline.New(cfg, sources, slog.Default())
	flags := cmd.Flags()
	if flags.Changed("min-age") {
		p.Settings.Ages.Min = runMinAge
	}
	if flags.Changed("max-age") {
		p.Settings.Ages.Max = runMaxAge
	}
	if flags.Changed("include-edge-data") {
		p.Settings.IncludeEdgeData = runIncludeEdges
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		p.Recorder = st
	}

	res, err := p.Run(ctx, uuid.New(), func(ph pipeline.Phase) {
		slog.Debug("run phase", "phase", ph)
	})
	if err != nil {
		return err
	}

	counts := res.IssueCounts()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s (%d issues)\n", len(res.Table.Rows), res.Dir, len(res.Issues))
	for kind, n := range counts {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %d\n", kind, n)
	}
	return nil
}
