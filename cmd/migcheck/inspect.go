package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/migcheck/config"
	"github.com/hazyhaar/migcheck/history"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (password masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(g.configPath, nil)
			if err != nil {
				return err
			}
			verr := cfg.Validate()
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}
			if verr != nil {
				return fmt.Errorf("invalid configuration:\n%w", verr)
			}
			return nil
		},
	}
}

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		dbPath string
		limit  int
		runID  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the rows of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				cfg, err := config.Load(g.configPath, nil)
				if err != nil {
					return err
				}
				dbPath = cfg.Report.HistoryDB
			}
			if dbPath == "" {
				return fmt.Errorf("no history database: pass --db or set report.history_db")
			}
			store, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if runID != "" {
				rows, err := store.Rows(cmd.Context(), runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "FILE\tSTATUS\tEXPECTED\tGOT\tREASON")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Status, r.Expected, r.Got, r.Reason)
				}
				return nil
			}

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "RUN\tSTARTED\tSOURCE\tTARGET\tTOTAL\tPASSED\tFAILED\tTOOK\tREPORT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					r.ID, humanize.Time(r.StartedAt), r.Source, r.Target,
					r.Total, r.Passed, r.Failed, r.Duration().Round(time.Second), r.ReportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "history database (default report.history_db)")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the rows of this run")
	return cmd
}
