// Command ksx ingests store-performance metrics from the KSX reporting
// portal and reconciles them against human-filled spreadsheets.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/CaixiangyangCD/ksx/internal/app"
	"github.com/CaixiangyangCD/ksx/internal/config"
	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/logging"
	"github.com/CaixiangyangCD/ksx/pkg/logger"
)

var cliLog = logger.New("ksx")

func main() {
	if err := rootCmd().Execute(); err != nil {
		cliLog.Printf("error: %v", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var application *app.Application

	root := &cobra.Command{
		Use:           "ksx",
		Short:         "KSX store-metrics ingestion and reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			a, err := app.New(cfg, logging.New(cfg.Logging.Level))
			if err != nil {
				return err
			}
			application = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if application != nil {
				return application.Close()
			}
			return nil
		},
	}

	root.AddCommand(
		syncCmd(&application),
		queryCmd(&application),
		entitiesCmd(&application),
		reconcileCmd(&application),
		pruneCmd(&application),
		infoCmd(&application),
	)
	return root
}

func syncCmd(application **app.Application) *cobra.Command {
	var (
		dateFlag    string
		fromFlag    string
		toFlag      string
		incremental bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull portal records into the sharded store",
		RunE: func(cmd *cobra.Command, args []string) error {
			dates, err := resolveDates(dateFlag, fromFlag, toFlag)
			if err != nil {
				return err
			}
			results, err := (*application).Sync(cmd.Context(), dates, incremental)
			if err != nil {
				return err
			}
			failed := 0
			for _, res := range results {
				status := "ok"
				if !res.Success {
					status = "FAILED"
					failed++
				}
				fmt.Printf("%s  run=%s  inserted=%d  %s\n", status, res.RunID, res.Inserted, res.Message)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "single date to ingest (YYYY-MM-DD, default yesterday)")
	cmd.Flags().StringVar(&fromFlag, "from", "", "range start (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&toFlag, "to", "", "range end (YYYY-MM-DD, inclusive)")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "ingest everything newer than the latest stored shard")
	return cmd
}

func queryCmd(application **app.Application) *cobra.Command {
	var (
		dateFlag string
		name     string
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored records for one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(dateFlag)
			if err != nil {
				return err
			}
			result, err := (*application).Query(cmd.Context(), domain.QueryParams{
				Date:       date,
				NameFilter: name,
				Page:       page,
				PageSize:   pageSize,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%d records (page %d/%d)\n", result.Total, result.Page, result.TotalPages)
			for _, rec := range result.Rows {
				fmt.Printf("  %-12s %s\n", rec.RawID(), rec.DisplayName())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "date to query (YYYY-MM-DD)")
	cmd.Flags().StringVar(&name, "name", "", "store name substring filter")
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().IntVar(&pageSize, "page-size", 50, "rows per page")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func entitiesCmd(application **app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List every distinct store name across all shards",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := (*application).Entities(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			fmt.Printf("%d entities\n", len(names))
			return nil
		},
	}
}

func reconcileCmd(application **app.Application) *cobra.Command {
	var (
		monthFlag  string
		modeFlag   string
		fieldsFlag []string
	)
	cmd := &cobra.Command{
		Use:   "reconcile <workbook.xlsx>",
		Short: "Compare a spreadsheet against stored records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var month time.Time
			if monthFlag != "" {
				parsed, err := time.Parse("2006-01", monthFlag)
				if err != nil {
					return fmt.Errorf("invalid --month %q: %w", monthFlag, err)
				}
				month = parsed
			}
			if modeFlag != "" && modeFlag != config.ModeFull && modeFlag != config.ModeIncremental {
				return fmt.Errorf("invalid --mode %q: use %s or %s", modeFlag, config.ModeFull, config.ModeIncremental)
			}
			report, path, err := (*application).Reconcile(cmd.Context(), args[0], month, modeFlag, fieldsFlag)
			if err != nil {
				return err
			}
			s := report.Summary
			fmt.Printf("entities=%d with_diffs=%d diffs=%d errors=%d warnings=%d\n",
				s.Entities, s.EntitiesWithDiffs, s.TotalDiffs, s.Errors, s.Warnings)
			fmt.Printf("report: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&monthFlag, "month", "", "target month (YYYY-MM, default derived from filename)")
	cmd.Flags().StringVar(&modeFlag, "mode", "", "reading mode: full or incremental (default from config)")
	cmd.Flags().StringSliceVar(&fieldsFlag, "fields", nil, "restrict comparison to these metric keys")
	return cmd
}

func pruneCmd(application **app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the month retention policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := (*application).Prune(cmd.Context())
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Println("nothing to prune")
				return nil
			}
			for _, month := range removed {
				fmt.Printf("removed %s\n", month)
			}
			return nil
		},
	}
}

func infoCmd(application **app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show store layout and sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := (*application).Info(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("base: %s\n", info.BaseDir)
			for _, m := range info.Months {
				fmt.Printf("  %s  shards=%d  %.1f KiB\n", m.Month, m.Shards, float64(m.SizeBytes)/1024)
			}
			fmt.Printf("total: %d shards, %.1f KiB\n", info.Shards, float64(info.SizeBytes)/1024)
			return nil
		},
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// resolveDates turns the sync flags into an explicit date list. --date wins
// over --from/--to; all empty means "let the app default".
func resolveDates(date, from, to string) ([]time.Time, error) {
	if date != "" {
		d, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		return []time.Time{d}, nil
	}
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("--from and --to must be given together")
	}
	start, err := parseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("--to is before --from")
	}
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}
