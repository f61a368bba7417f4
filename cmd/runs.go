package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/monitoring"
	"github.com/sells-group/puff-cli/internal/scoring"
	"github.com/sells-group/puff-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect scoring run history",
	Long:  "Commands for listing, viewing, and summarizing scoring runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scoring runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		inputPath, _ := cmd.Flags().GetString("input")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Input:  inputPath,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(st).Collect(ctx, since)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, snap)
		return nil
	},
}

// -- runs days --

var runsDaysCmd = &cobra.Command{
	Use:   "days <date>",
	Short: "Show how one day was graded across runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		days, err := st.DayHistory(ctx, args[0], limit)
		if err != nil {
			return eris.Wrap(err, "runs days")
		}

		if len(days) == 0 {
			fmt.Fprintf(os.Stderr, "No runs graded %s.\n", args[0])
			return nil
		}

		formatDayHistory(os.Stdout, days)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("input", "", "filter by input path")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsDaysCmd.Flags().Int("limit", 20, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsDaysCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tINPUT\tSTATUS\tPUFFS\tDAYS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-----\t----\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		input := r.Input
		if len(input) > 30 {
			input = "..." + input[len(input)-27:]
		}

		puffs, days := "", ""
		if r.Result != nil {
			puffs = fmt.Sprint(r.Result.Puffs)
			days = dayColors(r.Result.Days)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			input,
			r.Status,
			puffs,
			days,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// dayColors renders day classifications compactly, e.g. "2G 1Y 0R".
func dayColors(days []model.DaySummary) string {
	counts := make(map[scoring.Color]int, len(scoring.AllColors))
	for _, d := range days {
		counts[d.Color]++
	}
	return fmt.Sprintf("%dG %dY %dR", counts[scoring.ColorGreen], counts[scoring.ColorYellow], counts[scoring.ColorRed])
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s *monitoring.RunSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%s\n", s.Lookback)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	if s.Complete+s.Failed > 0 {
		_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", s.FailRate*100)
	}
	if s.AvgDayScore > 0 {
		_, _ = fmt.Fprintf(w, "Avg day score:\t%.2f\n", s.AvgDayScore)
	}
	_ = w.Flush()
}

// formatDayHistory writes one row per run that graded the day.
func formatDayHistory(out io.Writer, days []store.DayRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tCREATED\tDATE\tAVG_SCORE\tCOLOR")
	_, _ = fmt.Fprintln(w, "---\t-------\t----\t---------\t-----")
	for _, d := range days {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n",
			truncateID(d.RunID),
			d.CreatedAt.Format("2006-01-02 15:04"),
			d.Date,
			d.AvgScore,
			d.Color,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
