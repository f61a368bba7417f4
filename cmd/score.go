package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/puff-cli/internal/export"
	"github.com/sells-group/puff-cli/internal/fetcher"
	"github.com/sells-group/puff-cli/internal/input"
	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/monitoring"
	"github.com/sells-group/puff-cli/internal/pipeline"
	"github.com/sells-group/puff-cli/internal/resilience"
	"github.com/sells-group/puff-cli/internal/scoring"
	"github.com/sells-group/puff-cli/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a puff log and write the report tables",
	Long: `Score every puff in a TSV or XLSX log and aggregate per inhaler,
treatment and day.

Writes puffs, inhalers, treatments and days tables to the output directory,
each as <name>.tsv and <name>_colored.tsv (ANSI colors for terminals).

Examples:
  # Score a workbook with the default sheet
  score --input puffs.xlsx

  # Score a workbook shared over HTTP
  score --input https://files.example.com/clinic/puffs.xlsx

  # Score a TSV into a custom directory and emit textfile metrics
  score --input puffs.tsv --out reports --metrics /var/lib/node_exporter/puff.prom`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("input", "", "puff log to score (.tsv or .xlsx, local path or http(s) URL)")
	f.String("sheet", "", "XLSX sheet name (overrides config)")
	f.String("out", "", "output directory (overrides config)")
	f.String("metrics", "", "write Prometheus textfile metrics to this path (overrides config)")
	f.Bool("no-store", false, "do not record the run in the run history")
	_ = scoreCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(scoreCmd)
}

// scoreJob is one scoring batch: read, evaluate, write. It is shared by
// score and watch.
type scoreJob struct {
	input       string
	outDir      string
	metricsFile string
	manifest    bool
	readOpts    input.Options
	engine      *pipeline.Engine
	store       store.Store // nil when history is off
	downloader  fetcher.Downloader

	// readRetry is used for loading the input; watch sets it to ride out
	// files caught mid-save.
	readRetry resilience.Policy
}

// newScoreJob builds a job from config with the command's flag overrides.
func newScoreJob(cmd *cobra.Command, st store.Store) (*scoreJob, error) {
	th, err := cfg.Thresholds()
	if err != nil {
		return nil, err
	}

	inputPath, _ := cmd.Flags().GetString("input")
	job := &scoreJob{
		input:       inputPath,
		outDir:      cfg.Output.Dir,
		metricsFile: cfg.Output.MetricsFile,
		manifest:    cfg.Output.Manifest,
		readOpts: input.Options{
			Sheet:         cfg.Input.Sheet,
			CommentPrefix: cfg.Input.CommentPrefix,
		},
		engine:     pipeline.New(th, cfg.Input.DateLayouts),
		store:      st,
		downloader: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}),
		readRetry:  resilience.Policy{Name: "read input", Attempts: 1},
	}
	if v, _ := cmd.Flags().GetString("sheet"); v != "" {
		job.readOpts.Sheet = v
	}
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		job.outDir = v
	}
	if v, _ := cmd.Flags().GetString("metrics"); v != "" {
		job.metricsFile = v
	}
	if !fetcher.IsRemote(job.input) {
		if _, err := input.DetectFormat(job.input); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
		var err error
		st, err = initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}
	}

	job, err := newScoreJob(cmd, st)
	if err != nil {
		return err
	}

	res, runID, err := job.run(ctx)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, res, runID, job.outDir)
	return nil
}

// run executes the batch. Input and scoring errors abort before any
// table is written; the run is then recorded as failed.
func (j *scoreJob) run(ctx context.Context) (*model.Result, string, error) {
	log := zap.L().With(zap.String("command", "score"), zap.String("input", j.input))
	start := time.Now()

	var runID string
	if j.store != nil {
		run, err := j.store.CreateRun(ctx, j.input, j.outDir, j.engine.Thresholds())
		if err != nil {
			return nil, "", eris.Wrap(err, "score: record run")
		}
		runID = run.ID
		log = log.With(zap.String("run_id", runID))
	}

	res, files, err := j.evaluate(ctx)
	if err != nil {
		j.fail(ctx, runID, err)
		return nil, runID, err
	}

	if j.manifest {
		m := export.NewManifest(j.input, res, j.engine.Thresholds(), files)
		m.RunID = runID
		if _, err := export.WriteManifest(j.outDir, m); err != nil {
			log.Warn("score: manifest not written", zap.Error(err))
		}
	}

	if j.store != nil {
		if err := j.store.CompleteRun(ctx, runID, model.NewRunResult(res)); err != nil {
			return res, runID, eris.Wrap(err, "score: complete run")
		}
	}

	if j.metricsFile != "" {
		if err := j.writeMetrics(ctx, res); err != nil {
			log.Warn("score: metrics not written", zap.Error(err))
		}
	}

	log.Info("score: complete",
		zap.Int("puffs", len(res.Puffs)),
		zap.Int("days", len(res.Days)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, runID, nil
}

func (j *scoreJob) evaluate(ctx context.Context) (*model.Result, []string, error) {
	src := j.input
	if fetcher.IsRemote(src) {
		tmp, err := os.MkdirTemp("", "puff-input-*")
		if err != nil {
			return nil, nil, eris.Wrap(err, "score: temp dir")
		}
		defer os.RemoveAll(tmp) //nolint:errcheck

		if src, err = input.Fetch(ctx, j.downloader, src, tmp); err != nil {
			return nil, nil, err
		}
	}

	records, err := resilience.Retry(ctx, j.readRetry, func(ctx context.Context) ([]model.RawRecord, error) {
		return input.Load(ctx, src, j.readOpts)
	})
	if err != nil {
		return nil, nil, err
	}

	res, err := j.engine.Evaluate(records)
	if err != nil {
		return nil, nil, err
	}

	files, err := export.WriteAll(j.outDir, export.Tables(res))
	if err != nil {
		return nil, files, err
	}
	return res, files, nil
}

func (j *scoreJob) fail(ctx context.Context, runID string, runErr error) {
	if j.store == nil || runID == "" {
		return
	}
	if err := j.store.FailRun(ctx, runID, runErr); err != nil {
		zap.L().Error("score: record failure", zap.String("run_id", runID), zap.Error(err))
	}
}

func (j *scoreJob) writeMetrics(ctx context.Context, res *model.Result) error {
	var snap *monitoring.RunSnapshot
	if j.store != nil {
		s, err := monitoring.NewCollector(j.store).Collect(ctx, 24*time.Hour)
		if err != nil {
			return err
		}
		snap = s
	}
	return monitoring.WriteTextfile(j.metricsFile, monitoring.Families(res, snap, time.Now()))
}

// printSummary writes the day table and recovered-row warnings to w.
func printSummary(out io.Writer, res *model.Result, runID, outDir string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tAVG_SCORE\tCOLOR")
	_, _ = fmt.Fprintln(w, "----\t---------\t-----")
	for _, d := range res.Days {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%s\n", d.Date, d.AvgScore, colorCell(d.Color))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d puffs, %d inhalers, %d treatments written to %s\n",
		len(res.Puffs), len(res.Inhalers), len(res.Treatments), outDir)
	if runID != "" {
		_, _ = fmt.Fprintf(out, "Run: %s\n", runID)
	}
	for _, warn := range res.Warnings {
		_, _ = fmt.Fprintf(out, "Warning: row %d: %s (was %q)\n", warn.Row, warn.Message, warn.Value)
	}
}

// colorCell renders a color for the terminal only when stdout is one.
func colorCell(c scoring.Color) string {
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		return export.Colorize(c)
	}
	return c.String()
}
