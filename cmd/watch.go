package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/puff-cli/internal/fetcher"
	"github.com/sells-group/puff-cli/internal/resilience"
	"github.com/sells-group/puff-cli/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-score a puff log every time it changes",
	Long: `Scores the input once, then watches it and re-runs the full batch after
each save. A failed re-run is logged and the previous outputs are kept.

Examples:
  watch --input puffs.xlsx --out reports
  watch --input puffs.tsv --debounce 2s`,
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.String("input", "", "puff log to watch (.tsv or .xlsx)")
	f.String("sheet", "", "XLSX sheet name (overrides config)")
	f.String("out", "", "output directory (overrides config)")
	f.String("metrics", "", "write Prometheus textfile metrics to this path (overrides config)")
	f.Bool("no-store", false, "do not record runs in the run history")
	f.Duration("debounce", 500*time.Millisecond, "quiet period after a change before re-scoring")
	_ = watchCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
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
	if fetcher.IsRemote(job.input) {
		return eris.New("watch: input must be a local file")
	}
	// Spreadsheet apps write in several steps; a read can land mid-save.
	job.readRetry = resilience.Policy{
		Name:      "read input",
		Attempts:  5,
		Backoff:   200 * time.Millisecond,
		Retryable: resilience.IsPartialFile,
	}

	debounce, _ := cmd.Flags().GetDuration("debounce")

	rescore := func(ctx context.Context) {
		if _, _, err := job.run(ctx); err != nil {
			zap.L().Error("watch: run failed, keeping previous outputs",
				zap.String("input", job.input), zap.Error(err))
		}
	}

	rescore(ctx)
	return watchFile(ctx, job.input, debounce, rescore)
}

// watchFile calls onChange after path is written or recreated, once the
// file has been quiet for debounce. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// editors which save by rename keep being tracked.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func(ctx context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watch: create watcher")
	}
	defer watcher.Close() //nolint:errcheck

	abs, err := filepath.Abs(path)
	if err != nil {
		return eris.Wrapf(err, "watch: resolve %s", path)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return eris.Wrapf(err, "watch: add %s", filepath.Dir(abs))
	}

	zap.L().Info("watch: watching for changes", zap.String("path", abs))

	// fire is nil while no change is pending.
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			fire = time.After(debounce)

		case <-fire:
			fire = nil
			zap.L().Info("watch: change detected", zap.String("path", abs))
			onChange(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zap.L().Error("watch: watcher error", zap.Error(err))
		}
	}
}
