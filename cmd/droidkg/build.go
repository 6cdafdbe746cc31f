package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/droidkg/droidkg/internal/batch"
	"github.com/droidkg/droidkg/internal/output"
	"github.com/droidkg/droidkg/internal/pipeline"
	"github.com/droidkg/droidkg/internal/progress"
	"github.com/droidkg/droidkg/pkg/config"
)

var buildCmd = &cobra.Command{
	Use:   "build [workdir...]",
	Short: "Build the knowledge graph of one or more applications",
	Long: `Runs the full pipeline on each application work directory and writes
encoding/node.csv, encoding/edge.csv, add_info.json and in_code_str.json.

Applications whose output is current are skipped, as are applications whose
previous run failed. Use --force to rebuild them.

Examples:
  droidkg build ./apps/com.example.app
  droidkg build --apps-root ./apps --workers 8
  droidkg build --apps-root ./apps -f json -o summary.json`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("apps-root", "", "Process every application directory under this root")
	buildCmd.Flags().Bool("force", false, "Rebuild applications that already have output")
	buildCmd.Flags().Int("workers", 0, "Number of applications built in parallel (default from config)")
	buildCmd.Flags().String("timeout", "", "Per-application analysis time limit, e.g. 10m (default from config)")
	addOutputFlags(buildCmd)

	rootCmd.AddCommand(buildCmd)
}

// applyBuildFlags overrides configuration with explicitly set flags.
func applyBuildFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("force") {
		cfg.Batch.Force, _ = cmd.Flags().GetBool("force")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Analysis.Timeout, _ = cmd.Flags().GetString("timeout")
	}
	return cfg.Validate()
}

// workDirs joins positional work directories with those found under
// --apps-root.
func workDirs(cmd *cobra.Command, args []string) ([]string, error) {
	dirs := append([]string(nil), args...)
	if root, _ := cmd.Flags().GetString("apps-root"); root != "" {
		found, err := batch.Discover(root)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, found...)
	}
	if len(dirs) == 0 {
		return nil, errors.New("no work directories given (pass directories or --apps-root)")
	}
	return dirs, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyBuildFlags(cmd, cfg); err != nil {
		return err
	}
	dirs, err := workDirs(cmd, args)
	if err != nil {
		return err
	}

	lc, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer lc.Close()

	p := pipeline.New(cfg, pipeline.WithLogger(lc.Logger), pipeline.WithVersion(version))
	tracker := progress.NewTracker("Building knowledge graphs...", len(dirs))
	sum := batch.Run(cmd.Context(), dirs, cfg.Batch.Workers,
		func(ctx context.Context, dir string) (*pipeline.Result, bool, error) {
			res, err := p.Run(ctx, dir)
			if err != nil {
				return nil, false, err
			}
			return res, res.Skipped, nil
		}, func(dir string) { tracker.TickApp(appName(dir)) })

	if sum.AllFailed() {
		tracker.FinishError(sum.Errors)
	} else {
		tracker.FinishSuccess()
	}

	formatter, err := newFormatter(cmd, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(output.BuildTable(appRows(sum))); err != nil {
		return err
	}
	reportOutcomes(formatter, sum)

	if sum.AllFailed() {
		return fmt.Errorf("all %d applications failed: %w", len(sum.Reports), sum.Errors)
	}
	if n := sum.Errors.Len(); n > 0 {
		lc.Warn("some applications failed", "failed", n, "total", len(sum.Reports))
	}
	return nil
}

// reportOutcomes adds a status line for every application that did not build
// cleanly, then the batch totals.
func reportOutcomes(f *output.Formatter, sum *batch.Summary[*pipeline.Result]) {
	for _, r := range sum.Reports {
		switch {
		case r.Err != nil:
			f.Error("%s: %v", appName(r.App), r.Err)
		case r.Result == nil:
		case r.Result.Partial:
			f.Warning("%s: analysis timed out, graph is partial", appName(r.App))
		case r.Result.Skipped:
			f.Info("%s: skipped (%s)", appName(r.App), r.Result.SkipReason)
		}
	}
	if !sum.AllFailed() {
		f.Success("%d built, %d skipped, %d failed",
			sum.Count(batch.Built), sum.Count(batch.Skipped), sum.Count(batch.Failed))
	}
}

func appRows(sum *batch.Summary[*pipeline.Result]) []output.AppRow {
	rows := make([]output.AppRow, 0, len(sum.Reports))
	for _, r := range sum.Reports {
		row := output.AppRow{App: appName(r.App), Outcome: string(r.Outcome)}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		if res := r.Result; res != nil {
			row.Nodes = res.Graph.Nodes
			row.Edges = res.Graph.Edges
			row.Finds = res.Graph.Finds
			row.Uses = res.Graph.Uses
			row.Events = res.Graph.Events
			row.Partial = res.Partial
			row.Duration = res.Duration.Round(time.Millisecond).String()
		}
		rows = append(rows, row)
	}
	return rows
}
