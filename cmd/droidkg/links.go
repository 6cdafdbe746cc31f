package main

import (
	"github.com/spf13/cobra"

	"github.com/droidkg/droidkg/internal/output"
	"github.com/droidkg/droidkg/internal/pipeline"
)

var linksCmd = &cobra.Command{
	Use:   "links <workdir>",
	Short: "Extract code links and write add_info.json and in_code_str.json",
	Long: `Runs UI-reference resolution, string resolution and branch scoping
without building the graph. The side tables are written next to the inputs
(or under output.dir) and a summary is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runLinks,
}

func init() {
	linksCmd.Flags().String("timeout", "", "Analysis time limit, e.g. 10m (default from config)")
	addOutputFlags(linksCmd)
	rootCmd.AddCommand(linksCmd)
}

func runLinks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Analysis.Timeout, _ = cmd.Flags().GetString("timeout")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	lc, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer lc.Close()

	links, partial, err := pipeline.New(cfg, pipeline.WithLogger(lc.Logger)).Links(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	formatter, err := newFormatter(cmd, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(output.LinkTable(links.Stats)); err != nil {
		return err
	}
	if partial {
		lc.Warn("analysis timed out, side tables are partial")
	}
	return nil
}
