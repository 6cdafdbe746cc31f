package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droidkg/droidkg/internal/output"
	"github.com/droidkg/droidkg/pkg/encode"
	"github.com/droidkg/droidkg/pkg/graph"
)

var statsCmd = &cobra.Command{
	Use:   "stats <workdir>",
	Short: "Summarize a written knowledge graph",
	Long: `Reads encoding/node.csv and encoding/edge.csv and prints node and edge
counts, connected components and the most central nodes by PageRank.`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Int("top", 10, "Number of top-ranked nodes to show (0 disables PageRank)")
	addOutputFlags(statsCmd)
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	top, _ := cmd.Flags().GetInt("top")
	if top < 0 {
		return fmt.Errorf("--top must not be negative (got %d)", top)
	}

	g, err := encode.ReadGraph(cfg.OutputDir(args[0]))
	if err != nil {
		return fmt.Errorf("reading graph: %w", err)
	}

	formatter, err := newFormatter(cmd, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(output.GraphReport("Knowledge Graph: "+appName(args[0]), graph.Summarize(g, top)))
}
