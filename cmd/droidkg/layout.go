package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/droidkg/droidkg/internal/output"
	"github.com/droidkg/droidkg/internal/pipeline"
	"github.com/droidkg/droidkg/pkg/graph"
)

var layoutCmd = &cobra.Command{
	Use:   "layout <workdir>",
	Short: "Build only the layout graph and print its elements",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

func init() {
	addOutputFlags(layoutCmd)
	rootCmd.AddCommand(layoutCmd)
}

func runLayout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lc, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer lc.Close()

	g, stats, err := pipeline.New(cfg, pipeline.WithLogger(lc.Logger)).Layout(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	formatter, err := newFormatter(cmd, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(&output.Report{
		Title:    "Layout: " + appName(args[0]),
		Sections: []output.Renderable{output.LayoutTable(stats), nodeTable(g)},
		Data: struct {
			Stats any          `json:"stats" toon:"stats"`
			Nodes []graph.Node `json:"nodes" toon:"nodes"`
		}{stats, g.Nodes()},
	})
}

// nodeTable lists UI elements ordered by layout file, in insertion order
// within a file.
func nodeTable(g *graph.Store) *output.Table {
	nodes := append([]graph.Node(nil), g.Nodes()...)
	attr := func(n graph.Node, key string) string {
		v, _ := n.Attr(key)
		return v
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return attr(nodes[i], graph.AttrXML) < attr(nodes[j], graph.AttrXML)
	})
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			attr(n, graph.AttrXML), n.Name, n.Label.String(),
			attr(n, graph.AttrID), attr(n, graph.AttrText),
		})
	}
	return output.NewTable("Elements", []string{"File", "Tag", "Label", "Id", "Text"}, rows, nil, nodes)
}
