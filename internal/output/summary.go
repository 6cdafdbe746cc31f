package output

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/droidkg/droidkg/pkg/analyzer/layout"
	"github.com/droidkg/droidkg/pkg/analyzer/link"
	"github.com/droidkg/droidkg/pkg/graph"
)

// AppRow is one line of a batch build summary.
type AppRow struct {
	App      string `json:"app" toon:"app"`
	Outcome  string `json:"outcome" toon:"outcome"`
	Nodes    int    `json:"nodes" toon:"nodes"`
	Edges    int    `json:"edges" toon:"edges"`
	Finds    int    `json:"finds" toon:"finds"`
	Uses     int    `json:"uses" toon:"uses"`
	Events   int    `json:"events" toon:"events"`
	Partial  bool   `json:"partial,omitempty" toon:"partial,omitempty"`
	Duration string `json:"duration,omitempty" toon:"duration,omitempty"`
	Error    string `json:"error,omitempty" toon:"error,omitempty"`
}

// BuildTable renders a batch summary. The footer carries outcome totals.
func BuildTable(rows []AppRow) *Table {
	var built, skipped, failed int
	body := make([][]string, 0, len(rows))
	for _, r := range rows {
		switch r.Outcome {
		case "built":
			built++
		case "skipped":
			skipped++
		case "failed":
			failed++
		}
		outcome := r.Outcome
		if r.Partial {
			outcome += " (partial)"
		}
		if r.Error != "" {
			outcome += ": " + r.Error
		}
		body = append(body, []string{
			r.App, outcome,
			strconv.Itoa(r.Nodes), strconv.Itoa(r.Edges),
			strconv.Itoa(r.Finds), strconv.Itoa(r.Uses), strconv.Itoa(r.Events),
			r.Duration,
		})
	}
	footer := []string{
		fmt.Sprintf("%d apps", len(rows)),
		fmt.Sprintf("%d built, %d skipped, %d failed", built, skipped, failed),
		"", "", "", "", "", "",
	}
	return NewTable("Knowledge Graph Build",
		[]string{"App", "Outcome", "Nodes", "Edges", "Find", "Use", "Event", "Time"},
		body, footer, rows)
}

// LayoutTable renders layout graph statistics.
func LayoutTable(st layout.Stats) *Table {
	rows := [][]string{
		{"Layout files", strconv.Itoa(st.Files)},
		{"Skipped files", strconv.Itoa(st.Skipped)},
		{"Controls", strconv.Itoa(st.Controls)},
		{"Containers", strconv.Itoa(st.Containers)},
		{"Hold edges", strconv.Itoa(st.Edges)},
		{"Texts", strconv.Itoa(st.Texts)},
		{"Includes", strconv.Itoa(st.Includes)},
	}
	return NewTable("Layout Graph", []string{"Metric", "Value"}, rows, nil, st)
}

// LinkTable renders link extraction statistics.
func LinkTable(st link.Stats) *Table {
	rows := [][]string{
		{"Methods", strconv.Itoa(st.Methods)},
		{"Find sites", strconv.Itoa(st.Finds)},
		{"Unresolved finds", strconv.Itoa(st.UnresolvedFinds)},
		{"Field bindings", strconv.Itoa(st.Bindings)},
		{"Text records", strconv.Itoa(st.Texts)},
		{"Skipped texts", strconv.Itoa(st.SkippedTexts)},
		{"Events", strconv.Itoa(st.Events)},
		{"Missing handlers", strconv.Itoa(st.MissingHandlers)},
		{"Branch-scoped handlers", strconv.Itoa(st.ScopedHandlers)},
		{"Whole-method handlers", strconv.Itoa(st.WholeHandlers)},
		{"Thread switches", strconv.Itoa(st.Threads)},
	}
	return NewTable("UI Links", []string{"Metric", "Value"}, rows, nil, st)
}

// GraphReport renders a graph summary: totals, label and relation breakdowns
// and the most central nodes.
func GraphReport(title string, sum *graph.Summary) *Report {
	totals := NewTable("Totals", []string{"Metric", "Value"}, [][]string{
		{"Nodes", strconv.Itoa(sum.Nodes)},
		{"Edges", strconv.Itoa(sum.Edges)},
		{"Components", strconv.Itoa(sum.Components)},
		{"Largest component", strconv.Itoa(sum.LargestComponent)},
		{"Linked UI nodes", strconv.Itoa(sum.LinkedControls)},
	}, nil, nil)

	sections := []Renderable{
		totals,
		countTable("Nodes by Label", "Label", sum.ByLabel),
		countTable("Edges by Relation", "Relation", sum.ByRelation),
	}
	if len(sum.TopRanked) > 0 {
		rows := make([][]string, 0, len(sum.TopRanked))
		for _, n := range sum.TopRanked {
			rows = append(rows, []string{
				n.Name, n.Label.String(),
				fmt.Sprintf("%.4f", n.PageRank), strconv.Itoa(n.InDegree),
			})
		}
		sections = append(sections, NewTable("Top Ranked",
			[]string{"Name", "Label", "PageRank", "In"}, rows, nil, sum.TopRanked))
	}
	return &Report{Title: title, Sections: sections, Data: sum}
}

func countTable(title, key string, counts map[string]int) *Table {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	return NewTable(title, []string{key, "Count"}, rows, nil, counts)
}
