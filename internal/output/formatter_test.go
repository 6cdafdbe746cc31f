package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/droidkg/droidkg/pkg/analyzer/layout"
	"github.com/droidkg/droidkg/pkg/analyzer/link"
	"github.com/droidkg/droidkg/pkg/graph"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"TEXT", FormatText},
		{"json", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"toon", FormatTOON},
		{"TOON", FormatTOON},
		{"", FormatText},
		{"unknown", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f, err := NewFormatter(FormatJSON, path, true)
	if err != nil {
		t.Fatalf("NewFormatter() error: %v", err)
	}
	if f.colored {
		t.Error("file output should disable color")
	}
	if err := f.Output(map[string]int{"nodes": 3}); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"nodes": 3`) {
		t.Errorf("unexpected file content: %s", data)
	}
}

func TestNewFormatterInvalidPath(t *testing.T) {
	_, err := NewFormatter(FormatText, filepath.Join(t.TempDir(), "missing", "out.txt"), false)
	if err == nil {
		t.Error("expected error for unwritable path")
	}
}

func newBufferFormatter(format Format) (*Formatter, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Formatter{format: format, writer: &buf}, &buf
}

func TestTableRenderFormats(t *testing.T) {
	table := NewTable("Layout Graph", []string{"Metric", "Value"},
		[][]string{{"Controls", "4"}, {"Containers", "1"}}, []string{"Total", "5"}, nil)

	t.Run("text", func(t *testing.T) {
		f, buf := newBufferFormatter(FormatText)
		if err := f.Output(table); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"Layout Graph", "Controls", "Containers", "5"} {
			if !strings.Contains(out, want) {
				t.Errorf("text output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("markdown", func(t *testing.T) {
		f, buf := newBufferFormatter(FormatMarkdown)
		if err := f.Output(table); err != nil {
			t.Fatal(err)
		}
		want := "## Layout Graph\n\n| Metric | Value |\n| --- | --- |\n| Controls | 4 |\n| Containers | 1 |\n| Total | 5 |\n\n"
		if buf.String() != want {
			t.Errorf("markdown output = %q, want %q", buf.String(), want)
		}
	})

	t.Run("json rows", func(t *testing.T) {
		f, buf := newBufferFormatter(FormatJSON)
		if err := f.Output(table); err != nil {
			t.Fatal(err)
		}
		var rows []map[string]string
		if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(rows) != 2 || rows[0]["Metric"] != "Controls" || rows[1]["Value"] != "1" {
			t.Errorf("unexpected rows: %v", rows)
		}
	})

	t.Run("toon", func(t *testing.T) {
		f, buf := newBufferFormatter(FormatTOON)
		if err := f.Output(table); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "Controls") {
			t.Errorf("toon output missing row data: %s", buf.String())
		}
	})
}

func TestSectionRender(t *testing.T) {
	s := &Section{
		Title:   "App",
		Content: "com.example",
		Sections: []Section{
			{Title: "Layout", Content: "5 nodes"},
		},
	}

	f, buf := newBufferFormatter(FormatText)
	if err := f.Output(s); err != nil {
		t.Fatal(err)
	}
	want := "App\n===\ncom.example\n\nLayout\n------\n5 nodes\n"
	if buf.String() != want {
		t.Errorf("text = %q, want %q", buf.String(), want)
	}

	f, buf = newBufferFormatter(FormatMarkdown)
	if err := f.Output(s); err != nil {
		t.Fatal(err)
	}
	want = "## App\n\ncom.example\n\n### Layout\n\n5 nodes\n\n"
	if buf.String() != want {
		t.Errorf("markdown = %q, want %q", buf.String(), want)
	}
}

func TestOutputRaw(t *testing.T) {
	data := map[string]any{"edges": 9}

	f, buf := newBufferFormatter(FormatMarkdown)
	if err := f.Output(data); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "```json\n") || !strings.HasSuffix(buf.String(), "```\n") {
		t.Errorf("markdown raw output not fenced: %q", buf.String())
	}

	f, buf = newBufferFormatter(FormatText)
	if err := f.Output(data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"edges": 9`) {
		t.Errorf("text raw output = %q", buf.String())
	}
}

func TestMessageMethods(t *testing.T) {
	f, buf := newBufferFormatter(FormatText)
	f.Success("built %d apps", 2)
	f.Warning("skipped %s", "app1")
	f.Error("failed %s", "app2")
	f.Info("done")

	want := "built 2 apps\nWARNING: skipped app1\nERROR: failed app2\ndone\n"
	if buf.String() != want {
		t.Errorf("messages = %q, want %q", buf.String(), want)
	}
}

func TestMessageMethodsSilentForStructuredFormats(t *testing.T) {
	f, buf := newBufferFormatter(FormatJSON)
	f.Warning("skipped %s", "app1")
	f.Success("done")
	if buf.Len() != 0 {
		t.Errorf("json output got status lines: %q", buf.String())
	}
}

func TestBuildTable(t *testing.T) {
	rows := []AppRow{
		{App: "app1", Outcome: "built", Nodes: 10, Edges: 12, Finds: 2, Uses: 3, Events: 1, Duration: "1s"},
		{App: "app2", Outcome: "built", Partial: true},
		{App: "app3", Outcome: "skipped"},
		{App: "app4", Outcome: "failed", Error: "missing ir.json"},
	}
	table := BuildTable(rows)

	if len(table.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(table.Rows))
	}
	if table.Rows[1][1] != "built (partial)" {
		t.Errorf("partial outcome = %q", table.Rows[1][1])
	}
	if table.Rows[3][1] != "failed: missing ir.json" {
		t.Errorf("failed outcome = %q", table.Rows[3][1])
	}
	if table.Footer[1] != "2 built, 1 skipped, 1 failed" {
		t.Errorf("footer = %q", table.Footer[1])
	}

	f, buf := newBufferFormatter(FormatJSON)
	if err := f.Output(table); err != nil {
		t.Fatal(err)
	}
	var decoded []AppRow
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 4 || decoded[0].Nodes != 10 || !decoded[1].Partial {
		t.Errorf("decoded rows = %+v", decoded)
	}
}

func TestStatsTables(t *testing.T) {
	lt := LayoutTable(layout.Stats{Files: 2, Controls: 4, Containers: 1, Edges: 4})
	if lt.Rows[0][1] != "2" || lt.Rows[2][1] != "4" {
		t.Errorf("layout rows = %v", lt.Rows)
	}

	kt := LinkTable(link.Stats{Finds: 3, Events: 2, ScopedHandlers: 1})
	found := false
	for _, r := range kt.Rows {
		if r[0] == "Branch-scoped handlers" && r[1] == "1" {
			found = true
		}
	}
	if !found {
		t.Errorf("link rows missing scoped handlers: %v", kt.Rows)
	}
}

func TestGraphReport(t *testing.T) {
	s := graph.NewStore()
	a := graph.NewNode("<A: void onCreate()>", graph.LabelMethod)
	b := graph.NewNode("<A: void helper()>", graph.LabelMethod)
	s.AddNode(a)
	s.AddNode(b)
	s.AddEdge(graph.NewEdge(a, b, graph.RelCall))

	r := GraphReport("app1", graph.Summarize(s, 5))
	if len(r.Sections) != 4 {
		t.Fatalf("sections = %d, want 4", len(r.Sections))
	}

	f, buf := newBufferFormatter(FormatMarkdown)
	if err := f.Output(r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"# app1", "## Nodes by Label", "| METHOD | 2 |", "| CALL | 1 |", "## Top Ranked"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}
