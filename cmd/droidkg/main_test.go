package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/droidkg/droidkg/internal/output"
	"github.com/droidkg/droidkg/internal/testutil"
	"github.com/droidkg/droidkg/pkg/config"
	"github.com/droidkg/droidkg/pkg/encode"
	"github.com/droidkg/droidkg/pkg/graph"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// resetFlags restores every flag of cmd and its subcommands to its default so
// state from one execute call does not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestInitCommand(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"toml", "droidkg.toml"},
		{"yaml", "droidkg.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", tt.file)
			if err := execute(t, "init", "-o", path, "--force=false"); err != nil {
				t.Fatalf("init failed: %v", err)
			}

			cfg, err := config.Load(path)
			if err != nil {
				t.Fatalf("generated config does not load: %v", err)
			}
			if cfg.Analysis.Timeout != config.DefaultConfig().Analysis.Timeout {
				t.Errorf("timeout = %q, want default", cfg.Analysis.Timeout)
			}

			if err := execute(t, "init", "-o", path, "--force=false"); err == nil {
				t.Error("init should refuse to overwrite without --force")
			}
			if err := execute(t, "init", "-o", path, "--force"); err != nil {
				t.Errorf("init --force failed: %v", err)
			}
		})
	}
}

func TestBuildCommandE2E(t *testing.T) {
	root := t.TempDir()
	appsRoot := filepath.Join(root, "apps")
	app1 := testutil.WriteApp(t, appsRoot, "app1")
	app2 := testutil.WriteApp(t, appsRoot, "app2")
	if err := os.Remove(filepath.Join(app2, "ir.json")); err != nil {
		t.Fatal(err)
	}

	summary := filepath.Join(root, "summary.json")
	err := execute(t, "build", "--apps-root", appsRoot, "--workers", "2", "--force=false", "-f", "json", "-o", summary)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	var rows []output.AppRow
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, summary)), &rows); err != nil {
		t.Fatalf("invalid summary JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].App != "app1" || rows[0].Outcome != "built" || rows[0].Finds != 1 {
		t.Errorf("app1 row = %+v", rows[0])
	}
	if rows[1].App != "app2" || rows[1].Outcome != "failed" || !strings.Contains(rows[1].Error, "ir.json") {
		t.Errorf("app2 row = %+v", rows[1])
	}

	if !encode.HasValidEdges(app1) {
		t.Error("app1 edge table missing")
	}
	header, err := encode.ReadEdgeHeader(encode.EdgePath(app2))
	if err != nil || !strings.HasPrefix(header, "error:") {
		t.Errorf("app2 placeholder header = %q, err = %v", header, err)
	}

	statsOut := filepath.Join(root, "stats.json")
	if err := execute(t, "stats", app1, "--top", "3", "-f", "json", "-o", statsOut); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var sum graph.Summary
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, statsOut)), &sum); err != nil {
		t.Fatalf("invalid stats JSON: %v", err)
	}
	if sum.ByRelation["FIND"] != 1 || sum.ByRelation["EVENT"] != 1 {
		t.Errorf("relations = %v", sum.ByRelation)
	}
	if len(sum.TopRanked) != 3 {
		t.Errorf("top ranked = %d, want 3", len(sum.TopRanked))
	}
}

func TestBuildTextStatusLines(t *testing.T) {
	root := t.TempDir()
	app := testutil.WriteApp(t, root, "app1")
	out := filepath.Join(root, "build.txt")

	if err := execute(t, "build", app, "--force=false", "-f", "text", "-o", out); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if text := testutil.ReadFile(t, out); !strings.Contains(text, "1 built, 0 skipped, 0 failed") {
		t.Errorf("first build output missing totals:\n%s", text)
	}

	if err := execute(t, "build", app, "--force=false", "-f", "text", "-o", out); err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	text := testutil.ReadFile(t, out)
	if !strings.Contains(text, "app1: skipped (up to date)") {
		t.Errorf("second build output missing skip line:\n%s", text)
	}
	if !strings.Contains(text, "0 built, 1 skipped, 0 failed") {
		t.Errorf("second build output missing totals:\n%s", text)
	}
}

func TestBuildAllFailed(t *testing.T) {
	root := t.TempDir()
	app := testutil.WriteApp(t, root, "broken")
	if err := os.Remove(filepath.Join(app, "callgraph.csv")); err != nil {
		t.Fatal(err)
	}

	err := execute(t, "build", app, "--force=false", "-f", "json", "-o", filepath.Join(root, "out.json"))
	if err == nil {
		t.Fatal("build should fail when every application fails")
	}
}

func TestBuildNoWorkDirs(t *testing.T) {
	err := execute(t, "build", "--apps-root", "", "-o", "")
	if err == nil || !strings.Contains(err.Error(), "no work directories") {
		t.Errorf("err = %v, want missing work directories", err)
	}
}

func TestBuildInvalidTimeout(t *testing.T) {
	root := t.TempDir()
	app := testutil.WriteApp(t, root, "app1")
	t.Cleanup(func() { _ = buildCmd.Flags().Set("timeout", config.DefaultConfig().Analysis.Timeout) })
	err := execute(t, "build", app, "--timeout", "soon", "-o", filepath.Join(root, "out.txt"))
	if err == nil {
		t.Error("build should reject an invalid timeout")
	}
}

func TestLayoutCommand(t *testing.T) {
	root := t.TempDir()
	app := testutil.WriteApp(t, root, "app1")
	out := filepath.Join(root, "layout.md")

	if err := execute(t, "layout", app, "-f", "markdown", "-o", out); err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	md := testutil.ReadFile(t, out)
	for _, want := range []string{"# Layout: app1", "## Elements", "| activity_main.xml | Button | CONTROL | 7f010000 | Hello |"} {
		if !strings.Contains(md, want) {
			t.Errorf("layout output missing %q:\n%s", want, md)
		}
	}
}

func TestLinksCommand(t *testing.T) {
	root := t.TempDir()
	app := testutil.WriteApp(t, root, "app1")
	out := filepath.Join(root, "links.json")

	if err := execute(t, "links", app, "--timeout", "1m", "-f", "json", "-o", out); err != nil {
		t.Fatalf("links failed: %v", err)
	}
	info, err := encode.ReadAddInfo(filepath.Join(app, encode.InfoFile))
	if err != nil {
		t.Fatalf("add_info.json: %v", err)
	}
	if got := info.FindEdges["7f010000"]; len(got) != 1 || got[0] != testutil.AppOnCreate {
		t.Errorf("find edges = %v", got)
	}
	if !strings.Contains(testutil.ReadFile(t, out), `"finds": 1`) {
		t.Errorf("links summary = %s", testutil.ReadFile(t, out))
	}
}

func TestStatsMissingGraph(t *testing.T) {
	if err := execute(t, "stats", t.TempDir(), "-o", ""); err == nil {
		t.Error("stats should fail without a graph")
	}
}
