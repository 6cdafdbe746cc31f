package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func writeApp(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"ir.json":            `{"classes":[]}`,
		"callgraph.csv":      "caller,callee\n",
		"layout/main.xml":    "<LinearLayout/>",
		"layout/toolbar.xml": "<Toolbar/>",
		"values/public.xml":  "<resources/>",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

var inputs = []string{"ir.json", "callgraph.csv", "layout", "values/public.xml", "event.xml"}

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("hello"))
	if len(a) != 64 {
		t.Errorf("HashBytes() length = %d, want 64", len(a))
	}
	if a != HashBytes([]byte("hello")) {
		t.Error("HashBytes() should be deterministic")
	}
	if a == HashBytes([]byte("world")) {
		t.Error("different content should hash differently")
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error: %v", err)
	}
	if got != HashBytes([]byte("hello")) {
		t.Error("HashFile() should match HashBytes() of the same content")
	}
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("HashFile() should fail for a missing file")
	}
}

func TestCompute(t *testing.T) {
	dir := t.TempDir()
	writeApp(t, dir)

	fp, err := Compute(dir, inputs, "v1", "settings")
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	for _, name := range []string{"ir.json", "layout/main.xml", "layout/toolbar.xml", "values/public.xml"} {
		if fp.Inputs[name] == "" {
			t.Errorf("input %s should be hashed", name)
		}
	}
	if h, ok := fp.Inputs["event.xml"]; !ok || h != "" {
		t.Errorf("missing event.xml should be recorded empty, got %q, %v", h, ok)
	}

	again, err := Compute(dir, inputs, "v1", "settings")
	if err != nil {
		t.Fatal(err)
	}
	if !fp.Matches(again) {
		t.Error("unchanged inputs should produce the same digest")
	}

	other, _ := Compute(dir, inputs, "v1", "other settings")
	if fp.Matches(other) {
		t.Error("changed settings should change the digest")
	}
}

func TestHitAndMiss(t *testing.T) {
	dir := t.TempDir()
	writeApp(t, dir)
	c := New(filepath.Join(dir, ".droidkg-cache"), true)

	fp, _ := Compute(dir, inputs, "v1", "")
	if c.Fresh(fp) {
		t.Error("empty cache should miss")
	}
	if err := c.Store(fp); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if !c.Fresh(fp) {
		t.Error("stored fingerprint should hit")
	}

	if err := os.WriteFile(filepath.Join(dir, "layout", "main.xml"), []byte("<FrameLayout/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, _ := Compute(dir, inputs, "v1", "")
	if c.Fresh(changed) {
		t.Error("changed layout should miss")
	}

	if err := os.WriteFile(filepath.Join(dir, "event.xml"), []byte("<GUIHierarchy/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	added, _ := Compute(dir, inputs, "v1", "")
	if changed.Matches(added) {
		t.Error("new input file should change the digest")
	}

	if err := c.Invalidate(); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if c.Fresh(fp) {
		t.Error("invalidated cache should miss")
	}
	if err := c.Invalidate(); err != nil {
		t.Errorf("second Invalidate() should be a no-op, got %v", err)
	}
}

func TestDisabled(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache"), false)
	fp := &Fingerprint{Digest: "x"}

	if err := c.Store(fp); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache")); !os.IsNotExist(err) {
		t.Error("disabled cache should not create its directory")
	}
	if c.Fresh(fp) {
		t.Error("disabled cache should never hit")
	}
	if c.Enabled() {
		t.Error("Enabled() should be false")
	}
}

func TestCorruptFingerprint(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, true)
	if err := os.WriteFile(filepath.Join(dir, FingerprintFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Load(); ok {
		t.Error("corrupt fingerprint should not load")
	}
}
