package encode

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/droidkg/droidkg/pkg/analyzer/branch"
	"github.com/droidkg/droidkg/pkg/analyzer/link"
	"github.com/droidkg/droidkg/pkg/analyzer/uitext"
)

// Side-table file names in the work directory.
const (
	InfoFile          = "add_info.json"
	InCodeStringsFile = "in_code_str.json"
)

// AddInfo is the layout of add_info.json.
type AddInfo struct {
	FindEdges   map[string][]string      `json:"findEdges"`
	UseEdges    map[string][]string      `json:"useEdges"`
	SwitchEdges map[string][]branch.Pair `json:"switchEdges"`
	ThreadEdges map[string][]branch.Pair `json:"threadEdges"`
}

// NewAddInfo copies the side tables out of a link result. Every map is
// non-nil so empty tables serialize as {}.
func NewAddInfo(r *link.Result) AddInfo {
	info := AddInfo{
		FindEdges:   map[string][]string{},
		UseEdges:    map[string][]string{},
		SwitchEdges: map[string][]branch.Pair{},
		ThreadEdges: map[string][]branch.Pair{},
	}
	if r == nil {
		return info
	}
	for k, v := range r.Finds {
		info.FindEdges[k] = v
	}
	for k, v := range r.Uses {
		info.UseEdges[k] = v
	}
	for k, v := range r.Switches {
		info.SwitchEdges[k] = v
	}
	for k, v := range r.Threads {
		info.ThreadEdges[k] = v
	}
	return info
}

// WriteAddInfo writes add_info.json.
func WriteAddInfo(path string, r *link.Result) error {
	return writeJSON(path, NewAddInfo(r))
}

// ReadAddInfo reads add_info.json.
func ReadAddInfo(path string) (*AddInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info AddInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &info, nil
}

// LayoutNamer maps a layout id to its resource name.
type LayoutNamer func(id string) (string, bool)

// InCodeStrings groups text records by layout file. Each line is
// "id class method setter value" with double quotes turned into single ones.
func InCodeStrings(texts map[string]uitext.Record, names LayoutNamer) map[string][]string {
	out := make(map[string][]string)
	for _, key := range sortedKeys(texts) {
		rec := texts[key]
		group := rec.Layout
		if group == "" {
			group = "unknown"
		} else if names != nil {
			if name, ok := names(rec.Layout); ok {
				group = name + ".xml"
			}
		}
		line := strings.Join([]string{
			rec.UID, rec.Class, rec.Method, rec.Setter,
			strings.ReplaceAll(rec.Text, `"`, "'"),
		}, " ")
		out[group] = append(out[group], line)
	}
	return out
}

// WriteInCodeStrings writes in_code_str.json.
func WriteInCodeStrings(path string, texts map[string]uitext.Record, names LayoutNamer) error {
	return writeJSON(path, InCodeStrings(texts, names))
}

// writeJSON keeps signatures readable: "<" and ">" are not escaped.
func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
