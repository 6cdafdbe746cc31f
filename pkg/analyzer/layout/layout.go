// Package layout turns decoded layout XML files into CONTROL and CONTAINER
// nodes joined by HOLD edges.
package layout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/droidkg/droidkg/pkg/graph"
	"github.com/droidkg/droidkg/pkg/resources"
	"github.com/droidkg/droidkg/pkg/uiid"
)

// Dir is the layout directory inside an application work directory.
const Dir = "layout"

// Resources answers the lookups needed to resolve attribute references.
type Resources interface {
	StringByID(id string) (string, bool)
	StringByName(name string) (string, bool)
	Name(typ, id string) (string, bool)
	ID(typ, name string) (string, bool)
}

// Stats counts what a build produced.
type Stats struct {
	Files      int `json:"files"`
	Controls   int `json:"controls"`
	Containers int `json:"containers"`
	Edges      int `json:"edges"`
	Texts      int `json:"texts"`
	Includes   int `json:"includes"`
	Skipped    int `json:"skipped"`
}

// Nodes is the total element count.
func (s Stats) Nodes() int {
	return s.Controls + s.Containers
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithExclude skips layout files matching gitignore-style patterns, relative
// to the layout directory.
func WithExclude(patterns []string) Option {
	return func(b *Builder) {
		if len(patterns) == 0 {
			return
		}
		ps := make([]gitignore.Pattern, 0, len(patterns))
		for _, p := range patterns {
			ps = append(ps, gitignore.ParsePattern(p, nil))
		}
		b.exclude = gitignore.NewMatcher(ps)
	}
}

// Builder builds the layout graph of one application.
type Builder struct {
	dir     string
	res     Resources
	logger  *log.Logger
	exclude gitignore.Matcher
}

// New creates a Builder over dir. res may be nil, in which case references
// are left unresolved.
func New(dir string, res Resources, opts ...Option) *Builder {
	if res == nil {
		res = resources.New()
	}
	b := &Builder{
		dir:    dir,
		res:    res,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// accumulator is the per-top-level-file traversal state.
type accumulator struct {
	counts map[string]int
	stack  map[string]bool
}

func newAccumulator() *accumulator {
	return &accumulator{counts: make(map[string]int), stack: make(map[string]bool)}
}

// Build parses every layout file and returns the resulting graph. A missing
// layout directory yields an empty graph. ctx is checked between files.
func (b *Builder) Build(ctx context.Context) (*graph.Store, Stats, error) {
	store := graph.NewStore()
	var stats Stats

	files, err := b.files()
	if errors.Is(err, fs.ErrNotExist) {
		b.logger.Warn("no layout directory", "dir", b.dir)
		return store, stats, nil
	}
	if err != nil {
		return store, stats, fmt.Errorf("listing layouts: %w", err)
	}

	trees := make(map[string]*element, len(files))
	for _, name := range files {
		root, err := parseFile(filepath.Join(b.dir, filepath.FromSlash(name)))
		if err != nil {
			stats.Skipped++
			b.logger.Warn("skipping malformed layout", "file", name, "err", err)
			continue
		}
		trees[name] = root
	}

	subs := make(map[string]bool)
	for name, root := range trees {
		b.collectIncludes(root, name, subs)
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return store, stats, err
		}
		root, ok := trees[name]
		if !ok || subs[name] {
			continue
		}
		stats.Files++
		acc := newAccumulator()
		acc.stack[name] = true
		b.walk(root, name, nil, acc, trees, store, &stats)
	}
	return store, stats, nil
}

// files lists layout files relative to the layout dir, slash separated and
// sorted.
func (b *Builder) files() ([]string, error) {
	if _, err := os.Stat(b.dir); err != nil {
		return nil, err
	}
	var out []string
	err := filepath.WalkDir(b.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(b.dir, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && b.excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".xml") || b.excluded(rel, false) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (b *Builder) excluded(rel string, isDir bool) bool {
	return b.exclude != nil && b.exclude.Match(strings.Split(rel, "/"), isDir)
}

func parseFile(path string) (*element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// collectIncludes records every layout that from includes.
func (b *Builder) collectIncludes(el *element, from string, subs map[string]bool) {
	if el.isInclude() {
		if v, ok := el.attr("layout"); ok {
			if name, ok := b.layoutFile(v); ok && name != from {
				subs[name] = true
			}
		}
	}
	for _, c := range el.Children {
		b.collectIncludes(c, from, subs)
	}
}

// walk visits el in pre-order, adding its node and a HOLD edge from parent.
func (b *Builder) walk(el *element, file string, parent *graph.Node, acc *accumulator,
	trees map[string]*element, store *graph.Store, stats *Stats) {
	label := classify(el.Tag)
	if label == graph.LabelContainer {
		stats.Containers++
	} else {
		stats.Controls++
	}

	acc.counts[el.Tag]++
	xmlName := xmlAttr(file)
	rawID, _ := el.attr("id")
	salt := xmlName + strconv.Itoa(acc.counts[el.Tag]) + rawID

	node := graph.NewSaltedNode(el.Tag, label, salt)
	node.SetAttr(graph.AttrXML, xmlName)
	if rawID != "" {
		node.SetAttr(graph.AttrID, b.resolveID(rawID))
	}
	if v, ok := el.attr("text"); ok {
		node.SetAttr(graph.AttrText, b.resolveText(v))
		stats.Texts++
	}
	if v, ok := el.attr("hint"); ok {
		node.SetAttr(graph.AttrHint, b.resolveText(v))
	}
	for _, key := range []string{graph.AttrSrc, graph.AttrBackground} {
		if v, ok := el.attr(key); ok {
			node.SetAttr(key, b.resolveDrawable(v))
		}
	}

	var included string
	if el.isInclude() {
		stats.Includes++
		if v, ok := el.attr("layout"); ok {
			node.SetAttr(graph.AttrLayout, v)
			if name, ok := b.layoutFile(v); ok {
				node.SetAttr(graph.AttrLayout, name)
				included = name
			}
		}
	}

	store.AddNode(node)
	if parent != nil && store.AddEdge(graph.NewEdge(*parent, node, graph.RelHold)) {
		stats.Edges++
	}

	for _, c := range el.Children {
		b.walk(c, file, &node, acc, trees, store, stats)
	}

	if included == "" {
		return
	}
	sub, ok := trees[included]
	switch {
	case !ok:
		b.logger.Debug("included layout not found", "file", file, "layout", included)
	case acc.stack[included]:
		b.logger.Warn("include cycle", "file", file, "layout", included)
	default:
		acc.stack[included] = true
		b.walk(sub, included, &node, acc, trees, store, stats)
		delete(acc.stack, included)
	}
}

// classify returns CONTAINER for tags ending in "layout" or "container".
func classify(tag string) graph.Label {
	t := strings.ToLower(tag)
	if strings.HasSuffix(t, "layout") || strings.HasSuffix(t, "container") {
		return graph.LabelContainer
	}
	return graph.LabelControl
}

// xmlAttr is the file name as stored on nodes; nested directories are joined
// with ':'.
func xmlAttr(file string) string {
	return strings.ReplaceAll(file, "/", ":")
}

// reference splits "@type/name" or "@+type/name" into its parts.
func reference(v string) (typ, name string, ok bool) {
	if !strings.HasPrefix(v, "@") {
		return "", "", false
	}
	rest := strings.TrimPrefix(v[1:], "+")
	i := strings.Index(rest, "/")
	if i < 0 || i == len(rest)-1 {
		return "", "", false
	}
	typ, name = rest[:i], rest[i+1:]
	if j := strings.Index(typ, ":"); j >= 0 {
		typ = typ[j+1:]
	}
	return typ, name, true
}

// resolveID turns "@7f010000" or "@+id/name" into a canonical id. Values
// that cannot be resolved are returned unchanged.
func (b *Builder) resolveID(v string) string {
	if _, name, ok := reference(v); ok {
		if id, ok := b.res.ID(resources.TypeID, name); ok {
			return id
		}
		return v
	}
	if strings.HasPrefix(v, "@") {
		if id, err := uiid.Parse(v); err == nil {
			return id
		}
	}
	return v
}

// resolveText resolves "@string/name" by name and "@<hex>" by id. Anything
// else is a literal.
func (b *Builder) resolveText(v string) string {
	if _, name, ok := reference(v); ok {
		if s, ok := b.res.StringByName(name); ok {
			return s
		}
		return v
	}
	if len(v) > 1 && strings.HasPrefix(v, "@") {
		if s, ok := b.res.StringByID(v); ok {
			return s
		}
	}
	return v
}

// resolveDrawable reduces a drawable reference to its resource name.
func (b *Builder) resolveDrawable(v string) string {
	if _, name, ok := reference(v); ok {
		return name
	}
	if len(v) > 1 && strings.HasPrefix(v, "@") {
		if name, ok := b.res.Name(resources.TypeDrawable, v); ok {
			return name
		}
	}
	return v
}

// layoutFile maps an include reference to a layout file name.
func (b *Builder) layoutFile(v string) (string, bool) {
	if _, name, ok := reference(v); ok {
		return name + ".xml", true
	}
	if strings.HasPrefix(v, "@") {
		if name, ok := b.res.Name(resources.TypeLayout, v); ok {
			return name + ".xml", true
		}
	}
	return "", false
}
