// Package link runs UI-reference resolution, string resolution and branch
// scoping over one program and gathers their outputs.
package link

import (
	"context"
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/droidkg/droidkg/pkg/analyzer/branch"
	"github.com/droidkg/droidkg/pkg/analyzer/uiref"
	"github.com/droidkg/droidkg/pkg/analyzer/uitext"
	"github.com/droidkg/droidkg/pkg/events"
	"github.com/droidkg/droidkg/pkg/ir"
)

// Options tunes extraction. Zero values fall back to package defaults.
type Options struct {
	ExcludedPrefixes []string
	TextSetters      []string
	SliceLimit       int
	Logger           *log.Logger
}

// Stats counts what each stage did.
type Stats struct {
	Methods         int `json:"methods"`
	Finds           int `json:"finds"`
	Bindings        int `json:"bindings"`
	UnresolvedFinds int `json:"unresolved_finds"`
	Texts           int `json:"texts"`
	SkippedTexts    int `json:"skipped_texts"`
	Events          int `json:"events"`
	MissingHandlers int `json:"missing_handlers"`
	ScopedHandlers  int `json:"scoped_handlers"`
	WholeHandlers   int `json:"whole_handlers"`
	Threads         int `json:"threads"`
}

// Result is everything the code side contributes to the graph.
type Result struct {
	Finds    map[string][]string
	Uses     map[string][]string
	Switches map[string][]branch.Pair
	Threads  map[string][]branch.Pair
	Texts    map[string]uitext.Record
	Bindings map[uiref.FieldKey]uiref.Binding
	Stats    Stats
}

// Extract runs the three stages in order. If ctx is done part way, the
// stages completed so far are returned with ctx.Err().
func Extract(ctx context.Context, prog *ir.Program, strings uitext.StringTable, mapping *events.Mapping, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if mapping == nil {
		mapping = &events.Mapping{}
	}

	refOpts := []uiref.Option{uiref.WithLogger(logger)}
	if len(opts.ExcludedPrefixes) > 0 {
		refOpts = append(refOpts, uiref.WithExcludedPrefixes(opts.ExcludedPrefixes))
	}
	resolver := uiref.New(refOpts...)

	res := &Result{
		Finds:    map[string][]string{},
		Uses:     map[string][]string{},
		Switches: map[string][]branch.Pair{},
		Threads:  map[string][]branch.Pair{},
		Texts:    map[string]uitext.Record{},
		Bindings: map[uiref.FieldKey]uiref.Binding{},
	}

	refs, err := resolver.Scan(ctx, prog)
	res.absorbRefs(refs)
	if err != nil {
		return res, err
	}
	logger.Debug("ui references resolved", "finds", len(refs.Finds), "fields", len(refs.Bindings))

	texts, err := uitext.New(refs, strings, resolver.Eligible,
		uitext.WithLogger(logger),
		uitext.WithSetters(opts.TextSetters),
		uitext.WithSliceLimit(opts.SliceLimit),
	).Scan(ctx, prog)
	res.absorbTexts(texts)
	if err != nil {
		return res, err
	}
	logger.Debug("ui text resolved", "records", len(texts.Records), "skipped", texts.Skipped)

	scoped, err := branch.New(prog, refs,
		branch.WithLogger(logger),
		branch.WithSliceLimit(opts.SliceLimit),
	).Scope(ctx, mapping.Events)
	res.Stats.Events = len(mapping.Events)
	res.absorbBranches(scoped)
	if err != nil {
		return res, err
	}
	logger.Debug("handlers scoped", "scoped", scoped.Scoped, "whole", scoped.Whole, "missing", scoped.Missing)

	return res, nil
}

func (r *Result) absorbRefs(refs *uiref.Result) {
	if refs == nil {
		return
	}
	for uid, ms := range refs.Finds {
		r.Finds[uid] = append(r.Finds[uid], ms...)
		r.Stats.Finds += len(ms)
	}
	for k, b := range refs.Bindings {
		r.Bindings[k] = b
	}
	r.Stats.Bindings = len(refs.Bindings)
	r.Stats.UnresolvedFinds = refs.Unresolved
	r.Stats.Methods = refs.Methods
}

func (r *Result) absorbTexts(texts *uitext.Result) {
	if texts == nil {
		return
	}
	for k, rec := range texts.Records {
		r.Texts[k] = rec
	}
	for uid, ms := range texts.Uses {
		r.addUses(uid, ms)
	}
	r.Stats.Texts = len(texts.Records)
	r.Stats.SkippedTexts = texts.Skipped
}

func (r *Result) absorbBranches(b *branch.Result) {
	if b == nil {
		return
	}
	for uid, ms := range b.Uses {
		r.addUses(uid, ms)
	}
	for k, ps := range b.Switches {
		r.Switches[k] = append(r.Switches[k], ps...)
	}
	for k, ps := range b.Threads {
		r.Threads[k] = append(r.Threads[k], ps...)
		r.Stats.Threads += len(ps)
	}
	r.Stats.MissingHandlers = b.Missing
	r.Stats.ScopedHandlers = b.Scoped
	r.Stats.WholeHandlers = b.Whole
}

func (r *Result) addUses(uid string, methods []string) {
	have := make(map[string]bool, len(r.Uses[uid]))
	for _, m := range r.Uses[uid] {
		have[m] = true
	}
	for _, m := range methods {
		if !have[m] {
			have[m] = true
			r.Uses[uid] = append(r.Uses[uid], m)
		}
	}
}

// UIDs returns every id that has a find or use edge, sorted.
func (r *Result) UIDs() []string {
	set := make(map[string]bool, len(r.Finds)+len(r.Uses))
	for uid := range r.Finds {
		set[uid] = true
	}
	for uid := range r.Uses {
		set[uid] = true
	}
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}
