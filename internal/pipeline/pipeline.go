// Package pipeline runs the full knowledge-graph build for one application
// work directory: load the front-end outputs, build the layout graph, extract
// code links, assemble and write.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/droidkg/droidkg/internal/cache"
	"github.com/droidkg/droidkg/internal/logging"
	"github.com/droidkg/droidkg/pkg/analyzer/layout"
	"github.com/droidkg/droidkg/pkg/analyzer/link"
	"github.com/droidkg/droidkg/pkg/callgraph"
	"github.com/droidkg/droidkg/pkg/config"
	"github.com/droidkg/droidkg/pkg/encode"
	"github.com/droidkg/droidkg/pkg/events"
	"github.com/droidkg/droidkg/pkg/graph"
	"github.com/droidkg/droidkg/pkg/ir"
	"github.com/droidkg/droidkg/pkg/resources"
)

// IRFile is the program dump produced by the bytecode front end.
const IRFile = "ir.json"

// ErrFrontEnd is returned when a required front-end output is missing or
// unreadable.
var ErrFrontEnd = errors.New("front-end output unavailable")

// ErrRuntime is returned when building an application panicked.
var ErrRuntime = errors.New("runtime error")

// Skip reasons.
const (
	SkipUpToDate   = "up to date"
	SkipPrevFailed = "previous run failed"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithForce rebuilds applications that already have output.
func WithForce(force bool) Option {
	return func(p *Pipeline) {
		p.force = force
	}
}

// WithVersion sets the version recorded in input fingerprints.
func WithVersion(v string) Option {
	return func(p *Pipeline) {
		p.version = v
	}
}

// Pipeline builds knowledge graphs with one configuration.
type Pipeline struct {
	cfg     *config.Config
	logger  *log.Logger
	force   bool
	version string
}

// New creates a Pipeline. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	p := &Pipeline{
		cfg:     cfg,
		logger:  logging.Discard(),
		force:   cfg.Batch.Force,
		version: "dev",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result describes one application run.
type Result struct {
	App        string        `json:"app"`
	Skipped    bool          `json:"skipped,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Partial    bool          `json:"partial,omitempty"`
	Layout     layout.Stats  `json:"layout"`
	Links      link.Stats    `json:"links"`
	Graph      encode.Stats  `json:"graph"`
	Duration   time.Duration `json:"duration"`
}

// Inputs are the work-directory entries that determine the output.
func (p *Pipeline) Inputs() []string {
	return []string{
		IRFile,
		callgraph.File,
		p.cfg.Layout.Dir,
		resources.PublicFile,
		resources.StringsFile,
		events.File,
	}
}

// Run builds and writes the graph of one application. It returns a skipped
// result when the output is current. A front-end failure leaves a
// placeholder edge file behind and wraps ErrFrontEnd; a panic does the same
// and wraps ErrRuntime.
func (p *Pipeline) Run(ctx context.Context, workDir string) (res *Result, err error) {
	var pc panics.Catcher
	pc.Try(func() { res, err = p.run(ctx, workDir) })
	r := pc.Recovered()
	if r == nil {
		return res, err
	}

	app := filepath.Base(filepath.Clean(workDir))
	p.logger.Error("runtime failure", "app", app, "err", r.Value)
	p.logger.Debug("runtime failure stack", "app", app, "stack", string(r.Stack))
	msg := fmt.Sprintf("runtime error: %v", r.Value)
	if perr := encode.WritePlaceholder(p.cfg.OutputDir(workDir), msg); perr != nil {
		p.logger.Warn("writing placeholder", "app", app, "err", perr)
	}
	_ = cache.New(p.cfg.CacheDir(workDir), p.cfg.Cache.Enabled).Invalidate()
	return nil, fmt.Errorf("%w: %v", ErrRuntime, r.Value)
}

func (p *Pipeline) run(ctx context.Context, workDir string) (*Result, error) {
	start := time.Now()
	res := &Result{App: filepath.Base(filepath.Clean(workDir))}
	logger := p.logger.With("app", res.App)
	outDir := p.cfg.OutputDir(workDir)
	c := cache.New(p.cfg.CacheDir(workDir), p.cfg.Cache.Enabled)

	fp, err := cache.Compute(workDir, p.Inputs(), p.version, p.settings())
	if err != nil {
		return nil, fmt.Errorf("fingerprinting inputs: %w", err)
	}

	if reason, skip := p.skip(outDir, c, fp); skip {
		logger.Info("skipping", "reason", reason)
		res.Skipped, res.SkipReason = true, reason
		res.Duration = time.Since(start)
		return res, nil
	}

	front, err := p.loadFrontEnd(workDir, logger)
	if err != nil {
		if perr := encode.WritePlaceholder(outDir, err.Error()); perr != nil {
			logger.Warn("writing placeholder", "err", perr)
		}
		_ = c.Invalidate()
		return nil, err
	}

	layoutGraph, layoutStats, err := p.buildLayout(ctx, workDir, front.res, logger)
	if err != nil {
		return nil, err
	}
	res.Layout = layoutStats

	links, partial, err := p.extract(ctx, front, logger)
	if err != nil {
		return nil, err
	}
	res.Links = links.Stats
	res.Partial = partial

	calls, _ := front.calls.Build()
	g, gstats, err := encode.Assemble(encode.Input{
		Calls:  calls,
		Layout: layoutGraph,
		Links:  links,
		Events: front.events,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("assembling graph: %w", err)
	}
	res.Graph = gstats

	if err := p.write(outDir, g, links, front.res); err != nil {
		return nil, err
	}

	if partial {
		_ = c.Invalidate()
	} else if err := c.Store(fp); err != nil {
		logger.Warn("storing fingerprint", "err", err)
	}

	res.Duration = time.Since(start)
	logger.Info("graph written",
		"nodes", gstats.Nodes, "edges", gstats.Edges,
		"finds", gstats.Finds, "uses", gstats.Uses, "events", gstats.Events,
		"elapsed", res.Duration.Round(time.Millisecond))
	return res, nil
}

// skip decides whether existing output can stand. A placeholder is honored
// until forced; a real edge table is kept while the fingerprint matches, or
// always when caching is off.
func (p *Pipeline) skip(outDir string, c *cache.Cache, fp *cache.Fingerprint) (string, bool) {
	if p.force {
		return "", false
	}
	if encode.HasValidEdges(outDir) {
		if !c.Enabled() || c.Fresh(fp) {
			return SkipUpToDate, true
		}
		return "", false
	}
	if _, err := os.Stat(encode.EdgePath(outDir)); err == nil {
		return SkipPrevFailed, true
	}
	return "", false
}

// settings is the part of the configuration that changes the output.
func (p *Pipeline) settings() string {
	data, _ := json.Marshal(struct {
		Analysis config.AnalysisConfig
		Layout   config.LayoutConfig
	}{p.cfg.Analysis, p.cfg.Layout})
	return string(data)
}

type frontEnd struct {
	prog   *ir.Program
	calls  *callgraph.Graph
	res    *resources.Table
	events *events.Mapping
}

func (p *Pipeline) loadFrontEnd(workDir string, logger *log.Logger) (*frontEnd, error) {
	prog, err := ir.LoadFile(filepath.Join(workDir, IRFile), ir.LoadOptions{
		Strict: p.cfg.Analysis.StrictSchema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFrontEnd, IRFile, err)
	}
	calls, err := callgraph.LoadFile(filepath.Join(workDir, callgraph.File))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFrontEnd, callgraph.File, err)
	}
	table, err := resources.Load(workDir, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: resources: %v", ErrFrontEnd, err)
	}
	mapping, err := LoadEvents(workDir, logger)
	if err != nil {
		return nil, err
	}
	return &frontEnd{prog: prog, calls: calls, res: table, events: mapping}, nil
}

// LoadEvents reads event.xml. A missing file yields an empty mapping.
func LoadEvents(workDir string, logger *log.Logger) (*events.Mapping, error) {
	mapping, err := events.LoadFile(filepath.Join(workDir, events.File))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("no event mapping found", "path", events.File)
		return &events.Mapping{}, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %v", ErrFrontEnd, events.File, err)
	}
	return mapping, nil
}

func (p *Pipeline) buildLayout(ctx context.Context, workDir string, table *resources.Table, logger *log.Logger) (*graph.Store, layout.Stats, error) {
	b := layout.New(p.cfg.LayoutDir(workDir), table,
		layout.WithLogger(logger),
		layout.WithExclude(p.cfg.Layout.Exclude))
	g, stats, err := b.Build(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("building layout graph: %w", err)
	}
	return g, stats, nil
}

// extract runs link extraction under the analysis timeout. When the timeout
// fires the stages finished so far are kept and partial is true.
func (p *Pipeline) extract(ctx context.Context, front *frontEnd, logger *log.Logger) (*link.Result, bool, error) {
	timeout, err := p.cfg.Analysis.TimeoutDuration()
	if err != nil {
		return nil, false, err
	}
	tctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	links, err := link.Extract(tctx, front.prog, front.res, front.events, p.LinkOptions(logger))
	switch {
	case err == nil:
		return links, false, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		logger.Warn("analysis timed out, keeping partial results", "timeout", timeout)
		return links, true, nil
	default:
		return nil, false, fmt.Errorf("extracting links: %w", err)
	}
}

// LinkOptions maps the analysis configuration onto extractor options.
func (p *Pipeline) LinkOptions(logger *log.Logger) link.Options {
	return link.Options{
		ExcludedPrefixes: p.cfg.Analysis.ExcludedPrefixes,
		TextSetters:      p.cfg.Analysis.TextSetters,
		SliceLimit:       p.cfg.Analysis.MaxSliceDepth,
		Logger:           logger,
	}
}

func (p *Pipeline) write(outDir string, g *graph.Store, links *link.Result, table *resources.Table) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	if err := WriteSideTables(outDir, links, table); err != nil {
		return err
	}
	if err := encode.WriteGraph(outDir, g); err != nil {
		return fmt.Errorf("writing graph: %w", err)
	}
	return nil
}

// WriteSideTables writes add_info.json and in_code_str.json. Layout ids are
// named through the resource table.
func WriteSideTables(outDir string, links *link.Result, table *resources.Table) error {
	if err := encode.WriteAddInfo(filepath.Join(outDir, encode.InfoFile), links); err != nil {
		return fmt.Errorf("writing %s: %w", encode.InfoFile, err)
	}
	namer := func(id string) (string, bool) {
		return table.Name(resources.TypeLayout, id)
	}
	if err := encode.WriteInCodeStrings(filepath.Join(outDir, encode.InCodeStringsFile), links.Texts, namer); err != nil {
		return fmt.Errorf("writing %s: %w", encode.InCodeStringsFile, err)
	}
	return nil
}

// Layout builds only the layout graph of an application.
func (p *Pipeline) Layout(ctx context.Context, workDir string) (*graph.Store, layout.Stats, error) {
	logger := p.logger.With("app", filepath.Base(filepath.Clean(workDir)))
	table, err := resources.Load(workDir, logger)
	if err != nil {
		return nil, layout.Stats{}, fmt.Errorf("%w: resources: %v", ErrFrontEnd, err)
	}
	return p.buildLayout(ctx, workDir, table, logger)
}

// Links runs link extraction alone and writes the side tables. The call
// graph is not needed. partial is true when the analysis timeout fired.
func (p *Pipeline) Links(ctx context.Context, workDir string) (links *link.Result, partial bool, err error) {
	logger := p.logger.With("app", filepath.Base(filepath.Clean(workDir)))
	prog, err := ir.LoadFile(filepath.Join(workDir, IRFile), ir.LoadOptions{
		Strict: p.cfg.Analysis.StrictSchema,
		Logger: logger,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrFrontEnd, IRFile, err)
	}
	table, err := resources.Load(workDir, logger)
	if err != nil {
		return nil, false, fmt.Errorf("%w: resources: %v", ErrFrontEnd, err)
	}
	mapping, err := LoadEvents(workDir, logger)
	if err != nil {
		return nil, false, err
	}

	front := &frontEnd{prog: prog, res: table, events: mapping}
	links, partial, err = p.extract(ctx, front, logger)
	if err != nil {
		return nil, false, err
	}

	outDir := p.cfg.OutputDir(workDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, false, err
	}
	if err := WriteSideTables(outDir, links, table); err != nil {
		return nil, false, err
	}
	return links, partial, nil
}
