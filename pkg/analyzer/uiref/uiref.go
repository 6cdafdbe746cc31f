// Package uiref recovers which methods look up which views and which fields
// end up holding them.
package uiref

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/droidkg/droidkg/pkg/analyzer/api"
	"github.com/droidkg/droidkg/pkg/ir"
	"github.com/droidkg/droidkg/pkg/uiid"
)

// DefaultExcludedPrefixes are class prefixes never scanned.
var DefaultExcludedPrefixes = []string{
	"android.", "androidx.", "java.", "javax.", "sun.", "com.sun.", "kotlin.", "kotlinx.",
}

// FieldKey identifies a declared field.
type FieldKey struct {
	Class string
	Name  string
}

// Binding is the view stored in a field and the layout active when it was
// looked up. Layout is empty when no layout could be attributed.
type Binding struct {
	UID    string
	Layout string
}

// Result collects find edges and field bindings across methods.
type Result struct {
	// Finds maps a view id to the methods that look it up, in discovery order.
	Finds      map[string][]string
	Bindings   map[FieldKey]Binding
	Unresolved int
	Methods    int

	seen map[string]bool
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{
		Finds:    make(map[string][]string),
		Bindings: make(map[FieldKey]Binding),
		seen:     make(map[string]bool),
	}
}

// AddFind records uid -> method once.
func (r *Result) AddFind(uid, method string) {
	key := uid + "\x00" + method
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.Finds[uid] = append(r.Finds[uid], method)
}

// FieldsOf returns the bound fields declared by class, sorted by name.
func (r *Result) FieldsOf(class string) []FieldKey {
	var out []FieldKey
	for k := range r.Bindings {
		if k.Class == class {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the binding of a field, trying the declaring class first and
// then the enclosing class of the access.
func (r *Result) Lookup(field *ir.FieldRef, enclosing string) (Binding, bool) {
	if field == nil {
		return Binding{}, false
	}
	if b, ok := r.Bindings[FieldKey{Class: field.Class, Name: field.Name}]; ok {
		return b, true
	}
	b, ok := r.Bindings[FieldKey{Class: enclosing, Name: field.Name}]
	return b, ok
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithExcludedPrefixes replaces the class prefixes that are never scanned.
func WithExcludedPrefixes(prefixes []string) Option {
	return func(r *Resolver) {
		r.excluded = prefixes
	}
}

// Resolver scans method bodies for view lookups.
type Resolver struct {
	logger   *log.Logger
	excluded []string
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		logger:   log.New(io.Discard),
		excluded: DefaultExcludedPrefixes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Eligible reports whether methods of class are scanned.
func (r *Resolver) Eligible(class string) bool {
	for _, p := range r.excluded {
		if strings.HasPrefix(class, p) {
			return false
		}
	}
	return true
}

// Scan runs ScanMethod over every eligible method. When ctx is done the scan
// stops and the partial result is returned along with ctx.Err().
func (r *Resolver) Scan(ctx context.Context, prog *ir.Program) (*Result, error) {
	res := NewResult()
	for _, c := range prog.Classes {
		if !r.Eligible(c.Name) {
			continue
		}
		for _, m := range c.Methods {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			r.ScanMethod(m, res)
		}
	}
	return res, nil
}

// tracker is the single-value cursor carried across instructions.
type tracker struct {
	active bool
	local  string
	uid    string
	layout string
}

func (t *tracker) reset() {
	*t = tracker{}
}

// refersTo reports whether v is the tracked local, possibly behind casts.
func (t *tracker) refersTo(v *ir.Value) bool {
	u := api.Unwrap(v)
	return u != nil && u.Kind == ir.KindLocal && u.Name == t.local
}

// ScanMethod walks one body top to bottom.
func (r *Resolver) ScanMethod(m *ir.Method, res *Result) {
	if len(m.Body) == 0 {
		return
	}
	res.Methods++

	var cur tracker
	layouts := make(map[string]string)

	for _, ins := range m.Body {
		call := ins.Call()

		if api.IsFindView(call) {
			cur.reset()
			arg := call.Args[0]
			if arg.Kind != ir.KindInt {
				res.Unresolved++
				r.logger.Debug("view id not constant", "method", m.Signature, "arg", arg.String())
				continue
			}
			uid := uiid.FromInt(arg.Int)
			res.AddFind(uid, m.Signature)
			if local, ok := ins.DefinedLocal(); ok {
				layout := ""
				if base, ok := api.BaseLocal(call); ok {
					layout = layouts[base]
				}
				cur = tracker{active: true, local: local, uid: uid, layout: layout}
			}
			continue
		}

		if cur.active {
			r.step(&cur, ins, res)
		}

		r.noteLayout(ins, call, layouts)
	}
}

// step advances the cursor over one instruction following a lookup.
func (r *Resolver) step(cur *tracker, ins *ir.Instr, res *Result) {
	if !ins.IsAssign() {
		cur.reset()
		return
	}
	switch {
	case (ins.LHS.Kind == ir.KindField || ins.LHS.Kind == ir.KindStaticField) && cur.refersTo(ins.RHS):
		if ins.LHS.Field != nil {
			key := FieldKey{Class: ins.LHS.Field.Class, Name: ins.LHS.Field.Name}
			res.Bindings[key] = Binding{UID: cur.uid, Layout: cur.layout}
		}
		cur.reset()
	case ins.LHS.Kind == ir.KindLocal && cur.refersTo(ins.RHS):
		cur.local = ins.LHS.Name
	default:
		cur.reset()
	}
}

// noteLayout remembers which layout each receiver was bound to.
func (r *Resolver) noteLayout(ins *ir.Instr, call *ir.InvokeExpr, layouts map[string]string) {
	if call == nil {
		return
	}
	if api.IsSetContentView(call) && call.Args[0].Kind == ir.KindInt {
		if base, ok := api.BaseLocal(call); ok {
			layouts[base] = uiid.FromInt(call.Args[0].Int)
		}
		return
	}
	if idx, ok := api.IsInflate(call); ok && call.Args[idx].Kind == ir.KindInt {
		if local, ok := ins.DefinedLocal(); ok {
			layouts[local] = uiid.FromInt(call.Args[idx].Int)
		}
	}
}
