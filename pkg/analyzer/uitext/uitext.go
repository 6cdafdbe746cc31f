// Package uitext resolves the hardcoded text that methods assign to views
// through setText, setTitle and setHint.
package uitext

import (
	"context"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/charmbracelet/log"

	"github.com/droidkg/droidkg/pkg/analyzer/api"
	"github.com/droidkg/droidkg/pkg/analyzer/flow"
	"github.com/droidkg/droidkg/pkg/analyzer/uiref"
	"github.com/droidkg/droidkg/pkg/ir"
	"github.com/droidkg/droidkg/pkg/uiid"
)

// StringTable resolves string resources by id.
type StringTable interface {
	StringByID(id string) (string, bool)
}

// Record is one hardcoded string attached to a view.
type Record struct {
	UID    string `json:"uid"`
	Layout string `json:"layout"`
	Class  string `json:"class"`
	Method string `json:"method"`
	Setter string `json:"setter"`
	Text   string `json:"text"`
}

// Result holds records keyed by "uid@layout" and the use edges implied by
// resolved setter receivers.
type Result struct {
	Records map[string]Record
	Uses    map[string][]string
	Skipped int

	seenUse map[string]bool
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{
		Records: make(map[string]Record),
		Uses:    make(map[string][]string),
		seenUse: make(map[string]bool),
	}
}

// Keys returns record keys in sorted order.
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.Records))
	for k := range r.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Result) addUse(uid, method string) {
	key := uid + "\x00" + method
	if r.seenUse[key] {
		return
	}
	r.seenUse[key] = true
	r.Uses[uid] = append(r.Uses[uid], method)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithSetters replaces the recognized setter names.
func WithSetters(names []string) Option {
	return func(r *Resolver) {
		if len(names) > 0 {
			r.setters = names
		}
	}
}

// WithSliceLimit caps how many instructions one backward query may visit.
func WithSliceLimit(n int) Option {
	return func(r *Resolver) {
		r.limit = n
	}
}

// Resolver walks setter call sites backward to their view and value.
type Resolver struct {
	logger   *log.Logger
	setters  []string
	limit    int
	strings  StringTable
	bindings *uiref.Result
	eligible func(class string) bool
}

// New creates a Resolver over the field bindings found by uiref.
func New(bindings *uiref.Result, strings StringTable, eligible func(string) bool, opts ...Option) *Resolver {
	r := &Resolver{
		logger:   log.New(io.Discard),
		setters:  api.DefaultTextSetters,
		strings:  strings,
		bindings: bindings,
		eligible: eligible,
	}
	if r.bindings == nil {
		r.bindings = uiref.NewResult()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scan resolves every setter in every eligible method. A cancelled ctx stops
// the scan and returns what was resolved so far.
func (r *Resolver) Scan(ctx context.Context, prog *ir.Program) (*Result, error) {
	res := NewResult()
	for _, c := range prog.Classes {
		if r.eligible != nil && !r.eligible(c.Name) {
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

// target is the view a setter writes to.
type target struct {
	uid    string
	layout string
}

// ScanMethod resolves the setters of one method.
func (r *Resolver) ScanMethod(m *ir.Method, res *Result) {
	if len(m.Body) == 0 {
		return
	}
	w := flow.New(m, r.limit)
	for i, ins := range m.Body {
		call := ins.Call()
		if !api.IsTextSetter(call, r.setters) {
			continue
		}

		tgt, ok := r.resolveView(w, m, i, call.Base)
		if !ok {
			res.Skipped++
			r.logger.Debug("setter receiver unresolved", "method", m.Signature, "at", i)
			continue
		}
		res.addUse(tgt.uid, m.Signature)

		if tgt.layout == "" {
			res.Skipped++
			r.logger.Debug("setter layout unresolved", "method", m.Signature, "uid", tgt.uid)
			continue
		}

		text, ok := r.resolveText(w, i, call)
		if !ok {
			res.Skipped++
			r.logger.Debug("setter text unresolved", "method", m.Signature, "uid", tgt.uid)
			continue
		}
		res.Records[uiid.TextKey(tgt.uid, tgt.layout)] = Record{
			UID:    tgt.uid,
			Layout: tgt.layout,
			Class:  m.Class,
			Method: m.Name,
			Setter: call.Method.Name,
			Text:   text,
		}
	}
}

// resolveView follows the receiver back to a bound field or to the
// findViewById call that produced it.
func (r *Resolver) resolveView(w *flow.Walker, m *ir.Method, at int, recv *ir.Value) (target, bool) {
	recv = api.Unwrap(recv)
	if recv == nil {
		return target{}, false
	}
	if recv.Kind == ir.KindField || recv.Kind == ir.KindStaticField {
		return r.fromField(recv.Field, m.Class)
	}
	if recv.Kind != ir.KindLocal {
		return target{}, false
	}

	chain := roaring.New()
	local, from := recv.Name, at
	for {
		def, ok := w.Def(local, from)
		if !ok || !chain.CheckedAdd(uint32(def)) {
			return target{}, false
		}
		rhs := api.Unwrap(w.At(def).RHS)
		switch {
		case rhs == nil:
			return target{}, false
		case rhs.Kind == ir.KindLocal:
			local, from = rhs.Name, def
		case rhs.Kind == ir.KindField || rhs.Kind == ir.KindStaticField:
			return r.fromField(rhs.Field, m.Class)
		case rhs.Kind == ir.KindInvoke && api.IsFindView(rhs.Invoke):
			arg := rhs.Invoke.Args[0]
			if arg.Kind != ir.KindInt {
				return target{}, false
			}
			tgt := target{uid: uiid.FromInt(arg.Int)}
			if base, ok := api.BaseLocal(rhs.Invoke); ok {
				tgt.layout = r.resolveLayout(w, base, def)
			}
			return tgt, true
		default:
			return target{}, false
		}
	}
}

func (r *Resolver) fromField(field *ir.FieldRef, enclosing string) (target, bool) {
	b, ok := r.bindings.Lookup(field, enclosing)
	if !ok {
		return target{}, false
	}
	return target{uid: b.UID, layout: b.Layout}, true
}

// resolveLayout finds the layout bound to the lookup receiver: the nearest
// setContentView(const) on it, or the inflate(const) that created it.
func (r *Resolver) resolveLayout(w *flow.Walker, receiver string, from int) string {
	var layout string
	w.Find(from, func(_ int, ins *ir.Instr) bool {
		call := ins.Call()
		if api.IsSetContentView(call) && call.Base.IsLocal(receiver) {
			if arg := call.Args[0]; arg.Kind == ir.KindInt {
				layout = uiid.FromInt(arg.Int)
			}
			return true
		}
		if local, ok := ins.DefinedLocal(); ok && local == receiver {
			if idx, ok := api.IsInflate(call); ok && call.Args[idx].Kind == ir.KindInt {
				layout = uiid.FromInt(call.Args[idx].Int)
			}
			return true
		}
		return false
	})
	return layout
}

// resolveText resolves the setter's first argument to a literal.
func (r *Resolver) resolveText(w *flow.Walker, at int, call *ir.InvokeExpr) (string, bool) {
	arg := call.Args[0]
	if len(call.Method.Params) > 0 && call.Method.Params[0] == "int" {
		return r.resolveResource(w, at, arg)
	}
	return r.resolveString(w, at, arg, roaring.New())
}

// resolveResource handles setText(int) style calls.
func (r *Resolver) resolveResource(w *flow.Walker, at int, arg *ir.Value) (string, bool) {
	arg = api.Unwrap(arg)
	chain := roaring.New()
	for arg != nil && arg.Kind == ir.KindLocal {
		def, ok := w.Def(arg.Name, at)
		if !ok || !chain.CheckedAdd(uint32(def)) {
			return "", false
		}
		arg, at = api.Unwrap(w.At(def).RHS), def
	}
	if arg == nil || arg.Kind != ir.KindInt {
		return "", false
	}
	return r.lookupString(arg.Int)
}

func (r *Resolver) lookupString(id int64) (string, bool) {
	if r.strings == nil {
		return "", false
	}
	return r.strings.StringByID(uiid.FromInt(id))
}

// resolveString follows assignment chains from v until a literal is found.
// chain holds the definitions already followed.
func (r *Resolver) resolveString(w *flow.Walker, at int, v *ir.Value, chain *roaring.Bitmap) (string, bool) {
	v = api.Unwrap(v)
	if v == nil {
		return "", false
	}
	switch v.Kind {
	case ir.KindString:
		return v.Str, true
	case ir.KindInt:
		return r.lookupString(v.Int)
	case ir.KindLocal:
		def, ok := w.Def(v.Name, at)
		if !ok || !chain.CheckedAdd(uint32(def)) {
			return "", false
		}
		ins := w.At(def)
		if !ins.IsAssign() {
			return "", false
		}
		return r.resolveString(w, def, ins.RHS, chain)
	case ir.KindInvoke:
		call := v.Invoke
		if call == nil || len(call.Args) == 0 {
			return "", false
		}
		if api.IsStringGetter(call) {
			switch {
			case len(call.Args) == 2:
				return "[p] " + call.Args[0].String() + " " + call.Args[1].String(), true
			case len(call.Args) == 1 && call.Args[0].Kind == ir.KindInt:
				return r.lookupString(call.Args[0].Int)
			}
		}
		return r.resolveString(w, at, call.Args[0], chain)
	default:
		return "", false
	}
}
