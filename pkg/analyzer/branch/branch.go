// Package branch attributes handler code to the view whose id selects it,
// by scoping to the switch case or if block that tests that id.
package branch

import (
	"context"
	"io"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/charmbracelet/log"

	"github.com/droidkg/droidkg/pkg/analyzer/flow"
	"github.com/droidkg/droidkg/pkg/analyzer/thread"
	"github.com/droidkg/droidkg/pkg/analyzer/uiref"
	"github.com/droidkg/droidkg/pkg/events"
	"github.com/droidkg/droidkg/pkg/ir"
	"github.com/droidkg/droidkg/pkg/uiid"
)

// Pair is a (handler, target) side-table entry. The JSON field names are the
// ones downstream noise filters read.
type Pair struct {
	Method string `json:"_1"`
	Target string `json:"_2"`
}

// Result holds use edges and the switch and thread side tables.
type Result struct {
	Uses     map[string][]string
	Switches map[string][]Pair
	Threads  map[string][]Pair

	Missing int
	Scoped  int
	Whole   int

	seen map[string]bool
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{
		Uses:     make(map[string][]string),
		Switches: make(map[string][]Pair),
		Threads:  make(map[string][]Pair),
		seen:     make(map[string]bool),
	}
}

func (r *Result) once(parts ...string) bool {
	key := strings.Join(parts, "\x00")
	if r.seen[key] {
		return false
	}
	r.seen[key] = true
	return true
}

func (r *Result) addUse(uid, method string) {
	if r.once("use", uid, method) {
		r.Uses[uid] = append(r.Uses[uid], method)
	}
}

func (r *Result) addSwitch(key string, p Pair) {
	if r.once("switch", key, p.Method, p.Target) {
		r.Switches[key] = append(r.Switches[key], p)
	}
}

func (r *Result) addThread(key string, p Pair) {
	if r.once("thread", key, p.Method, p.Target) {
		r.Threads[key] = append(r.Threads[key], p)
	}
}

// Option configures a Scoper.
type Option func(*Scoper)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scoper) {
		s.logger = l
	}
}

// WithSliceLimit caps backward queries made by thread detection.
func WithSliceLimit(n int) Option {
	return func(s *Scoper) {
		s.limit = n
	}
}

// Scoper runs branch scoping for event handlers.
type Scoper struct {
	logger   *log.Logger
	limit    int
	methods  map[string]*ir.Method
	bindings *uiref.Result
}

// New creates a Scoper over a program and the field bindings found in it.
func New(prog *ir.Program, bindings *uiref.Result, opts ...Option) *Scoper {
	s := &Scoper{
		logger:   log.New(io.Discard),
		methods:  prog.Lookup(),
		bindings: bindings,
	}
	if s.bindings == nil {
		s.bindings = uiref.NewResult()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scope processes every event. A cancelled ctx stops early and returns the
// partial result.
func (s *Scoper) Scope(ctx context.Context, evs []events.Event) (*Result, error) {
	res := NewResult()
	for _, ev := range evs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.ScopeEvent(ev, res)
	}
	return res, nil
}

// ScopeEvent attributes one handler to one view.
func (s *Scoper) ScopeEvent(ev events.Event, res *Result) {
	m, ok := s.methods[ev.Handler]
	if !ok || len(m.Body) == 0 {
		res.Missing++
		s.logger.Warn("handler method not found", "handler", ev.Handler, "uid", ev.UID)
		return
	}

	key := uiid.ScopeKey(ev.UID, ev.Layout)
	block := Blocks(m, ev.UID)
	w := flow.New(m, s.limit)
	fields := s.bindings.FieldsOf(m.Class)

	whole := block.IsEmpty()
	if whole {
		res.Whole++
	} else {
		res.Scoped++
	}
	res.addUse(ev.UID, m.Signature)

	for i, ins := range m.Body {
		if !whole && !block.Contains(uint32(i)) {
			continue
		}
		if target, ok := thread.Detect(w, i); ok {
			res.addThread(key, Pair{Method: m.Signature, Target: target})
		}
		if call := ins.Call(); call != nil {
			res.addSwitch(key, Pair{Method: m.Signature, Target: call.String()})
		}
		text := ins.String()
		for _, f := range fields {
			if strings.Contains(text, " "+f.Name+">") {
				res.addUse(s.bindings.Bindings[f].UID, m.Signature)
			}
		}
	}
}

// Blocks returns the instructions of m guarded by a switch case or an if
// that tests uid. An empty set means no UI-specific branching was found.
func Blocks(m *ir.Method, uid string) *roaring.Bitmap {
	block := roaring.New()
	switchBlocks(m, uid, block)
	ifBlocks(m, uid, block)
	return block
}

func switchBlocks(m *ir.Method, uid string, block *roaring.Bitmap) {
	n := len(m.Body)
	for _, ins := range m.Body {
		if ins.Op != ir.OpSwitch {
			continue
		}
		matched := false
		bounds := roaring.New()
		for _, c := range ins.Cases {
			bounds.Add(uint32(c.Target))
			if uiid.FromInt(c.Value) == uid {
				matched = true
			}
		}
		if !matched {
			// An ordinary switch over small integers.
			continue
		}
		if ins.Default != nil {
			bounds.Add(uint32(*ins.Default))
		}
		for _, c := range ins.Cases {
			if uiid.FromInt(c.Value) == uid {
				walk(c.Target, n, bounds, block)
			}
		}
	}
}

// ifBlocks marks the code guarded by each "if" that tests uid. An "==" test
// guards its jump target. A "!=" test jumps away when the id does not match,
// so it guards the fall-through instruction instead. Either walk stops at the
// next branch target.
func ifBlocks(m *ir.Method, uid string, block *roaring.Bitmap) {
	n := len(m.Body)
	bounds := roaring.New()
	for _, ins := range m.Body {
		if ins.Op == ir.OpIf && ins.Target != nil {
			bounds.Add(uint32(*ins.Target))
		}
	}
	decimal := uiid.Decimal(uid)
	for i, ins := range m.Body {
		if ins.Op != ir.OpIf || ins.Target == nil || !testsID(ins, uid, decimal) {
			continue
		}
		if ins.Cond != nil && ins.Cond.Op == "!=" {
			// "if id != X goto else" guards the fall-through path.
			walk(i+1, n, bounds, block)
			continue
		}
		walk(*ins.Target, n, bounds, block)
	}
}

// walk adds start and every following instruction up to the next boundary.
func walk(start, n int, bounds, block *roaring.Bitmap) {
	if start < 0 || start >= n {
		return
	}
	block.Add(uint32(start))
	for i := start + 1; i < n && !bounds.Contains(uint32(i)); i++ {
		block.Add(uint32(i))
	}
}

func testsID(ins *ir.Instr, uid, decimal string) bool {
	if c := ins.Cond; c != nil {
		for _, v := range []*ir.Value{c.Left, c.Right} {
			if v != nil && v.Kind == ir.KindInt && uiid.FromInt(v.Int) == uid {
				return true
			}
		}
	}
	return containsNumber(ins.String(), decimal)
}

// containsNumber reports whether num occurs in text as a whole number.
func containsNumber(text, num string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], num)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(num)
		if (start == 0 || !isDigit(text[start-1])) && (end == len(text) || !isDigit(text[end])) {
			return true
		}
		from = start + 1
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
