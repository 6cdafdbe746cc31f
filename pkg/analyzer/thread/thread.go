// Package thread resolves Thread.start() call sites to the run() method that
// actually executes.
package thread

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/droidkg/droidkg/pkg/analyzer/api"
	"github.com/droidkg/droidkg/pkg/analyzer/flow"
	"github.com/droidkg/droidkg/pkg/ir"
)

// Delegation is a start() site and its resolved run() target.
type Delegation struct {
	Index  int
	Target string
}

// Detect inspects instruction at and, when it starts a thread, returns the
// run() signature it delegates to.
func Detect(w *flow.Walker, at int) (string, bool) {
	call := w.At(at).Call()
	if !api.IsThreadStart(call) {
		return "", false
	}
	recv, ok := api.BaseLocal(call)
	if !ok {
		return "", false
	}
	if target, ok := fromSubclass(w, recv, at); ok {
		return target, true
	}
	return fromRunnable(w, recv, at)
}

// DetectAll scans a whole method.
func DetectAll(m *ir.Method, limit int) []Delegation {
	w := flow.New(m, limit)
	var out []Delegation
	for i := range m.Body {
		if target, ok := Detect(w, i); ok {
			out = append(out, Delegation{Index: i, Target: target})
		}
	}
	return out
}

// fromSubclass walks the receiver back to its allocation. A subclass of
// Thread runs its own run().
func fromSubclass(w *flow.Walker, local string, at int) (string, bool) {
	typ, ok := allocatedType(w, local, at)
	if !ok || typ == api.ClassThread {
		return "", false
	}
	return api.RunSignature(typ), true
}

// fromRunnable finds the Thread(Runnable) constructor applied to the
// receiver and names the Runnable's run().
func fromRunnable(w *flow.Walker, local string, at int) (string, bool) {
	var ctor *ir.InvokeExpr
	var ctorAt int
	idx, found := w.Find(at, func(_ int, ins *ir.Instr) bool {
		call := ins.Call()
		if !api.IsThreadInit(call) || !call.Base.IsLocal(local) {
			return false
		}
		ctor = call
		return true
	})
	if !found {
		return "", false
	}
	ctorAt = idx

	for i, p := range ctor.Method.Params {
		if p != api.ClassRunnable || i >= len(ctor.Args) {
			continue
		}
		arg := api.Unwrap(ctor.Args[i])
		if arg.Type != "" && arg.Type != api.ClassRunnable {
			return api.RunSignature(arg.Type), true
		}
		if arg.Kind != ir.KindLocal {
			return "", false
		}
		typ, ok := allocatedType(w, arg.Name, ctorAt)
		if !ok || typ == api.ClassRunnable {
			return "", false
		}
		return api.RunSignature(typ), true
	}
	return "", false
}

// allocatedType follows copies and casts of local back to a "new T".
func allocatedType(w *flow.Walker, local string, at int) (string, bool) {
	chain := roaring.New()
	for {
		def, ok := w.Def(local, at)
		if !ok || !chain.CheckedAdd(uint32(def)) {
			return "", false
		}
		rhs := api.Unwrap(w.At(def).RHS)
		switch {
		case rhs == nil:
			return "", false
		case rhs.Kind == ir.KindNew:
			return rhs.Type, rhs.Type != ""
		case rhs.Kind == ir.KindLocal:
			local, at = rhs.Name, def
		default:
			return "", false
		}
	}
}
