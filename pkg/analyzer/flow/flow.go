// Package flow provides bounded backward searches over a method body's
// control-flow predecessors.
package flow

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/droidkg/droidkg/pkg/ir"
)

// Walker answers "nearest preceding instruction that ..." queries for one
// method. Every query visits each instruction at most once, so loops in the
// body cannot make it spin.
type Walker struct {
	body    []*ir.Instr
	preds   [][]int
	limit   int
	visited *roaring.Bitmap
}

// New builds the predecessor lists of m. limit caps the number of
// instructions a single query may visit; zero means the method length.
func New(m *ir.Method, limit int) *Walker {
	n := len(m.Body)
	if limit <= 0 || limit > n {
		limit = n
	}
	return &Walker{
		body:    m.Body,
		preds:   predecessors(m.Body),
		limit:   limit,
		visited: roaring.New(),
	}
}

func predecessors(body []*ir.Instr) [][]int {
	n := len(body)
	preds := make([][]int, n)
	for i, ins := range body {
		if i+1 < n && ins.Op != ir.OpGoto && ins.Op != ir.OpReturn {
			preds[i+1] = append(preds[i+1], i)
		}
		for _, t := range ins.Targets() {
			if t >= 0 && t < n {
				preds[t] = append(preds[t], i)
			}
		}
	}
	// Handler blocks have no explicit predecessor in the IR; fall back to
	// textual order so their lookups still reach earlier definitions.
	for i := 1; i < n; i++ {
		if len(preds[i]) == 0 {
			preds[i] = []int{i - 1}
		}
	}
	return preds
}

// Preds returns the control-flow predecessors of instruction i.
func (w *Walker) Preds(i int) []int {
	if i < 0 || i >= len(w.preds) {
		return nil
	}
	return w.preds[i]
}

// Find searches backward from (but excluding) from, breadth first, and
// returns the nearest instruction accepted by match.
func (w *Walker) Find(from int, match func(i int, ins *ir.Instr) bool) (int, bool) {
	w.visited.Clear()
	queue := append([]int(nil), w.Preds(from)...)
	for len(queue) > 0 && int(w.visited.GetCardinality()) < w.limit {
		i := queue[0]
		queue = queue[1:]
		if !w.visited.CheckedAdd(uint32(i)) {
			continue
		}
		if match(i, w.body[i]) {
			return i, true
		}
		queue = append(queue, w.preds[i]...)
	}
	return -1, false
}

// Def returns the nearest instruction before from that assigns local.
func (w *Walker) Def(local string, from int) (int, bool) {
	return w.Find(from, func(_ int, ins *ir.Instr) bool {
		name, ok := ins.DefinedLocal()
		return ok && name == local
	})
}

// Len returns the number of instructions in the body.
func (w *Walker) Len() int {
	return len(w.body)
}

// At returns instruction i.
func (w *Walker) At(i int) *ir.Instr {
	return w.body[i]
}
