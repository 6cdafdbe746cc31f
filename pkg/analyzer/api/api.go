// Package api recognizes the Android and Java library calls the link
// extractors key on.
package api

import (
	"strings"

	"github.com/droidkg/droidkg/pkg/ir"
)

const (
	ClassThread   = "java.lang.Thread"
	ClassRunnable = "java.lang.Runnable"

	threadStartPrefix = "void start("
)

// DefaultTextSetters are the calls whose first argument becomes the visible
// text of a view.
var DefaultTextSetters = []string{"setText", "setTitle", "setHint"}

// IsFindView reports a view lookup by resource id.
func IsFindView(e *ir.InvokeExpr) bool {
	if e == nil || len(e.Args) != 1 {
		return false
	}
	return e.Method.Name == "findViewById" || e.Method.Name == "requireViewById"
}

// IsSetContentView reports a call binding a layout resource to its receiver.
func IsSetContentView(e *ir.InvokeExpr) bool {
	return e.Is("setContentView", 1) && len(e.Method.Params) == 1 && e.Method.Params[0] == "int"
}

// IsInflate reports a LayoutInflater/View.inflate call whose first or second
// parameter is a layout id. It returns the index of that argument.
func IsInflate(e *ir.InvokeExpr) (int, bool) {
	if e == nil || e.Method.Name != "inflate" {
		return 0, false
	}
	for i, p := range e.Method.Params {
		if p == "int" && i < len(e.Args) && i < 2 {
			return i, true
		}
	}
	return 0, false
}

// IsTextSetter reports whether e is one of setters with at least one argument.
func IsTextSetter(e *ir.InvokeExpr, setters []string) bool {
	if e == nil || len(e.Args) == 0 || e.Base == nil {
		return false
	}
	for _, s := range setters {
		if e.Method.Name == s {
			return true
		}
	}
	return false
}

// IsStringGetter reports Context/Resources getString and getText.
func IsStringGetter(e *ir.InvokeExpr) bool {
	return e != nil && (e.Method.Name == "getString" || e.Method.Name == "getText")
}

// IsThreadStart reports a call to a no-arg start() on any receiver.
func IsThreadStart(e *ir.InvokeExpr) bool {
	return e != nil && e.Base != nil && strings.HasPrefix(e.Method.SubSignature(), threadStartPrefix)
}

// IsThreadInit reports a java.lang.Thread constructor call.
func IsThreadInit(e *ir.InvokeExpr) bool {
	return e != nil && e.Method.Class == ClassThread && e.Method.Name == "<init>"
}

// RunSignature names the run() method of a class.
func RunSignature(class string) string {
	return "<" + class + ": void run()>"
}

// BaseLocal returns the receiver local of an instance call.
func BaseLocal(e *ir.InvokeExpr) (string, bool) {
	if e == nil || e.Base == nil || e.Base.Kind != ir.KindLocal {
		return "", false
	}
	return e.Base.Name, true
}

// Unwrap strips casts and returns the underlying value.
func Unwrap(v *ir.Value) *ir.Value {
	for v != nil && v.Kind == ir.KindCast && v.Operand != nil {
		v = v.Operand
	}
	return v
}
