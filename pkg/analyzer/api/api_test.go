package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/droidkg/droidkg/pkg/ir"
)

func call(class, name, ret string, params []string, base *ir.Value, args ...*ir.Value) *ir.InvokeExpr {
	return &ir.InvokeExpr{
		Kind:   "virtual",
		Base:   base,
		Method: ir.MethodRef{Class: class, Name: name, Return: ret, Params: params},
		Args:   args,
	}
}

var (
	r0  = &ir.Value{Kind: ir.KindLocal, Name: "r0"}
	one = &ir.Value{Kind: ir.KindInt, Int: 1}
)

func TestRecognizers(t *testing.T) {
	assert.True(t, IsFindView(call("android.app.Activity", "findViewById", "android.view.View", []string{"int"}, r0, one)))
	assert.False(t, IsFindView(call("android.app.Activity", "findViewById", "android.view.View", nil, r0)))

	assert.True(t, IsSetContentView(call("android.app.Activity", "setContentView", "void", []string{"int"}, r0, one)))
	assert.False(t, IsSetContentView(call("android.app.Activity", "setContentView", "void", []string{"android.view.View"}, r0, r0)))

	idx, ok := IsInflate(call("android.view.LayoutInflater", "inflate", "android.view.View",
		[]string{"int", "android.view.ViewGroup"}, r0, one, r0))
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	assert.True(t, IsTextSetter(call("android.widget.TextView", "setText", "void", []string{"java.lang.CharSequence"}, r0, r0), DefaultTextSetters))
	assert.False(t, IsTextSetter(call("android.widget.TextView", "setTextColor", "void", []string{"int"}, r0, one), DefaultTextSetters))

	assert.True(t, IsThreadStart(call("com.example.Worker", "start", "void", nil, r0)))
	assert.False(t, IsThreadStart(call("com.example.Worker", "start", "void", []string{"int"}, nil, one)))
	assert.True(t, IsThreadInit(call(ClassThread, "<init>", "void", []string{ClassRunnable}, r0, r0)))

	assert.Equal(t, "<a.B: void run()>", RunSignature("a.B"))
}

func TestUnwrap(t *testing.T) {
	v := &ir.Value{Kind: ir.KindCast, Type: "android.widget.Button",
		Operand: &ir.Value{Kind: ir.KindCast, Type: "android.view.View", Operand: r0}}
	assert.Same(t, r0, Unwrap(v))
	assert.Nil(t, Unwrap(nil))
}
