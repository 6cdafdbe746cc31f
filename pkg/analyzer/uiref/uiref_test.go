package uiref

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tu "github.com/droidkg/droidkg/internal/testutil"
	"github.com/droidkg/droidkg/pkg/ir"
)

const (
	mainClass  = "com.example.MainActivity"
	layoutMain = 0x7f0c001c
	idButton   = 0x7f080001
	idLabel    = 0x7f080002
)

func TestScanMethodFieldBinding(t *testing.T) {
	m := tu.Method(mainClass, "void onCreate(android.os.Bundle)",
		tu.Identity(tu.Local("r0"), tu.This(mainClass)),
		tu.SetContentView("r0", layoutMain),
		tu.FindView("$r1", "r0", idButton),
		tu.Assign(tu.Local("$r2"), tu.Cast("android.widget.Button", tu.Local("$r1"))),
		tu.Assign(tu.Field(tu.Local("r0"), mainClass, "btn", "android.widget.Button"), tu.Local("$r2")),
		tu.Return(),
	)

	res := NewResult()
	New().ScanMethod(m, res)

	assert.Equal(t, []string{m.Signature}, res.Finds["7f080001"])
	b, ok := res.Bindings[FieldKey{Class: mainClass, Name: "btn"}]
	require.True(t, ok)
	assert.Equal(t, "7f080001", b.UID)
	assert.Equal(t, "7f0c001c", b.Layout)
}

func TestScanMethodTrackingStates(t *testing.T) {
	tests := []struct {
		name      string
		body      []*ir.Instr
		wantField bool
	}{
		{
			name: "direct store",
			body: []*ir.Instr{
				tu.FindView("$r1", "r0", idButton),
				tu.Assign(tu.Field(tu.Local("r0"), mainClass, "view", "android.view.View"), tu.Local("$r1")),
			},
			wantField: true,
		},
		{
			name: "cast in store",
			body: []*ir.Instr{
				tu.FindView("$r1", "r0", idButton),
				tu.Assign(tu.Field(tu.Local("r0"), mainClass, "view", "android.view.View"),
					tu.Cast("android.widget.Button", tu.Local("$r1"))),
			},
			wantField: true,
		},
		{
			name: "non-assignment abandons",
			body: []*ir.Instr{
				tu.FindView("$r1", "r0", idButton),
				tu.SetText(tu.Local("$r1"), tu.Str("x")),
				tu.Assign(tu.Field(tu.Local("r0"), mainClass, "view", "android.view.View"), tu.Local("$r1")),
			},
			wantField: false,
		},
		{
			name: "unrelated assignment clears",
			body: []*ir.Instr{
				tu.FindView("$r1", "r0", idButton),
				tu.Assign(tu.Local("$r9"), tu.Int(3)),
				tu.Assign(tu.Field(tu.Local("r0"), mainClass, "view", "android.view.View"), tu.Local("$r1")),
			},
			wantField: false,
		},
		{
			name: "second lookup restarts tracking",
			body: []*ir.Instr{
				tu.FindView("$r1", "r0", idLabel),
				tu.FindView("$r2", "r0", idButton),
				tu.Assign(tu.Field(tu.Local("r0"), mainClass, "view", "android.view.View"), tu.Local("$r2")),
			},
			wantField: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResult()
			New().ScanMethod(tu.Method(mainClass, "void init()", tt.body...), res)
			b, ok := res.Bindings[FieldKey{Class: mainClass, Name: "view"}]
			assert.Equal(t, tt.wantField, ok)
			if ok {
				assert.Equal(t, "7f080001", b.UID)
				assert.Empty(t, b.Layout)
			}
		})
	}
}

func TestScanMethodVariableID(t *testing.T) {
	m := tu.Method(mainClass, "void bind(int)",
		tu.AssignCall(tu.Local("$r1"), tu.Call("virtual", tu.Local("r0"), "android.app.Activity",
			"android.view.View", "findViewById", []string{"int"}, tu.Local("i0"))),
		tu.Assign(tu.Field(tu.Local("r0"), mainClass, "view", "android.view.View"), tu.Local("$r1")),
	)
	res := NewResult()
	New().ScanMethod(m, res)
	assert.Empty(t, res.Finds)
	assert.Empty(t, res.Bindings)
	assert.Equal(t, 1, res.Unresolved)
}

func TestScanMethodInflatedLayout(t *testing.T) {
	m := tu.Method("com.example.ItemFragment", "android.view.View onCreateView()",
		tu.AssignCall(tu.Local("$r2"), tu.Call("virtual", tu.Local("r1"), "android.view.LayoutInflater",
			"android.view.View", "inflate", []string{"int", "android.view.ViewGroup", "boolean"},
			tu.Int(0x7f0c0020), tu.Local("r3"), tu.Int(0))),
		tu.AssignCall(tu.Local("$r4"), tu.Call("virtual", tu.Local("$r2"), "android.view.View",
			"android.view.View", "findViewById", []string{"int"}, tu.Int(idLabel))),
		tu.Assign(tu.Field(tu.Local("r0"), "com.example.ItemFragment", "label", "android.widget.TextView"),
			tu.Local("$r4")),
	)
	res := NewResult()
	New().ScanMethod(m, res)
	b := res.Bindings[FieldKey{Class: "com.example.ItemFragment", Name: "label"}]
	assert.Equal(t, "7f0c0020", b.Layout)
}

func TestScanSkipsLibraryClasses(t *testing.T) {
	lib := tu.Method("androidx.fragment.app.Fragment", "void init()",
		tu.FindView("$r1", "r0", idButton))
	app := tu.Method(mainClass, "void init()",
		tu.FindView("$r1", "r0", idLabel))

	res, err := New().Scan(context.Background(), tu.Program(lib, app))
	require.NoError(t, err)
	assert.NotContains(t, res.Finds, "7f080001")
	assert.Contains(t, res.Finds, "7f080002")
	assert.Equal(t, 1, res.Methods)
}

func TestScanCancelledKeepsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := New().Scan(ctx, tu.Program(tu.Method(mainClass, "void init()", tu.FindView("$r1", "r0", idLabel))))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Finds)
}

func TestResultHelpers(t *testing.T) {
	res := NewResult()
	res.AddFind("7f080001", "m")
	res.AddFind("7f080001", "m")
	assert.Len(t, res.Finds["7f080001"], 1)

	res.Bindings[FieldKey{Class: mainClass, Name: "b"}] = Binding{UID: "2"}
	res.Bindings[FieldKey{Class: mainClass, Name: "a"}] = Binding{UID: "1"}
	res.Bindings[FieldKey{Class: "other", Name: "c"}] = Binding{UID: "3"}
	fields := res.FieldsOf(mainClass)
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Name)

	b, ok := res.Lookup(&ir.FieldRef{Class: "com.example.Base", Name: "a"}, mainClass)
	assert.True(t, ok, "falls back to enclosing class")
	assert.Equal(t, "1", b.UID)
}
