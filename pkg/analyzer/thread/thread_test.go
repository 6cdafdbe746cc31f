package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tu "github.com/droidkg/droidkg/internal/testutil"
	"github.com/droidkg/droidkg/pkg/analyzer/flow"
	"github.com/droidkg/droidkg/pkg/ir"
)

const owner = "com.example.MainActivity"

func ctor(base *ir.Value, class string, params []string, args ...*ir.Value) *ir.Instr {
	return tu.Invoke(tu.Call("special", base, class, "void", "<init>", params, args...))
}

func start(base, class string) *ir.Instr {
	return tu.Invoke(tu.Call("virtual", tu.Local(base), class, "void", "start", nil))
}

func TestSubclassedThread(t *testing.T) {
	m := tu.Method(owner, "void onClick(android.view.View)",
		tu.Assign(tu.Local("$r1"), tu.New("com.example.Worker")),
		ctor(tu.Local("$r1"), "com.example.Worker", nil),
		start("$r1", "com.example.Worker"),
		tu.Return(),
	)
	got := DetectAll(m, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Index)
	assert.Equal(t, "<com.example.Worker: void run()>", got[0].Target)
}

func TestRunnableDelegation(t *testing.T) {
	tests := []struct {
		name string
		arg  *ir.Value
	}{
		{"typed argument", tu.TypedLocal("$r2", "com.example.Job")},
		{"untyped argument", tu.Local("$r2")},
		{"interface typed argument", tu.TypedLocal("$r2", "java.lang.Runnable")},
		{"cast argument", tu.Cast("java.lang.Runnable", tu.Local("$r2"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tu.Method(owner, "void onClick(android.view.View)",
				tu.Assign(tu.Local("$r1"), tu.New("java.lang.Thread")),
				tu.Assign(tu.Local("$r2"), tu.New("com.example.Job")),
				ctor(tu.Local("$r2"), "com.example.Job", nil),
				ctor(tu.Local("$r1"), "java.lang.Thread", []string{"java.lang.Runnable"}, tt.arg),
				start("$r1", "java.lang.Thread"),
			)
			w := flow.New(m, 0)
			target, ok := Detect(w, 4)
			require.True(t, ok)
			assert.Equal(t, "<com.example.Job: void run()>", target)
		})
	}
}

func TestRunnableWithNameParameter(t *testing.T) {
	m := tu.Method(owner, "void go()",
		tu.Assign(tu.Local("$r1"), tu.New("java.lang.Thread")),
		ctor(tu.Local("$r1"), "java.lang.Thread", []string{"java.lang.Runnable", "java.lang.String"},
			tu.TypedLocal("r5", "com.example.Sync"), tu.Str("sync")),
		start("$r1", "java.lang.Thread"),
	)
	got := DetectAll(m, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "<com.example.Sync: void run()>", got[0].Target)
}

func TestNoDelegation(t *testing.T) {
	tests := []struct {
		name string
		body []*ir.Instr
	}{
		{
			name: "plain thread without runnable",
			body: []*ir.Instr{
				tu.Assign(tu.Local("$r1"), tu.New("java.lang.Thread")),
				ctor(tu.Local("$r1"), "java.lang.Thread", nil),
				start("$r1", "java.lang.Thread"),
			},
		},
		{
			name: "receiver from parameter",
			body: []*ir.Instr{
				tu.Identity(tu.Local("r1"), &ir.Value{Kind: ir.KindParam, Type: "java.lang.Thread"}),
				start("r1", "java.lang.Thread"),
			},
		},
		{
			name: "not a start call",
			body: []*ir.Instr{
				tu.Assign(tu.Local("$r1"), tu.New("com.example.Worker")),
				tu.Invoke(tu.Call("virtual", tu.Local("$r1"), "com.example.Worker", "void", "interrupt", nil)),
			},
		},
		{
			name: "runnable of unknown origin",
			body: []*ir.Instr{
				tu.Identity(tu.Local("r2"), &ir.Value{Kind: ir.KindParam, Type: "java.lang.Runnable"}),
				tu.Assign(tu.Local("$r1"), tu.New("java.lang.Thread")),
				ctor(tu.Local("$r1"), "java.lang.Thread", []string{"java.lang.Runnable"}, tu.TypedLocal("r2", "java.lang.Runnable")),
				start("$r1", "java.lang.Thread"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, DetectAll(tu.Method(owner, "void go()", tt.body...), 0))
		})
	}
}
