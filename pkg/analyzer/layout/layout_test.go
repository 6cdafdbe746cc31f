package layout

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidkg/droidkg/internal/testutil"
	"github.com/droidkg/droidkg/pkg/graph"
	"github.com/droidkg/droidkg/pkg/resources"
)

const ns = `xmlns:android="http://schemas.android.com/apk/res/android"`

func table(t *testing.T) *resources.Table {
	t.Helper()
	res := resources.New()
	res.AddString("0x7f0e0001", "hello", "Hello")
	res.AddString("0x7f0e0002", "email", "Email")
	require.NoError(t, res.AddPublic(resources.TypeID, "submit", "0x7f010002"))
	require.NoError(t, res.AddPublic(resources.TypeLayout, "toolbar", "0x7f0c0002"))
	require.NoError(t, res.AddPublic(resources.TypeDrawable, "logo", "0x7f080001"))
	return res
}

func build(t *testing.T, files map[string]string, opts ...Option) (*graph.Store, Stats) {
	t.Helper()
	dir := t.TempDir()
	testutil.CreateFileTree(t, dir, files)
	store, stats, err := New(dir, table(t), opts...).Build(context.Background())
	require.NoError(t, err)
	return store, stats
}

func byTag(store *graph.Store, tag string) []graph.Node {
	var out []graph.Node
	for _, n := range store.Nodes() {
		if n.Name == tag {
			out = append(out, n)
		}
	}
	return out
}

func TestTreeShape(t *testing.T) {
	store, stats := build(t, map[string]string{
		"activity_main.xml": `<LinearLayout ` + ns + `>
  <TextView android:id="@7f010001" android:text="@string/hello"/>
  <Button android:id="@+id/submit" android:text="@7f0e0002"/>
  <FrameLayout>
    <ImageView android:src="@drawable/logo" android:background="@7f080001"/>
  </FrameLayout>
</LinearLayout>`,
	})

	assert.Equal(t, 5, store.NodeCount())
	assert.Equal(t, 4, store.EdgeCount())
	assert.Equal(t, Stats{Files: 1, Controls: 3, Containers: 2, Edges: 4, Texts: 2}, stats)
	for _, e := range store.Edges() {
		assert.Equal(t, graph.RelHold, e.Relation)
	}
	require.NoError(t, store.Validate())

	text := byTag(store, "TextView")[0]
	assert.Equal(t, graph.LabelControl, text.Label)
	assert.Equal(t, "7f010001", text.Attributes[graph.AttrID])
	assert.Equal(t, "Hello", text.Attributes[graph.AttrText])
	assert.Equal(t, "activity_main.xml", text.Attributes[graph.AttrXML])

	button := byTag(store, "Button")[0]
	assert.Equal(t, "7f010002", button.Attributes[graph.AttrID])
	assert.Equal(t, "Email", button.Attributes[graph.AttrText])

	image := byTag(store, "ImageView")[0]
	assert.Equal(t, "logo", image.Attributes[graph.AttrSrc])
	assert.Equal(t, "logo", image.Attributes[graph.AttrBackground])

	assert.Equal(t, graph.LabelContainer, byTag(store, "FrameLayout")[0].Label)
}

func TestLeavesProduceNMinusOneHoldEdges(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		var b strings.Builder
		b.WriteString("<LinearLayout>")
		for i := 1; i < n; i++ {
			b.WriteString("<TextView/>")
		}
		b.WriteString("</LinearLayout>")
		store, stats := build(t, map[string]string{"a.xml": b.String()})
		assert.Equal(t, n, store.NodeCount())
		assert.Equal(t, n-1, store.EdgeCount())
		assert.Equal(t, n, stats.Nodes())
	}
}

func TestSiblingsWithoutIDsStayDistinct(t *testing.T) {
	store, _ := build(t, map[string]string{
		"a.xml": `<LinearLayout><TextView/><TextView/></LinearLayout>`,
		"b.xml": `<LinearLayout><TextView/></LinearLayout>`,
	})
	assert.Len(t, byTag(store, "TextView"), 3)
	assert.Len(t, byTag(store, "LinearLayout"), 2)
}

func TestLiteralAndUnresolvedText(t *testing.T) {
	store, _ := build(t, map[string]string{
		"a.xml": `<LinearLayout>
  <TextView android:text="a/b is literal"/>
  <TextView android:text="@string/missing"/>
  <EditText android:hint="@string/email"/>
</LinearLayout>`,
	})
	var texts []string
	for _, n := range byTag(store, "TextView") {
		texts = append(texts, n.Attributes[graph.AttrText])
	}
	assert.ElementsMatch(t, []string{"a/b is literal", "@string/missing"}, texts)
	assert.Equal(t, "Email", byTag(store, "EditText")[0].Attributes[graph.AttrHint])
}

func TestIncludes(t *testing.T) {
	store, stats := build(t, map[string]string{
		"activity_main.xml": `<LinearLayout><include layout="@layout/toolbar"/><Button/></LinearLayout>`,
		"toolbar.xml":       `<RelativeLayout><TextView android:id="@7f010009"/></RelativeLayout>`,
	})

	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Includes)
	assert.Equal(t, 5, store.NodeCount())
	assert.Equal(t, 4, store.EdgeCount())

	inc := byTag(store, "include")[0]
	assert.Equal(t, "toolbar.xml", inc.Attributes[graph.AttrLayout])
	title := byTag(store, "TextView")[0]
	assert.Equal(t, "toolbar.xml", title.Attributes[graph.AttrXML])

	sub := byTag(store, "RelativeLayout")[0]
	assert.True(t, store.HasEdge(graph.NewEdge(inc, sub, graph.RelHold).ID))
}

func TestIncludeByID(t *testing.T) {
	store, _ := build(t, map[string]string{
		"main.xml":    `<LinearLayout><include layout="@7f0c0002"/></LinearLayout>`,
		"toolbar.xml": `<Toolbar/>`,
	})
	assert.Len(t, byTag(store, "Toolbar"), 1)
}

func TestIncludeCycle(t *testing.T) {
	store, stats := build(t, map[string]string{
		"main.xml": `<LinearLayout><include layout="@layout/a"/></LinearLayout>`,
		"a.xml":    `<FrameLayout><include layout="@layout/b"/></FrameLayout>`,
		"b.xml":    `<FrameLayout><include layout="@layout/a"/></FrameLayout>`,
	})
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 6, store.NodeCount())
	assert.Equal(t, 3, stats.Includes)
}

func TestMalformedFileSkipped(t *testing.T) {
	store, stats := build(t, map[string]string{
		"good.xml": `<LinearLayout><Button/></LinearLayout>`,
		"bad.xml":  `<LinearLayout><Button`,
		"none.xml": ``,
	})
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 2, store.NodeCount())
}

func TestExclude(t *testing.T) {
	store, stats := build(t, map[string]string{
		"main.xml":            `<LinearLayout/>`,
		"debug/overlay.xml":   `<FrameLayout/>`,
		"abc_action_menu.xml": `<ActionMenuView/>`,
	}, WithExclude([]string{"debug/", "abc_*"}))
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, store.NodeCount())
}

func TestNestedDirectoryName(t *testing.T) {
	store, _ := build(t, map[string]string{
		filepath.Join("land", "main.xml"): `<LinearLayout/>`,
	})
	n := store.Nodes()[0]
	assert.Equal(t, "land:main.xml", n.Attributes[graph.AttrXML])
}

func TestMissingDirectory(t *testing.T) {
	store, stats, err := New(filepath.Join(t.TempDir(), "nope"), nil).Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, store.NodeCount())
	assert.Zero(t, stats.Files)
}

func TestBuildDeterministic(t *testing.T) {
	files := map[string]string{
		"a.xml": `<LinearLayout><TextView android:id="@7f010001"/><Button/></LinearLayout>`,
		"b.xml": `<ConstraintLayout><include layout="@layout/a"/></ConstraintLayout>`,
	}
	s1, _ := build(t, files)
	s2, _ := build(t, files)
	assert.Equal(t, s1.Nodes(), s2.Nodes())
	assert.Equal(t, s1.Edges(), s2.Edges())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		tag  string
		want graph.Label
	}{
		{"LinearLayout", graph.LabelContainer},
		{"androidx.fragment.app.FragmentContainer", graph.LabelContainer},
		{"com.google.android.material.appbar.AppBarLayout", graph.LabelContainer},
		{"Button", graph.LabelControl},
		{"include", graph.LabelControl},
		{"ListView", graph.LabelControl},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.tag), tt.tag)
	}
}
