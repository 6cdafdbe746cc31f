package testutil

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/droidkg/droidkg/pkg/ir"
)

// Sample application ids and signatures.
const (
	AppClass    = "com.example.MainActivity"
	AppLayoutID = 0x7f0c0001
	AppButtonID = 0x7f010000
	AppOnCreate = "<com.example.MainActivity: void onCreate(android.os.Bundle)>"
	AppOnResume = "<com.example.MainActivity: void onResume()>"
	AppOnClick  = "<com.example.MainActivity: void onClick(android.view.View)>"
)

// AppProgram is a one-activity program: onCreate inflates the layout, finds
// the button and stores it in a field; onResume sets its text; onClick
// handles its clicks.
func AppProgram() *ir.Program {
	create := Method(AppClass, "void onCreate(android.os.Bundle)",
		Identity(Local("r0"), This(AppClass)),
		SetContentView("r0", AppLayoutID),
		FindView("$r1", "r0", AppButtonID),
		Assign(Local("$r2"), Cast("android.widget.Button", Local("$r1"))),
		Assign(Field(Local("r0"), AppClass, "btn", "android.widget.Button"), Local("$r2")),
		Return(),
	)
	resume := Method(AppClass, "void onResume()",
		Identity(Local("r0"), This(AppClass)),
		Assign(Local("$r1"), Field(Local("r0"), AppClass, "btn", "android.widget.Button")),
		SetText(Local("$r1"), Str("Hi")),
		Return(),
	)
	click := Method(AppClass, "void onClick(android.view.View)",
		Identity(Local("r0"), This(AppClass)),
		Invoke(Call("virtual", Local("r0"), AppClass, "void", "submit", nil)),
		Return(),
	)
	return Program(create, resume, click)
}

const appCallGraph = `caller,callee
"<com.example.MainActivity: void onCreate(android.os.Bundle)>","<android.app.Activity: void setContentView(int)>"
"<com.example.MainActivity: void onCreate(android.os.Bundle)>","<android.app.Activity: android.view.View findViewById(int)>"
"<com.example.MainActivity: void onResume()>","<android.widget.TextView: void setText(java.lang.CharSequence)>"
"<com.example.MainActivity: void onClick(android.view.View)>","<com.example.MainActivity: void submit()>"
`

const appLayout = `<LinearLayout xmlns:android="http://schemas.android.com/apk/res/android">
  <Button android:id="@7f010000" android:text="@string/hello"/>
</LinearLayout>`

const appPublic = `<resources>
  <public type="layout" name="activity_main" id="0x7f0c0001"/>
  <public type="id" name="btn" id="0x7f010000"/>
  <public type="string" name="hello" id="0x7f0e0001"/>
</resources>`

const appStrings = `[{"resourceID": 2131623937, "resourceName": "hello", "value": "Hello"}]`

const appEvents = `<GUIHierarchy>
  <Activity name="@7f0c0001">
    <View id="@7f010000">
      <EventAndHandler handler="&lt;com.example.MainActivity: void onClick(android.view.View)&gt;"/>
    </View>
  </Activity>
</GUIHierarchy>`

// WriteApp lays out a complete work directory for AppProgram under
// root/name and returns its path.
func WriteApp(t *testing.T, root, name string) string {
	t.Helper()
	irJSON, err := json.Marshal(AppProgram())
	if err != nil {
		t.Fatalf("marshal ir: %v", err)
	}
	dir := filepath.Join(root, name)
	CreateFileTree(t, dir, map[string]string{
		"ir.json":                  string(irJSON),
		"callgraph.csv":            appCallGraph,
		"layout/activity_main.xml": appLayout,
		"values/public.xml":        appPublic,
		"arsc_string.json":         appStrings,
		"event.xml":                appEvents,
	})
	return dir
}
