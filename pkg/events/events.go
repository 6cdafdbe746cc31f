// Package events loads the mapping from (layout, view id) to the handler
// methods attached to that view.
package events

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/droidkg/droidkg/pkg/uiid"
)

// File is the event mapping file inside an application work directory.
const File = "event.xml"

// ErrHandler is returned for a handler descriptor that is not a method
// signature.
var ErrHandler = errors.New("invalid handler descriptor")

// Event binds one handler method to one view in one layout.
type Event struct {
	Layout  string
	UID     string
	Handler string
}

// Class returns the declaring class of the handler.
func (e Event) Class() string {
	i := strings.Index(e.Handler, ": ")
	if i < 1 {
		return ""
	}
	return e.Handler[1:i]
}

// Mapping is every event of an application in file order.
type Mapping struct {
	Events []Event
}

type hierarchy struct {
	Activities []struct {
		Name  string `xml:"name,attr"`
		Views []struct {
			ID       string `xml:"id,attr"`
			Handlers []struct {
				Handler string `xml:"handler,attr"`
			} `xml:"EventAndHandler"`
		} `xml:"View"`
	} `xml:"Activity"`
}

// LoadFile reads an event mapping from disk.
func LoadFile(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a GUIHierarchy document. Layout and view ids are normalized.
// Entries whose ids or handlers cannot be read are dropped silently, as are
// repeated (layout, view, handler) triples.
func Load(r io.Reader) (*Mapping, error) {
	var doc hierarchy
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", File, err)
	}

	m := &Mapping{}
	seen := make(map[Event]bool)
	for _, a := range doc.Activities {
		layout, err := uiid.Parse(a.Name)
		if err != nil {
			continue
		}
		for _, v := range a.Views {
			id, err := uiid.Parse(v.ID)
			if err != nil {
				continue
			}
			for _, h := range v.Handlers {
				handler, err := NormalizeHandler(h.Handler)
				if err != nil {
					continue
				}
				ev := Event{Layout: layout, UID: id, Handler: handler}
				if seen[ev] {
					continue
				}
				seen[ev] = true
				m.Events = append(m.Events, ev)
			}
		}
	}
	return m, nil
}

// NormalizeHandler turns the escaped or bracketed handler text into a plain
// "<Class: sub-signature>" method signature.
func NormalizeHandler(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "&lt;")
	s = strings.TrimSuffix(s, "&gt;")
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	if !strings.Contains(s, ": ") || !strings.Contains(s, "(") {
		return "", fmt.Errorf("%w: %q", ErrHandler, s)
	}
	return "<" + s + ">", nil
}

// Handlers returns the distinct handler signatures of the mapping, sorted.
func (m *Mapping) Handlers() []string {
	set := make(map[string]struct{})
	for _, e := range m.Events {
		set[e.Handler] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of events.
func (m *Mapping) Len() int {
	return len(m.Events)
}
