package layout

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// element is one node of a decoded layout document.
type element struct {
	Tag      string
	Attrs    map[string]string
	Children []*element
}

// attr looks an attribute up by its local name, so "android:text" and
// "text" both answer to "text".
func (e *element) attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

func (e *element) isInclude() bool {
	return strings.EqualFold(e.Tag, "include")
}

var errEmptyDocument = errors.New("no root element")

// parse decodes a layout document into an element tree.
func parse(r io.Reader) (*element, error) {
	dec := xml.NewDecoder(r)

	var root *element
	var stack []*element
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{Tag: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				el.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("second root element <%s>", el.Tag)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if root == nil {
		return nil, errEmptyDocument
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].Tag)
	}
	return root, nil
}
