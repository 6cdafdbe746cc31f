// Package resources loads the decoded resource table of an application: the
// string pool and the public id/name assignments.
package resources

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/droidkg/droidkg/pkg/uiid"
)

// File names inside an application work directory.
const (
	StringsFile = "arsc_string.json"
	PublicFile  = "values/public.xml"
)

// Resource types used by the extractors.
const (
	TypeLayout   = "layout"
	TypeID       = "id"
	TypeString   = "string"
	TypeDrawable = "drawable"
)

// StringEntry is one record of the string pool dump.
type StringEntry struct {
	ResourceID   int64           `json:"resourceID"`
	ResourceName string          `json:"resourceName"`
	Value        json.RawMessage `json:"value"`
}

// PublicEntry is one <public/> element of public.xml.
type PublicEntry struct {
	Type string `xml:"type,attr"`
	Name string `xml:"name,attr"`
	ID   string `xml:"id,attr"`
}

type publicDoc struct {
	Entries []PublicEntry `xml:"public"`
}

// Table answers id and name lookups. Ids are kept in canonical form.
type Table struct {
	stringByID   map[string]string
	stringByName map[string]string
	nameByID     map[string]map[string]string
	idByName     map[string]map[string]string
}

// New creates an empty table.
func New() *Table {
	return &Table{
		stringByID:   make(map[string]string),
		stringByName: make(map[string]string),
		nameByID:     make(map[string]map[string]string),
		idByName:     make(map[string]map[string]string),
	}
}

// AddString registers a string resource.
func (t *Table) AddString(id, name, value string) {
	if c, err := uiid.Canonical(id); err == nil {
		t.stringByID[c] = value
	}
	if name != "" {
		t.stringByName[name] = value
	}
}

// AddPublic registers a public id assignment.
func (t *Table) AddPublic(typ, name, id string) error {
	c, err := uiid.Canonical(id)
	if err != nil {
		return err
	}
	if t.nameByID[typ] == nil {
		t.nameByID[typ] = make(map[string]string)
		t.idByName[typ] = make(map[string]string)
	}
	t.nameByID[typ][c] = name
	t.idByName[typ][name] = c
	return nil
}

// StringByID returns the value of a string resource by id.
func (t *Table) StringByID(id string) (string, bool) {
	c, err := uiid.Canonical(id)
	if err != nil {
		return "", false
	}
	v, ok := t.stringByID[c]
	return v, ok
}

// StringByName returns the value of a string resource by name.
func (t *Table) StringByName(name string) (string, bool) {
	v, ok := t.stringByName[name]
	return v, ok
}

// Name returns the symbolic name of an id within a resource type.
func (t *Table) Name(typ, id string) (string, bool) {
	c, err := uiid.Canonical(id)
	if err != nil {
		return "", false
	}
	v, ok := t.nameByID[typ][c]
	return v, ok
}

// ID returns the canonical id of a named resource.
func (t *Table) ID(typ, name string) (string, bool) {
	v, ok := t.idByName[typ][name]
	return v, ok
}

// Names returns the id to name map of one resource type.
func (t *Table) Names(typ string) map[string]string {
	return t.nameByID[typ]
}

// StringCount returns the number of string resources known by id.
func (t *Table) StringCount() int {
	return len(t.stringByID)
}

// Load reads both resource files from a work directory. A missing file yields
// an empty section and a warning; a file that exists but cannot be parsed is
// an error.
func Load(workDir string, logger *log.Logger) (*Table, error) {
	t := New()

	strs, err := LoadStrings(filepath.Join(workDir, StringsFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("no string table found", "path", StringsFile)
	case err != nil:
		return nil, err
	}
	for _, e := range strs {
		var value string
		if err := json.Unmarshal(e.Value, &value); err != nil {
			logger.Debug("skipping non-string resource", "id", e.ResourceID, "name", e.ResourceName)
			continue
		}
		t.AddString(uiid.FromInt(e.ResourceID), e.ResourceName, value)
	}

	pubs, err := LoadPublic(filepath.Join(workDir, PublicFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("no public id table found", "path", PublicFile)
	case err != nil:
		return nil, err
	}
	for _, p := range pubs {
		if err := t.AddPublic(p.Type, p.Name, p.ID); err != nil {
			logger.Debug("skipping public entry", "name", p.Name, "err", err)
		}
	}
	return t, nil
}

// LoadStrings reads arsc_string.json.
func LoadStrings(path string) ([]StringEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []StringEntry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return entries, nil
}

// LoadPublic reads values/public.xml.
func LoadPublic(path string) ([]PublicEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodePublic(f, path)
}

func decodePublic(r io.Reader, path string) ([]PublicEntry, error) {
	var doc publicDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc.Entries, nil
}
