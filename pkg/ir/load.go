package ir

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://droidkg.dev/schema/ir.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse ir schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add ir schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// LoadOptions controls how an IR document is read.
type LoadOptions struct {
	// Strict rejects the whole document on a schema violation. Otherwise
	// validation errors are logged and decoding proceeds.
	Strict bool
	Logger *log.Logger
}

// LoadFile reads and validates an IR document from disk.
func LoadFile(path string, opts LoadOptions) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ir: %w", err)
	}
	return Load(bytes.NewReader(data), opts)
}

// Load validates an IR document, decodes it and drops null classes and
// methods whose branch targets are out of range or whose operands are null.
func Load(r io.Reader, opts LoadOptions) (*Program, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ir: %w", err)
	}

	if err := Validate(data); err != nil {
		if opts.Strict {
			return nil, err
		}
		logger.Warn("ir document does not match schema", "err", err)
	}

	var prog Program
	if err := json.Unmarshal(data, &prog); err != nil {
		return nil, fmt.Errorf("decode ir: %w", err)
	}

	classes := prog.Classes[:0]
	for _, c := range prog.Classes {
		if c == nil {
			logger.Warn("skipping null class")
			continue
		}
		classes = append(classes, c)
		kept := c.Methods[:0]
		for _, m := range c.Methods {
			if m == nil {
				continue
			}
			m.Class = c.Name
			if m.Name == "" {
				if ref, err := ParseSignature(m.Signature); err == nil {
					m.Name = ref.Name
				}
			}
			if err := m.Validate(); err != nil {
				logger.Warn("skipping method", "err", err)
				continue
			}
			kept = append(kept, m)
		}
		c.Methods = kept
	}
	prog.Classes = classes
	return &prog, nil
}

// Validate checks raw IR JSON against the embedded schema.
func Validate(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}
