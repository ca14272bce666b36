package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a named JSON Schema that tutor replies are checked against
// after extraction. Use it by pointer; it compiles itself on first use.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// ValidateObject checks a decoded JSON value against schema. A nil schema
// accepts anything.
func ValidateObject(schema *Schema, v any) error {
	if schema == nil {
		return nil
	}
	compiled, err := schema.compile()
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("schema %q: %w", schema.Name, err)
	}
	return nil
}

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		// Round-trip through JSON; the compiler only accepts values shaped
		// like json.Unmarshal output ([]any, float64), not typed Go slices.
		raw, err := json.Marshal(s.Definition)
		if err != nil {
			s.err = err
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			s.err = err
			return
		}

		url := "mem://schemas/" + s.Name + ".json"
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, doc); err != nil {
			s.err = err
			return
		}
		s.compiled, s.err = c.Compile(url)
	})
	return s.compiled, s.err
}
