package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compiled(name string) (*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = map[string]*jsonschema.Schema{}
		for _, n := range []string{"subscribe", "settings", "tick"} {
			file := n + ".schema.json"
			src, err := schemaFS.ReadFile("schemas/" + file)
			if err != nil {
				schemasErr = err
				return
			}
			s, err := jsonschema.CompileString(file, string(src))
			if err != nil {
				schemasErr = fmt.Errorf("compile %s: %w", file, err)
				return
			}
			schemas[n] = s
		}
	})
	if schemasErr != nil {
		return nil, schemasErr
	}
	s, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// Schema returns the raw JSON Schema for a message type, for clients.
func Schema(name string) ([]byte, error) {
	return schemaFS.ReadFile("schemas/" + name + ".schema.json")
}

func validateRaw(name string, raw []byte) error {
	s, err := compiled(name)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

func ValidateSubscribe(raw []byte) error { return validateRaw("subscribe", raw) }
func ValidateSettings(raw []byte) error  { return validateRaw("settings", raw) }
func ValidateTick(raw []byte) error      { return validateRaw("tick", raw) }
