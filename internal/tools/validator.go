package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// CompileSchema resolves a descriptor's input schema for validation. A nil
// schema accepts anything and yields a nil *jsonschema.Resolved.
func CompileSchema(schema map[string]any) (*jsonschema.Resolved, error) {
	if schema == nil {
		return nil, nil
	}
	clean := make(map[string]any, len(schema))
	for k, v := range schema {
		clean[k] = v
	}
	// Remote servers may declare older drafts; the keywords used by tool
	// schemas mean the same thing in 2020-12.
	delete(clean, "$schema")

	b, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return resolved, nil
}

// ValidateArgs checks args against a resolved schema. A nil schema accepts
// any arguments.
func ValidateArgs(args map[string]any, schema *jsonschema.Resolved) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	return schema.Validate(args)
}

// CoerceArgs returns a copy of args in which string values are converted to
// numbers or booleans where the schema asks for them and the string parses.
// Small models often quote numeric arguments.
func CoerceArgs(args map[string]any, schema map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	props, _ := schema["properties"].(map[string]any)
	for key, value := range args {
		out[key] = value
		s, isString := value.(string)
		def, hasDef := props[key].(map[string]any)
		if !isString || !hasDef {
			continue
		}
		switch def["type"] {
		case "number":
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				out[key] = f
			}
		case "integer":
			if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				out[key] = float64(n)
			}
		case "boolean":
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				out[key] = b
			}
		}
	}
	return out
}
