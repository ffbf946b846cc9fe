package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects T into a JSON Schema object suitable for a tool
// descriptor. Fields without omitempty are required; use jsonschema and
// jsonschema_description tags for enums and descriptions.
func SchemaFor[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema for %T: %v", v, err))
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		panic(fmt.Sprintf("tools: unmarshal schema for %T: %v", v, err))
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// DecodeArgs converts loosely typed call arguments into a params struct.
func DecodeArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
