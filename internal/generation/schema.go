package generation

// SchemaType names a JSON value type.
type SchemaType string

const (
	TypeObject SchemaType = "object"
	TypeArray  SchemaType = "array"
	TypeString SchemaType = "string"
)

// Schema is a small, vendor-neutral subset of JSON Schema used to constrain
// structured text output. Properties lists fields in declaration order.
type Schema struct {
	Type        SchemaType
	Description string
	Items       *Schema
	Properties  []Property
	Required    []string
	MinItems    int
	MaxItems    int
}

// Property is a named field of an object schema.
type Property struct {
	Name   string
	Schema *Schema
}

// PropertyNames returns the object's field names in order.
func (s *Schema) PropertyNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		names = append(names, p.Name)
	}
	return names
}

// JSONSchema renders the schema as a JSON Schema document. Strict mode marks
// every property required and forbids additional properties, which OpenAI's
// structured outputs demand.
func (s *Schema) JSONSchema(strict bool) map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	switch s.Type {
	case TypeArray:
		if s.Items != nil {
			out["items"] = s.Items.JSONSchema(strict)
		}
		if s.MinItems > 0 {
			out["minItems"] = s.MinItems
		}
		if s.MaxItems > 0 {
			out["maxItems"] = s.MaxItems
		}
	case TypeObject:
		props := make(map[string]any, len(s.Properties))
		for _, p := range s.Properties {
			props[p.Name] = p.Schema.JSONSchema(strict)
		}
		out["properties"] = props
		required := s.Required
		if strict {
			required = s.PropertyNames()
			out["additionalProperties"] = false
		}
		if len(required) > 0 {
			out["required"] = required
		}
	}
	return out
}
