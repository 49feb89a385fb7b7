package schema

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

func (s Schema) typeNames() (map[string]string, error) {
	raw := make(map[string]string, len(s))
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("field %s: type is nil", key)
		}
		raw[key] = typ.Name()
	}
	return raw, nil
}

// MarshalJSON serializes the schema as a map of field names to type names.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	raw, err := s.typeNames()
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// UnmarshalJSON deserializes the schema from a map of field names to type names.
// Struct types cannot be recovered from their names and fail to parse.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML renders the schema the same way MarshalJSON does.
func (s Schema) MarshalYAML() (any, error) {
	return s.typeNames()
}

// UnmarshalYAML parses a mapping of field names to type names.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
