package manifest

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// FieldSpec declares one field. A field without Default is required when an
// instance is built.
type FieldSpec struct {
	Name       string `json:"name" yaml:"name" mapstructure:"name"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Default    any    `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
	HasDefault bool   `json:"-" yaml:"-" mapstructure:"-"`
	Doc        string `json:"doc,omitempty" yaml:"doc,omitempty" mapstructure:"doc"`
}

// Fields keeps field declarations in document order.
//
// In YAML it accepts a mapping (name: type, or name: {type, default, doc}) or
// a list of {name, type, default, doc}.
type Fields []FieldSpec

func (f *Fields) UnmarshalYAML(node *yaml.Node) error {
	var out Fields
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			spec, err := fieldFromNode(node.Content[i].Value, node.Content[i+1])
			if err != nil {
				return err
			}
			out = append(out, spec)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: field entry must be a mapping", item.Line)
			}
			spec, err := fieldFromNode("", item)
			if err != nil {
				return err
			}
			if spec.Name == "" {
				return fmt.Errorf("line %d: field name is required", item.Line)
			}
			out = append(out, spec)
		}
	default:
		return fmt.Errorf("line %d: fields must be a mapping or a list", node.Line)
	}
	*f = out
	return nil
}

func (f Fields) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, spec := range f {
		body := map[string]any{"type": spec.Type}
		if spec.HasDefault {
			body["default"] = spec.Default
		}
		if spec.Doc != "" {
			body["doc"] = spec.Doc
		}
		var value yaml.Node
		if err := value.Encode(body); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: spec.Name}, &value)
	}
	return node, nil
}

func fieldFromNode(name string, node *yaml.Node) (FieldSpec, error) {
	if node.Kind == yaml.ScalarNode {
		return FieldSpec{Name: name, Type: node.Value}, nil
	}
	if node.Kind != yaml.MappingNode {
		return FieldSpec{}, fmt.Errorf("line %d: field %s must be a type name or a mapping", node.Line, name)
	}

	var raw struct {
		Name    string `yaml:"name"`
		Type    string `yaml:"type"`
		Default any    `yaml:"default"`
		Doc     string `yaml:"doc"`
	}
	if err := node.Decode(&raw); err != nil {
		return FieldSpec{}, err
	}
	if name == "" {
		name = raw.Name
	}
	spec := FieldSpec{Name: name, Type: raw.Type, Default: raw.Default, Doc: raw.Doc}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "default" {
			spec.HasDefault = true
		}
	}
	return spec, nil
}

// ParseFields converts loosely typed field declarations, as found in document
// front matter, into Fields. Mappings lose their order in that representation,
// so fields given as a mapping are laid out by name; use a list to control the
// layout.
func ParseFields(raw any) (Fields, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)

		out := make(Fields, 0, len(v))
		for _, name := range names {
			spec, err := fieldFromValue(name, v[name])
			if err != nil {
				return nil, err
			}
			out = append(out, spec)
		}
		return out, nil
	case []any:
		out := make(Fields, 0, len(v))
		for i, item := range v {
			spec, err := fieldFromValue("", item)
			if err != nil {
				return nil, fmt.Errorf("fields[%d]: %w", i, err)
			}
			if spec.Name == "" {
				return nil, fmt.Errorf("fields[%d]: name is required", i)
			}
			out = append(out, spec)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("fields must be a mapping or a list, got %T", raw)
	}
}

func fieldFromValue(name string, raw any) (FieldSpec, error) {
	switch v := raw.(type) {
	case string:
		return FieldSpec{Name: name, Type: v}, nil
	case map[string]any:
		var spec FieldSpec
		if err := mapstructure.Decode(v, &spec); err != nil {
			return FieldSpec{}, fmt.Errorf("field %s: %w", name, err)
		}
		if name != "" {
			spec.Name = name
		}
		_, spec.HasDefault = v["default"]
		return spec, nil
	default:
		return FieldSpec{}, fmt.Errorf("field %s: expected a type name or a mapping, got %T", name, raw)
	}
}
