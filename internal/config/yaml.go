package config

import (
	"fmt"

	yaml "go.yaml.in/yaml/v3"
)

// YAMLParser implements koanf.Parser on go.yaml.in/yaml/v3.
type YAMLParser struct{}

// YAML returns a YAML parser for koanf.
func YAML() *YAMLParser {
	return &YAMLParser{}
}

// Unmarshal parses YAML bytes into a nested map with string keys.
func (p *YAMLParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var v interface{}
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if v == nil {
		return map[string]interface{}{}, nil
	}
	m, ok := normalizeYAML(v).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("yaml unmarshal: top level is %T, want a mapping", v)
	}
	return m, nil
}

// Marshal renders a nested map as YAML.
func (p *YAMLParser) Marshal(m map[string]interface{}) ([]byte, error) {
	return yaml.Marshal(m)
}

// normalizeYAML converts every map key to a string.
func normalizeYAML(in interface{}) interface{} {
	switch x := in.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]interface{}:
		for k, v := range x {
			x[k] = normalizeYAML(v)
		}
		return x
	case []interface{}:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
