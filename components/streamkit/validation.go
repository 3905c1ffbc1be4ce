package streamkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ConfigValidator validates widget configurations produced by the builder.
type ConfigValidator interface {
	Validate(cfg WidgetConfig) error
}

const widgetSchemaName = "widget-config.json"

var widgetConfigSchema = map[string]any{
	"$schema":  "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []string{"type", "region", "account_id"},
	"properties": map[string]any{
		"type":       map[string]any{"enum": []string{string(WidgetTypeBox), string(WidgetTypeRaw)}},
		"region":     map[string]any{"type": "string", "minLength": 1},
		"account_id": map[string]any{"type": "string", "pattern": `^\d+$`},
		"variables": map[string]any{
			"type":  []string{"array", "null"},
			"items": map[string]any{"type": "string", "pattern": `^[A-Za-z0-9_]+$`},
		},
		"labels": map[string]any{
			"type":  []string{"array", "null"},
			"items": map[string]any{"type": "string", "pattern": `^[^,]*$`},
		},
		"theme":       map[string]any{"enum": []string{string(ThemeDefault), string(ThemeDark), string(ThemeLight), string(ThemeGlass)}},
		"num_matches": map[string]any{"type": "integer", "minimum": 0, "maximum": 50},
		"opacity":     map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
		"raw": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"font_color": map[string]any{"type": "string", "pattern": `^(#[0-9A-Fa-f]{3,8})?$`},
			},
		},
	},
}

// JSONSchemaValidator checks widget configurations against the builder schema.
type JSONSchemaValidator struct {
	mu     sync.RWMutex
	schema *jsonschema.Schema
}

// NewJSONSchemaValidator builds a validator backed by jsonschema v5.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{}
}

// Validate rejects configurations the widget route could not render faithfully,
// such as labels containing the list separator.
func (v *JSONSchemaValidator) Validate(cfg WidgetConfig) error {
	schema, err := v.compiled()
	if err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("streamkit: marshal widget config: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("streamkit: normalize widget config: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("streamkit: widget config failed validation: %w", err)
	}
	return nil
}

func (v *JSONSchemaValidator) compiled() (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema := v.schema
	v.mu.RUnlock()
	if schema != nil {
		return schema, nil
	}
	data, err := json.Marshal(widgetConfigSchema)
	if err != nil {
		return nil, fmt.Errorf("streamkit: marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(widgetSchemaName, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("streamkit: load schema: %w", err)
	}
	compiled, err := compiler.Compile(widgetSchemaName)
	if err != nil {
		return nil, fmt.Errorf("streamkit: compile schema: %w", err)
	}
	v.mu.Lock()
	v.schema = compiled
	v.mu.Unlock()
	return compiled, nil
}

type noopConfigValidator struct{}

func (noopConfigValidator) Validate(WidgetConfig) error { return nil }
