package registry

import (
	"encoding/json"
	"fmt"
)

// DefaultCategory is assigned when a manifest declares no categories.
const DefaultCategory = "Other"

// Manifest is the parsed contents of a plugin's info.json. Name is the only
// required member. The full decoded object is retained in Fields so that
// localized keys (displayName_fr, description_de-AT, ...) and any other
// author-supplied members survive for directory rendering.
type Manifest struct {
	Name       string
	Categories []string
	Fields     map[string]interface{}
}

// ParseManifest decodes an info.json payload into a Manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	name, ok := fields["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: missing name field", ErrInvalidMetadata)
	}

	m := &Manifest{
		Name:       name,
		Categories: []string{DefaultCategory},
		Fields:     fields,
	}

	if raw, ok := fields["categories"].([]interface{}); ok {
		categories := make([]string, 0, len(raw))
		for _, c := range raw {
			if s, ok := c.(string); ok {
				categories = append(categories, s)
			}
		}
		if len(categories) > 0 {
			m.Categories = categories
		}
	}

	return m, nil
}

// PreferredLocales returns the manifest's preferred_locales list, or nil
// when the manifest does not declare one.
func (m *Manifest) PreferredLocales() []string {
	raw, ok := m.Fields["preferred_locales"].([]interface{})
	if !ok {
		return nil
	}
	locales := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok {
			locales = append(locales, s)
		}
	}
	return locales
}

// Encode re-serializes the manifest's full field set. This is what gets
// stored on the plugin record as its metadata blob.
func (m *Manifest) Encode() (string, error) {
	data, err := json.Marshal(m.Fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	return string(data), nil
}
