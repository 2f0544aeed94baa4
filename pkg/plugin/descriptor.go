package plugin

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Descriptor is the parsed form of a "name:alias:jsonOverrides" plugin
// address. Alias and Overrides are optional; the JSON fragment, when
// present, is merged over the plugin's view of the global config.
type Descriptor struct {
	Name      string
	Alias     string
	Overrides json.RawMessage
}

// FinalName is the name the instance registers under.
func (d Descriptor) FinalName() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.Name
}

// ParseDescriptor parses a plugin descriptor. The first two colons
// delimit name and alias; everything after the second colon is the JSON
// override fragment, which may itself contain colons.
//
//	"authz"
//	"audit:trail"
//	"audit:trail:{\"sink\":\"sqlite\"}"
func ParseDescriptor(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Descriptor{}, fmt.Errorf("empty plugin descriptor")
	}

	parts := strings.SplitN(s, ":", 3)

	d := Descriptor{Name: strings.TrimSpace(parts[0])}
	if d.Name == "" {
		return Descriptor{}, fmt.Errorf("plugin descriptor %q has no name", s)
	}
	if len(parts) > 1 {
		d.Alias = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		overrides := strings.TrimSpace(parts[2])
		if overrides != "" {
			if !json.Valid([]byte(overrides)) {
				return Descriptor{}, fmt.Errorf("plugin descriptor %q has malformed JSON overrides", s)
			}
			d.Overrides = json.RawMessage(overrides)
		}
	}
	return d, nil
}
