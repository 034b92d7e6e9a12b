package locale

// OtherRegionsHeader labels the trailing directory group holding plugins
// whose preferred locales have no language in common with the request.
const OtherRegionsHeader = "Plugins for other regions"

// Group is one ordered block of directory results. The native-fit group has
// no header; the other-regions group carries OtherRegionsHeader and a CSS
// class hint for clients that still style groups.
type Group struct {
	Header  string                   `json:"header,omitempty"`
	Class   string                   `json:"class,omitempty"`
	Plugins []map[string]interface{} `json:"plugins"`
}

// GroupPlugins partitions plugin info dicts into ordered display groups.
// When the caller never specified locales every plugin lands in a single
// unlabeled group, order unchanged. When locales were explicit, plugins that
// declare preferred_locales with no language overlap against tags are split
// into a labeled second group; plugins without preferred_locales are never
// excluded from the first. Empty groups are omitted.
func GroupPlugins(plugins []map[string]interface{}, tags []string, explicit bool) []Group {
	if !explicit {
		if len(plugins) == 0 {
			return nil
		}
		return []Group{{Plugins: plugins}}
	}

	var native, other []map[string]interface{}
	for _, p := range plugins {
		preferred, declared := preferredLocales(p)
		if declared && !Overlap(preferred, tags) {
			other = append(other, p)
		} else {
			native = append(native, p)
		}
	}

	var groups []Group
	if len(native) > 0 {
		groups = append(groups, Group{Plugins: native})
	}
	if len(other) > 0 {
		groups = append(groups, Group{
			Header:  OtherRegionsHeader,
			Class:   "other_locales",
			Plugins: other,
		})
	}
	return groups
}

// preferredLocales extracts a dict's preferred_locales list. declared is
// false when the key is absent entirely.
func preferredLocales(dict map[string]interface{}) (locales []string, declared bool) {
	raw, ok := dict["preferred_locales"]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case []string:
		return v, true
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				locales = append(locales, s)
			}
		}
		return locales, true
	}
	return nil, false
}
