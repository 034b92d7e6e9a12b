// Package locale resolves localized manifest fields and groups directory
// results by how well a plugin's preferred locales match the request.
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// suffixes yields the candidate key suffixes for an ordered list of language
// tags. Each tag contributes "_<tag>" and then progressively shorter forms
// with the last -delimited segment stripped; the literal tag "en" contributes
// the empty suffix, since unsuffixed manifest keys are written in English.
// The empty suffix is always yielded last as the generic fallback.
func suffixes(tags []string) []string {
	var out []string
	for _, tag := range tags {
		for {
			if tag == "en" {
				out = append(out, "")
			} else {
				out = append(out, "_"+tag)
			}
			i := strings.LastIndexByte(tag, '-')
			if i < 0 {
				break
			}
			tag = tag[:i]
		}
	}
	return append(out, "")
}

// Resolve returns the best localized value for field in dict, trying
// field+suffix for every candidate suffix derived from tags in order. Tag
// order is significant: an earlier tag's exact form beats a later tag's.
// def is returned when no candidate key is present.
func Resolve(dict map[string]interface{}, field string, tags []string, def interface{}) interface{} {
	for _, suffix := range suffixes(tags) {
		if v, ok := dict[field+suffix]; ok {
			return v
		}
	}
	return def
}

// ResolveString is Resolve for string-valued fields.
func ResolveString(dict map[string]interface{}, field string, tags []string, def string) string {
	if v, ok := Resolve(dict, field, tags, def).(string); ok {
		return v
	}
	return def
}

// primarySubtag reduces a locale tag to its primary language subtag,
// dropping region and script ("en-US" and "en-Latn-GB" both become "en").
func primarySubtag(tag string) string {
	if t, err := language.Parse(tag); err == nil {
		if base, conf := t.Base(); conf != language.No {
			return base.String()
		}
	}
	// Unparseable tags still normalize on the first segment.
	if i := strings.IndexByte(tag, '-'); i >= 0 {
		return tag[:i]
	}
	return tag
}

// Overlap reports whether two locale-tag lists share at least one primary
// language subtag. One common language is enough; no weighting is applied.
func Overlap(a, b []string) bool {
	seen := make(map[string]struct{}, len(b))
	for _, tag := range b {
		seen[primarySubtag(tag)] = struct{}{}
	}
	for _, tag := range a {
		if _, ok := seen[primarySubtag(tag)]; ok {
			return true
		}
	}
	return false
}
