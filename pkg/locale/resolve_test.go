package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuffixes(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want []string
	}{
		{
			name: "plain english contributes no suffix",
			tags: []string{"en"},
			want: []string{"", ""},
		},
		{
			name: "regional tag falls back to plain language",
			tags: []string{"fr-CA"},
			want: []string{"_fr-CA", "_fr", ""},
		},
		{
			name: "regional english falls back to unsuffixed before default",
			tags: []string{"en-GB"},
			want: []string{"_en-GB", "", ""},
		},
		{
			name: "tag order preserved across multiple tags",
			tags: []string{"de-AT", "fr"},
			want: []string{"_de-AT", "_de", "_fr", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suffixes(tt.tags))
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		dict map[string]interface{}
		tags []string
		want interface{}
	}{
		{
			name: "exact regional match wins",
			dict: map[string]interface{}{"displayName_en-GB": "X"},
			tags: []string{"en-GB", "fr"},
			want: "X",
		},
		{
			name: "bare key serves english requests",
			dict: map[string]interface{}{"displayName": "Y"},
			tags: []string{"en-GB", "fr"},
			want: "Y",
		},
		{
			name: "empty dict returns default",
			dict: map[string]interface{}{},
			tags: []string{"en-GB", "fr"},
			want: "",
		},
		{
			name: "earlier tag beats later exact match",
			dict: map[string]interface{}{
				"displayName_fr": "F",
				"displayName_de": "D",
			},
			tags: []string{"fr", "de"},
			want: "F",
		},
		{
			name: "stripped region before next tag",
			dict: map[string]interface{}{
				"displayName_fr": "F",
				"displayName_de": "D",
			},
			tags: []string{"fr-CA", "de"},
			want: "F",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.dict, "displayName", tt.tags, ""))
		})
	}
}

func TestResolveString_NonStringValue(t *testing.T) {
	dict := map[string]interface{}{"displayName": 42}
	assert.Equal(t, "fallback", ResolveString(dict, "displayName", []string{"en"}, "fallback"))
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		want bool
	}{
		{"same language different regions", []string{"en-US"}, []string{"en-GB"}, true},
		{"disjoint languages", []string{"en-US"}, []string{"fr"}, false},
		{"one shared language is enough", []string{"ja", "de"}, []string{"fr", "de-AT"}, true},
		{"empty lists never overlap", nil, []string{"en"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlap(tt.a, tt.b))
		})
	}
}
