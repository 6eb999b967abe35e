package gallery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBalancedJSONRoundTrip(t *testing.T) {
	t.Parallel()

	original := map[string]any{
		"items": []any{
			map[string]any{"html": "<img src=\"a\">", "meta": map[string]any{"w": 10.0, "nested": map[string]any{"deep": true}}},
			map[string]any{"type": "gif", "note": "braces } { inside a string"},
		},
		"count": 2.0,
	}
	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	text := `<script>var CHIVE_GALLERY_ITEMS = ` + string(encoded) + `; var other = {"x": 1};</script>`
	blob, ok := FindBalancedJSON(text, "CHIVE_GALLERY_ITEMS")
	require.True(t, ok)
	assert.Equal(t, string(encoded), blob)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(blob), &decoded))
	assert.Equal(t, original, decoded)
}

func TestFindBalancedJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{name: "MissingMarker", text: `{"a":1}`},
		{name: "NoObjectAfterMarker", text: `MARK = [1,2]`},
		{name: "Unterminated", text: `MARK = {"a": {"b": 1}`},
		{name: "SkipsTextBeforeBrace", text: `MARK = x {"a":1} {"b":2}`, want: `{"a":1}`, wantOK: true},
		{name: "EscapedQuote", text: `MARK {"a":"\"}"}tail`, want: `{"a":"\"}"}`, wantOK: true},
		{name: "FirstMarkerWins", text: `MARK {"n":1} MARK {"n":2}`, want: `{"n":1}`, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FindBalancedJSON(tt.text, "MARK")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListingPages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/page/2/",
		"https://example.com/page/3/",
	}, ListingPages("https://example.com/", 3))
	assert.Empty(t, ListingPages("https://example.com", 0))
}
