package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"script block", "<script>alert(1)</script>hello", "hello"},
		{"script with attributes", `<script type="text/javascript">steal()</script> Joe `, "Joe"},
		{"uppercase script", "<SCRIPT>x()</SCRIPT>Smith", "Smith"},
		{"multiline script", "a<script>\nline1\nline2\n</script>b", "ab"},
		{"spaced closing tag", "<script>x</ script >ok", "ok"},
		{"dangling open tag", "hi<script src=//evil.example/x.js>", "hi"},
		{"javascript scheme", "javascript:alert(1)", "alert(1)"},
		{"mixed case scheme with space", "  JavaScript :void(0) ", "void(0)"},
		{"plain text untouched", "farmer_joe", "farmer_joe"},
		{"trims whitespace", "  Joe  ", "Joe"},
		{"keeps inner spaces", "Joe  Smith", "Joe  Smith"},
		{"non script tags kept", "<b>bold</b>", "<b>bold</b>"},
		{"scripted word kept", "scripture", "scripture"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeString(tt.input))
		})
	}
}

func TestSanitizeValue_Recursive(t *testing.T) {
	input := map[string]any{
		"username": " <script>alert(1)</script>farmer_joe ",
		"age":      float64(42),
		"verified": true,
		"nested": map[string]any{
			"link": "javascript:go()",
			"list": []any{"<script>x</script>a", float64(1), nil, map[string]any{"deep": " b "}},
		},
	}

	got := SanitizeValue(input).(map[string]any)

	assert.Equal(t, "farmer_joe", got["username"])
	assert.Equal(t, float64(42), got["age"])
	assert.Equal(t, true, got["verified"])

	nested := got["nested"].(map[string]any)
	assert.Equal(t, "go()", nested["link"])

	list := nested["list"].([]any)
	assert.Equal(t, "a", list[0])
	assert.Equal(t, float64(1), list[1])
	assert.Nil(t, list[2])
	assert.Equal(t, "b", list[3].(map[string]any)["deep"])
}
