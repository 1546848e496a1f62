package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRGBToHex(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"rgb(255, 0, 0)", "#ff0000"},
		{"rgb(17, 34, 51)", "#112233"},
		{"rgba(10, 20, 30, 0.5)", "#0a141e"},
		{"rgba(0, 0, 0, 0)", "#ffffff"},
		{"rgba(0,0,0,0)", "#ffffff"},
		{"rgba(255, 0, 0, 0)", "#ffffff"},
		{"rgba(59, 130, 246, 0)", "#ffffff"},
		{"rgba(59, 130, 246, 0.0)", "#ffffff"},
		{"rgb(59 130 246 / 0%)", "#ffffff"},
		{"rgba(59, 130, 246, .5)", "#3b82f6"},
		{"rgba(59, 130, 246, 1)", "#3b82f6"},
		{"Transparent", "#ffffff"},
		{"transparent", "#ffffff"},
		{"", "#ffffff"},
		{"red", "#000000"},
		{"#ABC", "#aabbcc"},
		{"#123456", "#123456"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, RGBToHex(tc.in))
		})
	}
}

func TestLeadingInt(t *testing.T) {
	assert.Equal(t, 16, LeadingInt("16px"))
	assert.Equal(t, 18, LeadingInt("18.75px"))
	assert.Equal(t, 0, LeadingInt("large"))
	assert.Equal(t, 0, LeadingInt(""))
}

func TestCSSProperty(t *testing.T) {
	testCases := map[string]string{
		"color":           "color",
		"backgroundColor": "background-color",
		"fontSize":        "font-size",
		"font-size":       "font-size",
		"borderTopWidth":  "border-top-width",
	}
	for in, want := range testCases {
		got, err := CSSProperty(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "color;", "x: y", "1abc"} {
		_, err := CSSProperty(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizeStyleValue(t *testing.T) {
	assert.Equal(t, "24px", NormalizeStyleValue("font-size", "24"))
	assert.Equal(t, "1.5rem", NormalizeStyleValue("font-size", "1.5rem"))
	assert.Equal(t, "24", NormalizeStyleValue("line-height", "24"))
}

func TestSetStyleKeepsOtherDeclarations(t *testing.T) {
	doc := mustParse(t, `<p style="color: red; margin: 0 !important">t</p>`)
	p := Elements(doc.Body())[0]

	SetStyle(p, "font-size", "20px")
	SetStyle(p, "color", "blue")

	v, ok := StyleValue(p, "color")
	require.True(t, ok)
	assert.Equal(t, "blue", v)

	v, _ = StyleValue(p, "font-size")
	assert.Equal(t, "20px", v)

	style, _ := Attr(p, "style")
	assert.Contains(t, style, "margin: 0 !important")

	SetStyle(p, "color", "")
	_, ok = StyleValue(p, "color")
	assert.False(t, ok)
}

func TestInheritedStyle(t *testing.T) {
	doc := mustParse(t, `<div style="color: rgb(1, 2, 3); font-size: 20px"><p><span>x</span></p></div>`)
	span := Elements(doc.Body())[2]

	assert.Equal(t, "rgb(1, 2, 3)", InheritedStyle(span, "color", DefaultColor))
	assert.Equal(t, "20px", InheritedStyle(span, "font-size", DefaultFontSize))
	assert.Equal(t, "none", InheritedStyle(span, "text-decoration", "none"))
}
