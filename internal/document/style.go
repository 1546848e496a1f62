package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"golang.org/x/net/html"
)

// Resolved style defaults used when nothing in the cascade sets a value.
const (
	DefaultColor           = "rgb(0, 0, 0)"
	DefaultFontSize        = "16px"
	DefaultBackgroundColor = "rgba(0, 0, 0, 0)"
)

var (
	propertyName = regexp.MustCompile(`^-?[a-zA-Z][a-zA-Z0-9-]*$`)
	numberRun    = regexp.MustCompile(`\d*\.?\d+%?`)
	bareNumber   = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// Declarations parses an element's inline style attribute. Malformed
// declarations are dropped.
func Declarations(n *html.Node) []*css.Declaration {
	v, ok := Attr(n, "style")
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	decls, err := parser.ParseDeclarations(v)
	if err != nil {
		return nil
	}
	return decls
}

// StyleValue returns the inline value of a kebab-case property.
func StyleValue(n *html.Node, prop string) (string, bool) {
	var (
		val   string
		found bool
	)
	for _, d := range Declarations(n) {
		if strings.EqualFold(d.Property, prop) {
			val, found = d.Value, true
		}
	}
	return val, found
}

// SetStyle sets exactly one inline property, replacing any previous value
// for it and keeping every other declaration.
func SetStyle(n *html.Node, prop, value string) {
	var parts []string
	for _, d := range Declarations(n) {
		if strings.EqualFold(d.Property, prop) {
			continue
		}
		parts = append(parts, formatDeclaration(d))
	}
	if strings.TrimSpace(value) != "" {
		parts = append(parts, prop+": "+value)
	}
	if len(parts) == 0 {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", strings.Join(parts, "; ")+";")
}

func formatDeclaration(d *css.Declaration) string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// CSSProperty normalizes a property name given in camelCase (as the DOM
// style object spells it) or kebab-case.
func CSSProperty(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !propertyName.MatchString(name) {
		return "", weberrors.NewValidationError(weberrors.ErrCodeValidationFailed,
			fmt.Sprintf("invalid style property %q", name))
	}
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// NormalizeStyleValue appends the px unit to bare font sizes.
func NormalizeStyleValue(prop, value string) string {
	value = strings.TrimSpace(value)
	if prop == "font-size" && bareNumber.MatchString(value) {
		return value + "px"
	}
	return value
}

// RGBToHex converts rgb()/rgba() notation to #rrggbb. Empty and fully
// transparent values resolve to white; values without numbers to black.
func RGBToHex(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "transparent") {
		return "#ffffff"
	}
	if strings.HasPrefix(v, "#") && (len(v) == 7 || len(v) == 4) {
		return expandHex(strings.ToLower(v))
	}
	nums := numberRun.FindAllString(v, 4)
	if len(nums) == 0 {
		return "#000000"
	}
	// A fully transparent colour shows the white page behind it.
	if len(nums) == 4 {
		alpha, err := strconv.ParseFloat(strings.TrimSuffix(nums[3], "%"), 64)
		if err == nil && alpha == 0 {
			return "#ffffff"
		}
	}
	var b strings.Builder
	b.WriteByte('#')
	for i := 0; i < 3; i++ {
		c := 0
		if i < len(nums) {
			f, _ := strconv.ParseFloat(strings.TrimSuffix(nums[i], "%"), 64)
			c = clampByte(int(f))
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	return b.String()
}

func expandHex(v string) string {
	if len(v) == 7 {
		return v
	}
	return "#" + strings.Repeat(v[1:2], 2) + strings.Repeat(v[2:3], 2) + strings.Repeat(v[3:4], 2)
}

func clampByte(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 255:
		return 255
	}
	return c
}

// LeadingInt parses the integer prefix of a length such as "18.5px".
func LeadingInt(v string) int {
	v = strings.TrimSpace(v)
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0
	}
	return n
}

// InheritedStyle resolves a property by walking from n towards the root and
// returning the first inline value, or def when none is set.
func InheritedStyle(n *html.Node, prop, def string) string {
	for x := n; x != nil; x = x.Parent {
		if x.Type != html.ElementNode {
			continue
		}
		if v, ok := StyleValue(x, prop); ok && v != "" {
			return v
		}
	}
	return def
}
