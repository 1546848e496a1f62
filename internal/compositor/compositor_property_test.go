//go:build property

package compositor

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestComposeProperties checks that composition injects each artifact at
// most once, however many times a document is recomposed.
func TestComposeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	ident := gen.Identifier()
	layouts := []string{
		"<html><head></head><body>%s</body></html>",
		"<!DOCTYPE html><html><HEAD><title>t</title></HEAD><BODY>%s</BODY></html>",
		"<div>%s</div>",
		"<html><head><body>%s",
	}
	shell := gen.IntRange(0, len(layouts)-1).Map(func(i int) string { return layouts[i] })

	properties.Property("recomposition is a fixed point", prop.ForAll(
		func(layout, content, css, js string) bool {
			f := Fragments{
				HTML: strings.Replace(layout, "%s", "<p>"+content+"</p>", 1),
				CSS:  "." + css + "{color:red}",
				JS:   "var " + js + "=1;",
			}
			once, err := Compose(f)
			if err != nil {
				return false
			}
			twice, err := Compose(Fragments{HTML: once, CSS: f.CSS, JS: f.JS})
			if err != nil {
				return false
			}
			return once == twice
		},
		shell, ident, ident, ident,
	))

	properties.Property("each artifact appears at most once", prop.ForAll(
		func(layout, css, js string, rounds int) bool {
			f := Fragments{
				HTML: strings.Replace(layout, "%s", "<h1>x</h1>", 1),
				CSS:  "#" + css + "{margin:0}",
				JS:   "console.log('" + js + "');",
			}
			doc := f.HTML
			for i := 0; i < rounds; i++ {
				out, err := Compose(Fragments{HTML: doc, CSS: f.CSS, JS: f.JS})
				if err != nil {
					return false
				}
				doc = out
			}
			return strings.Count(doc, DefaultTailwindURL) == 1 &&
				strings.Count(doc, f.CSS) <= 1 &&
				strings.Count(doc, f.JS) == 1
		},
		shell, ident, ident, gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
