// Package compositor assembles a standalone HTML document from separate
// HTML, CSS and JS fragments.
//
// Composition injects three artifacts: the Tailwind CDN script, a style block
// holding the CSS fragment and a script block holding the JS fragment. Each
// injection is guarded by a presence check against the input markup, which
// makes composition idempotent: feeding a composed document back in with the
// same fragments yields the same document.
package compositor

import (
	weberrors "github.com/conneroisu/webgen/internal/errors"
)

// DefaultTailwindURL is the CDN script injected into composed documents.
const DefaultTailwindURL = "https://cdn.tailwindcss.com"

// Fragments is the template content shape: html is required, css and js are
// optional.
type Fragments struct {
	HTML string `json:"html" yaml:"html"`
	CSS  string `json:"css,omitempty" yaml:"css,omitempty"`
	JS   string `json:"js,omitempty" yaml:"js,omitempty"`
}

// IsEmpty reports whether there is no markup to compose.
func (f Fragments) IsEmpty() bool {
	return isBlank(f.HTML)
}

// Options configures a Compositor.
type Options struct {
	// TailwindURL overrides the CDN script source. The presence check looks
	// for the URL's host, so any reference to the same CDN counts.
	TailwindURL string
}

// Compositor merges fragments into a document. It holds no mutable state
// and is safe for concurrent use.
type Compositor struct {
	tailwindURL    string
	tailwindMarker string
}

// NewCompositor creates a compositor with the given options.
func NewCompositor(opts Options) *Compositor {
	url := opts.TailwindURL
	if url == "" {
		url = DefaultTailwindURL
	}
	return &Compositor{
		tailwindURL:    url,
		tailwindMarker: markerFor(url),
	}
}

var defaultCompositor = NewCompositor(Options{})

// Compose merges fragments using the default Tailwind CDN.
func Compose(f Fragments) (string, error) {
	return defaultCompositor.Compose(f)
}

// TailwindTag returns the script tag the compositor injects.
func (c *Compositor) TailwindTag() string {
	return `<script src="` + c.tailwindURL + `"></script>`
}

// Compose returns a single document containing the html fragment with the
// Tailwind script, the css fragment and the js fragment injected at most
// once each.
func (c *Compositor) Compose(f Fragments) (string, error) {
	if f.IsEmpty() {
		return "", weberrors.NewEmptyTemplateError().WithComponent("compositor")
	}

	src := f.HTML
	doc := src

	if !containsFold(src, c.tailwindMarker) {
		doc = c.injectHead(doc, c.TailwindTag(), true)
	}

	if f.CSS != "" && !contains(src, f.CSS) {
		doc = c.injectHead(doc, "<style>"+f.CSS+"</style>", false)
	}

	if f.JS != "" && !contains(src, f.JS) {
		doc = injectBody(doc, "<script>"+f.JS+"</script>")
	}

	return doc, nil
}

// injectHead places block before the first </head>, or right after the
// opening <head> tag when the closing tag is missing. With neither tag the
// block is dropped unless prepend is set, in which case it lands after the
// <html> tag, before <body>, after the doctype or at the very start, in that
// order of preference. It never precedes the doctype.
func (c *Compositor) injectHead(doc, block string, prepend bool) string {
	if i := indexFold(doc, "</head>"); i >= 0 {
		return doc[:i] + block + "\n" + doc[i:]
	}
	if end := openTagEnd(doc, "head"); end >= 0 {
		return doc[:end] + "\n" + block + doc[end:]
	}
	if !prepend {
		return doc
	}
	if end := openTagEnd(doc, "html"); end >= 0 {
		return doc[:end] + "\n" + block + doc[end:]
	}
	if start, _ := openTag(doc, "body"); start >= 0 {
		return doc[:start] + block + "\n" + doc[start:]
	}
	if end := doctypeEnd(doc); end >= 0 {
		return doc[:end] + "\n" + block + doc[end:]
	}
	return block + "\n" + doc
}

// injectBody places block before the first </body>, or appends it.
func injectBody(doc, block string) string {
	if i := indexFold(doc, "</body>"); i >= 0 {
		return doc[:i] + block + "\n" + doc[i:]
	}
	return doc + "\n" + block
}
