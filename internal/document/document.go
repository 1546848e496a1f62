// Package document holds the structured model of a website page.
//
// A Document wraps a parsed golang.org/x/net/html tree and is the source of
// truth for an editing session. Annotated live views are derived from it by
// cloning; nothing the editor adds for display ever enters the model.
package document

import (
	"bytes"
	"strings"

	weberrors "github.com/conneroisu/webgen/internal/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML page. The zero value is not usable; construct
// one with Parse.
type Document struct {
	root *html.Node
}

// Parse builds a document from markup. The HTML5 parser always produces the
// html, head and body elements, so fragments become full documents.
func Parse(src string) (*Document, error) {
	if strings.TrimSpace(src) == "" {
		return nil, weberrors.NewEmptyTemplateError().WithComponent("document")
	}
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, weberrors.NewInvalidTemplateError("failed to parse html", err).
			WithComponent("document")
	}
	return &Document{root: root}, nil
}

// FromNode wraps an existing document node.
func FromNode(root *html.Node) *Document {
	return &Document{root: root}
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// HTMLElement returns the <html> element.
func (d *Document) HTMLElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

// Head returns the <head> element.
func (d *Document) Head() *html.Node {
	return d.child(atom.Head)
}

// Body returns the <body> element. Frameset documents have none.
func (d *Document) Body() *html.Node {
	return d.child(atom.Body)
}

func (d *Document) child(a atom.Atom) *html.Node {
	h := d.HTMLElement()
	if h == nil {
		return nil
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

// Clone returns a deep copy that shares no nodes with d.
func (d *Document) Clone() *Document {
	return &Document{root: CloneNode(d.root)}
}

// Render returns the outer HTML of the <html> element. The doctype is not
// part of the output.
func (d *Document) Render() (string, error) {
	n := d.HTMLElement()
	if n == nil {
		n = d.root
	}
	return RenderNode(n)
}

// RenderNode renders a single node and its subtree.
func RenderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", weberrors.NewInternalError(weberrors.ErrCodeInternal, "failed to render html", err)
	}
	return buf.String(), nil
}
