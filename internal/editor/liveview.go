package editor

import (
	"context"
	"strings"

	"github.com/conneroisu/webgen/internal/document"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/sandbox"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StyleResolver reads the resolved style of an annotated element from a
// rendering surface.
type StyleResolver interface {
	ComputedStyle(ctx context.Context, index int) (*sandbox.ComputedStyle, error)
}

// Snapshot is the editable state of the selected element.
type Snapshot struct {
	Index           int    `json:"index"`
	Tag             string `json:"tag"`
	Text            string `json:"text"`
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
	FontSize        int    `json:"fontSize"`
	Src             string `json:"src,omitempty"`
	Href            string `json:"href,omitempty"`
}

// LiveView is an annotated clone of a document. It carries the display-only
// state: hover and selection affordances and the toolbar. A live view is
// discarded and re-derived after every mutation of the model.
type LiveView struct {
	doc      *document.Document
	nodes    []*html.Node
	selected int
	hovered  map[int]bool
	toolbar  *html.Node
}

// Len returns the number of indexed elements.
func (v *LiveView) Len() int {
	return len(v.nodes)
}

// Node returns the live element carrying index i.
func (v *LiveView) Node(i int) (*html.Node, bool) {
	if i < 0 || i >= len(v.nodes) {
		return nil, false
	}
	return v.nodes[i], true
}

// Document returns the annotated document.
func (v *LiveView) Document() *document.Document {
	return v.doc
}

// Markup renders the annotated document including its doctype.
func (v *LiveView) Markup() (string, error) {
	return document.RenderNode(v.doc.Root())
}

// Selected returns the selected index.
func (v *LiveView) Selected() (int, bool) {
	return v.selected, v.selected >= 0
}

// PointerEnter adds the hover affordance unless the element is selected.
func (v *LiveView) PointerEnter(i int) error {
	n, ok := v.Node(i)
	if !ok {
		return indexError(i)
	}
	if i == v.selected {
		return nil
	}
	document.AddClass(n, ClassHover)
	v.hovered[i] = true
	return nil
}

// PointerLeave removes the hover affordance.
func (v *LiveView) PointerLeave(i int) error {
	n, ok := v.Node(i)
	if !ok {
		return indexError(i)
	}
	document.RemoveClass(n, ClassHover)
	delete(v.hovered, i)
	return nil
}

// Select makes element i the single selected element and returns its
// snapshot. reported is the style the browser resolved at click time; when
// nil the resolver is asked, then the inline-style cascade.
func (v *LiveView) Select(ctx context.Context, i int, reported *sandbox.ComputedStyle, resolver StyleResolver) (Snapshot, error) {
	n, ok := v.Node(i)
	if !ok {
		return Snapshot{}, indexError(i)
	}
	v.clearSelection()
	snap := v.snapshot(ctx, i, n, reported, resolver)
	v.mark(i, n)
	return snap, nil
}

// Restore marks i as selected without reading it. Sessions use it to carry
// a selection over to a freshly derived view before it is rendered.
func (v *LiveView) Restore(i int) error {
	n, ok := v.Node(i)
	if !ok {
		return indexError(i)
	}
	v.clearSelection()
	v.mark(i, n)
	return nil
}

// Snapshot reads element i without touching the selection.
func (v *LiveView) Snapshot(ctx context.Context, i int, reported *sandbox.ComputedStyle, resolver StyleResolver) (Snapshot, error) {
	n, ok := v.Node(i)
	if !ok {
		return Snapshot{}, indexError(i)
	}
	return v.snapshot(ctx, i, n, reported, resolver), nil
}

func (v *LiveView) snapshot(ctx context.Context, i int, n *html.Node, reported *sandbox.ComputedStyle, resolver StyleResolver) Snapshot {
	snap := Snapshot{
		Index: i,
		Tag:   document.Tag(n),
		Text:  visibleText(n),
	}
	switch n.DataAtom {
	case atom.Img:
		snap.Src, _ = document.Attr(n, "src")
	case atom.A:
		snap.Href, _ = document.Attr(n, "href")
	}

	style := reported
	if style == nil && resolver != nil {
		if resolved, err := resolver.ComputedStyle(ctx, i); err == nil && resolved != nil {
			style = resolved
		}
	}
	if style == nil {
		style = cascadeStyle(n)
	}
	snap.Color = document.RGBToHex(style.Color)
	snap.BackgroundColor = document.RGBToHex(style.BackgroundColor)
	snap.FontSize = document.LeadingInt(style.FontSize)
	return snap
}

// visibleText is the text content of n with toolbar labels left out.
func visibleText(n *html.Node) string {
	var b strings.Builder
	document.Walk(n, func(x *html.Node) bool {
		switch {
		case x.Type == html.ElementNode && document.HasClass(x, ClassToolbar):
			return false
		case x.Type == html.TextNode:
			b.WriteString(x.Data)
		}
		return true
	})
	return b.String()
}

// Deselect clears the selection affordance.
func (v *LiveView) Deselect() {
	v.clearSelection()
}

func (v *LiveView) mark(i int, n *html.Node) {
	document.RemoveClass(n, ClassHover)
	delete(v.hovered, i)
	document.AddClass(n, ClassSelected)

	bar := newToolbar(i)
	if document.IsVoid(n) {
		n.Parent.InsertBefore(bar, n)
	} else {
		n.InsertBefore(bar, n.FirstChild)
	}
	v.toolbar = bar
	v.selected = i
}

func (v *LiveView) clearSelection() {
	if v.toolbar != nil {
		document.Detach(v.toolbar)
		v.toolbar = nil
	}
	for i := range v.hovered {
		document.RemoveClass(v.nodes[i], ClassHover)
	}
	v.hovered = map[int]bool{}
	if v.selected >= 0 {
		document.RemoveClass(v.nodes[v.selected], ClassSelected)
	}
	v.selected = -1
}

// cascadeStyle approximates computed style from inline declarations: color
// and font-size inherit, background does not.
func cascadeStyle(n *html.Node) *sandbox.ComputedStyle {
	bg, ok := document.StyleValue(n, "background-color")
	if !ok {
		bg = document.DefaultBackgroundColor
	}
	return &sandbox.ComputedStyle{
		Color:           document.InheritedStyle(n, "color", document.DefaultColor),
		BackgroundColor: bg,
		FontSize:        document.InheritedStyle(n, "font-size", document.DefaultFontSize),
	}
}

func indexError(i int) error {
	return weberrors.NewValidationError(weberrors.ErrCodeValidationFailed, "no element with that index").
		WithContext("index", i)
}
