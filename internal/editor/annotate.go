// Package editor implements the visual editing core: annotating a derived
// live view of a document with stable indices, tracking hover and selection,
// applying edits to the document model and serializing it for persistence.
package editor

import (
	"strconv"

	"github.com/conneroisu/webgen/internal/document"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Annotation artifacts added to live views. None of them may reach
// persisted markup.
const (
	AttrEditIndex  = "data-edit-index"
	ClassHover     = "editable-hover"
	ClassSelected  = "editable-selected"
	ClassToolbar   = "edit-toolbar"
	IDEditorStyle  = "webgen-editor-style"
	IDBridgeScript = "webgen-bridge"
)

// Engine derives annotated live views from document models.
type Engine struct {
	bridge bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithoutBridge skips the pointer-event bridge script, for surfaces that
// never run scripts.
func WithoutBridge() EngineOption {
	return func(e *Engine) { e.bridge = false }
}

// NewEngine creates an annotation engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{bridge: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Annotate clones doc and assigns every editable element a zero-based
// index in document order. The model itself is not touched.
func (e *Engine) Annotate(doc *document.Document) *LiveView {
	live := doc.Clone()
	nodes := Editables(live)
	for i, n := range nodes {
		document.SetAttr(n, AttrEditIndex, strconv.Itoa(i))
	}

	if head := live.Head(); head != nil {
		head.AppendChild(rawElement(atom.Style, IDEditorStyle, editorCSS))
	}
	if body := live.Body(); body != nil && e.bridge {
		body.AppendChild(rawElement(atom.Script, IDBridgeScript, bridgeJS))
	}

	return &LiveView{doc: live, nodes: nodes, selected: -1, hovered: map[int]bool{}}
}

// Editables lists the elements under <body> that can be selected, in
// document order. Script and style elements are skipped; so are editor
// artifacts in case doc came from annotated markup.
func Editables(doc *document.Document) []*html.Node {
	body := doc.Body()
	if body == nil {
		return nil
	}
	var out []*html.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		document.Walk(c, func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return false
			}
			if isArtifact(n) {
				return false
			}
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return false
			}
			out = append(out, n)
			return true
		})
	}
	return out
}

func isArtifact(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if document.HasClass(n, ClassToolbar) {
		return true
	}
	id, _ := document.Attr(n, "id")
	return id == IDEditorStyle || id == IDBridgeScript
}

// StripAnnotations removes every annotation artifact below n: marker
// classes, index attributes, toolbars and the injected style and script.
func StripAnnotations(n *html.Node) {
	document.Walk(n, func(x *html.Node) bool {
		if x.Type != html.ElementNode {
			return true
		}
		if isArtifact(x) {
			document.Detach(x)
			return false
		}
		document.RemoveAttr(x, AttrEditIndex)
		document.RemoveClass(x, ClassHover)
		document.RemoveClass(x, ClassSelected)
		return true
	})
}

func rawElement(a atom.Atom, id, body string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: body})
	return n
}

func newToolbar(index int) *html.Node {
	bar := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr: []html.Attribute{
			{Key: "class", Val: ClassToolbar},
			{Key: "data-for-index", Val: strconv.Itoa(index)},
			{Key: "contenteditable", Val: "false"},
		},
	}
	for _, action := range []struct{ name, label string }{
		{string(MsgEdit), "Edit"},
		{string(MsgDelete), "Delete"},
		{string(MsgDuplicate), "Duplicate"},
	} {
		btn := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Button,
			Data:     "button",
			Attr: []html.Attribute{
				{Key: "type", Val: "button"},
				{Key: "data-action", Val: action.name},
			},
		}
		btn.AppendChild(&html.Node{Type: html.TextNode, Data: action.label})
		bar.AppendChild(btn)
	}
	return bar
}
