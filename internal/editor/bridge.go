package editor

import (
	"context"

	"github.com/conneroisu/webgen/internal/document"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/validation"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DeletePrompt is the confirmation question asked before deleting.
const DeletePrompt = "Are you sure you want to delete this element?"

// Confirmer asks the user to approve a destructive operation.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm approves every prompt.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) {
	return true, nil
})

// Bridge applies edits to the document model for the selected element and
// serializes the model for persistence. Every operation validates before it
// mutates, so a failed operation leaves the model untouched.
type Bridge struct {
	model    *document.Document
	selected int
}

// NewBridge wraps a document model with no selection.
func NewBridge(model *document.Document) *Bridge {
	return &Bridge{model: model, selected: -1}
}

// Model returns the document model.
func (b *Bridge) Model() *document.Document {
	return b.model
}

// Replace swaps the model, as after a raw-code reload, and clears the
// selection. Annotation artifacts pasted with the markup are stripped.
func (b *Bridge) Replace(model *document.Document) {
	StripAnnotations(model.Root())
	b.model = model
	b.selected = -1
}

// Select records i as the selected element index.
func (b *Bridge) Select(i int) error {
	if i < 0 || i >= len(Editables(b.model)) {
		return indexError(i)
	}
	b.selected = i
	return nil
}

// Selected returns the selected index.
func (b *Bridge) Selected() (int, bool) {
	return b.selected, b.selected >= 0
}

// ClearSelection drops the selection.
func (b *Bridge) ClearSelection() {
	b.selected = -1
}

// target resolves the selected model node.
func (b *Bridge) target(op string) (*html.Node, error) {
	if b.selected < 0 {
		return nil, weberrors.NewNoSelectionError(op)
	}
	nodes := Editables(b.model)
	if b.selected >= len(nodes) {
		b.selected = -1
		return nil, weberrors.NewNoSelectionError(op)
	}
	return nodes[b.selected], nil
}

// UpdateText replaces the text content of the selected element.
func (b *Bridge) UpdateText(value string) error {
	n, err := b.target("updateText")
	if err != nil {
		return err
	}
	if document.IsVoid(n) {
		return weberrors.NewNotApplicableError("updateText", document.Tag(n))
	}
	document.SetTextContent(n, value)
	return nil
}

// UpdateStyle sets one inline style property. Property names may be given
// in camelCase or kebab-case; bare font sizes get a px unit.
func (b *Bridge) UpdateStyle(property, value string) error {
	n, err := b.target("updateStyle")
	if err != nil {
		return err
	}
	prop, err := document.CSSProperty(property)
	if err != nil {
		return err
	}
	document.SetStyle(n, prop, document.NormalizeStyleValue(prop, value))
	return nil
}

// UpdateImage sets src on the selected image.
func (b *Bridge) UpdateImage(url string) error {
	return b.setURL("updateImage", atom.Img, "src", url)
}

// UpdateLink sets href on the selected anchor.
func (b *Bridge) UpdateLink(url string) error {
	return b.setURL("updateLink", atom.A, "href", url)
}

func (b *Bridge) setURL(op string, want atom.Atom, attr, url string) error {
	n, err := b.target(op)
	if err != nil {
		return err
	}
	if n.DataAtom != want {
		return weberrors.NewNotApplicableError(op, document.Tag(n))
	}
	if err := validation.ValidateLinkURL(url); err != nil {
		return weberrors.NewValidationError(weberrors.ErrCodeValidationFailed, err.Error()).
			WithContext("operation", op)
	}
	document.SetAttr(n, attr, url)
	return nil
}

// DeleteElement removes the selected element once c approves. It reports
// whether the element was removed; a declined prompt is not an error.
func (b *Bridge) DeleteElement(ctx context.Context, c Confirmer) (bool, error) {
	n, err := b.target("deleteElement")
	if err != nil {
		return false, err
	}
	if c != nil {
		ok, err := c.Confirm(ctx, DeletePrompt)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	document.Detach(n)
	b.selected = -1
	return true, nil
}

// DuplicateElement inserts a deep clone right after the selected element.
// The original stays selected.
func (b *Bridge) DuplicateElement() error {
	n, err := b.target("duplicateElement")
	if err != nil {
		return err
	}
	document.InsertAfter(n, document.CloneNode(n))
	return nil
}

// Serialize returns the outer HTML of the document root. Annotation
// artifacts are stripped from a copy first, so markup that arrived
// annotated never reaches persistence.
func (b *Bridge) Serialize() (string, error) {
	clean := b.model.Clone()
	StripAnnotations(clean.Root())
	return clean.Render()
}
