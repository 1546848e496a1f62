package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/conneroisu/webgen/internal/document"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridge(t *testing.T) *Bridge {
	t.Helper()
	return NewBridge(mustParse(t, samplePage))
}

func serialize(t *testing.T, b *Bridge) string {
	t.Helper()
	out, err := b.Serialize()
	require.NoError(t, err)
	return out
}

func TestUpdateImageSerializes(t *testing.T) {
	b := newBridge(t)
	require.NoError(t, b.Select(4))
	require.NoError(t, b.UpdateImage("https://x/y.png"))

	out := serialize(t, b)
	assert.Contains(t, out, `src="https://x/y.png"`)
	assert.NotContains(t, out, AttrEditIndex)
	assert.True(t, strings.HasPrefix(out, "<html>"))
}

func TestMutationsNeedSelection(t *testing.T) {
	b := newBridge(t)
	before := serialize(t, b)

	ops := map[string]func() error{
		"text":      func() error { return b.UpdateText("x") },
		"style":     func() error { return b.UpdateStyle("color", "red") },
		"image":     func() error { return b.UpdateImage("https://x/y.png") },
		"link":      func() error { return b.UpdateLink("https://x") },
		"duplicate": b.DuplicateElement,
		"delete": func() error {
			_, err := b.DeleteElement(context.Background(), AlwaysConfirm)
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(op(), weberrors.ErrNoSelection))
		})
	}
	assert.Equal(t, before, serialize(t, b))
}

func TestMutationsCheckElementType(t *testing.T) {
	b := newBridge(t)
	require.NoError(t, b.Select(1)) // h1
	before := serialize(t, b)

	assert.True(t, errors.Is(b.UpdateImage("https://x/y.png"), weberrors.ErrNotApplicable))
	assert.True(t, errors.Is(b.UpdateLink("https://x"), weberrors.ErrNotApplicable))
	assert.Equal(t, before, serialize(t, b))

	require.NoError(t, b.Select(4)) // img
	assert.True(t, errors.Is(b.UpdateText("caption"), weberrors.ErrNotApplicable))
}

func TestUpdateText(t *testing.T) {
	b := newBridge(t)
	require.NoError(t, b.Select(2))
	require.NoError(t, b.UpdateText("Plain <b>text</b>"))

	out := serialize(t, b)
	assert.Contains(t, out, "<p>Plain &lt;b&gt;text&lt;/b&gt;</p>")
	assert.NotContains(t, out, `href="/about"`, "children are replaced")
}

func TestUpdateStyle(t *testing.T) {
	b := newBridge(t)
	require.NoError(t, b.Select(1))

	require.NoError(t, b.UpdateStyle("fontSize", "40"))
	require.NoError(t, b.UpdateStyle("background-color", "#00ff00"))

	h1 := Editables(b.Model())[1]
	size, _ := document.StyleValue(h1, "font-size")
	bg, _ := document.StyleValue(h1, "background-color")
	color, _ := document.StyleValue(h1, "color")
	assert.Equal(t, "40px", size)
	assert.Equal(t, "#00ff00", bg)
	assert.Equal(t, "rgb(255, 0, 0)", color, "other declarations are kept")

	assert.Error(t, b.UpdateStyle("not a property!", "x"))
}

func TestUpdateLinkValidatesURL(t *testing.T) {
	b := newBridge(t)
	require.NoError(t, b.Select(3))

	assert.Error(t, b.UpdateLink("javascript:alert(1)"))
	assert.Contains(t, serialize(t, b), `href="/about"`)

	for _, u := range []string{"https://example.com/a", "mailto:me@example.com", "tel:+15550100", "#top", "/contact"} {
		require.NoError(t, b.UpdateLink(u), u)
	}
	assert.Contains(t, serialize(t, b), `href="/contact"`)
}

func TestDeleteElement(t *testing.T) {
	ctx := context.Background()
	b := newBridge(t)
	require.NoError(t, b.Select(3))

	declined := ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		assert.Equal(t, DeletePrompt, prompt)
		return false, nil
	})
	removed, err := b.DeleteElement(ctx, declined)
	require.NoError(t, err)
	assert.False(t, removed)
	_, ok := b.Selected()
	assert.True(t, ok, "a declined delete keeps the selection")

	failing := ConfirmFunc(func(context.Context, string) (bool, error) {
		return false, errors.New("prompt closed")
	})
	_, err = b.DeleteElement(ctx, failing)
	assert.Error(t, err)

	removed, err = b.DeleteElement(ctx, AlwaysConfirm)
	require.NoError(t, err)
	assert.True(t, removed)
	_, ok = b.Selected()
	assert.False(t, ok)

	out := serialize(t, b)
	assert.NotContains(t, out, "About")
	assert.Len(t, Editables(b.Model()), sampleEditables-1)
}

func TestDuplicateElement(t *testing.T) {
	b := newBridge(t)
	require.NoError(t, b.Select(1))
	require.NoError(t, b.DuplicateElement())

	i, ok := b.Selected()
	require.True(t, ok)
	assert.Equal(t, 1, i, "the original stays selected")
	assert.Equal(t, 2, strings.Count(serialize(t, b), "Hello</h1>"))

	live := NewEngine().Annotate(b.Model())
	require.Equal(t, sampleEditables+1, live.Len())
	seen := map[string]bool{}
	for j := 0; j < live.Len(); j++ {
		n, _ := live.Node(j)
		v, _ := document.Attr(n, AttrEditIndex)
		assert.False(t, seen[v], "index %s assigned twice", v)
		seen[v] = true
	}
	second, _ := live.Node(2)
	assert.Equal(t, "h1", document.Tag(second))
}

func TestSerializeStripsPastedAnnotations(t *testing.T) {
	live := NewEngine().Annotate(mustParse(t, samplePage))
	_, err := live.Select(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	annotated, err := live.Markup()
	require.NoError(t, err)

	b := NewBridge(mustParse(t, annotated))
	out := serialize(t, b)
	for _, artifact := range []string{AttrEditIndex, ClassSelected, ClassToolbar, IDEditorStyle, IDBridgeScript} {
		assert.NotContains(t, out, artifact)
	}

	b.Replace(mustParse(t, annotated))
	_, ok := b.Selected()
	assert.False(t, ok)
	assert.NotContains(t, serialize(t, b), AttrEditIndex)
}

func TestSelectRange(t *testing.T) {
	b := newBridge(t)
	assert.Error(t, b.Select(-1))
	assert.Error(t, b.Select(sampleEditables))
	require.NoError(t, b.Select(0))
	b.ClearSelection()
	_, ok := b.Selected()
	assert.False(t, ok)
}
