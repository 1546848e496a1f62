package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/conneroisu/webgen/internal/catalog"
	"github.com/conneroisu/webgen/internal/compositor"
	"github.com/conneroisu/webgen/internal/published"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestLayout(t *testing.T) {
	out := render(t, Layout(Page{Title: "Templates <all>", Theme: "dracula", LiveReload: true}, ErrorPanel("x", "")))
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `data-theme="dracula"`)
	assert.Contains(t, out, "<title>Templates &lt;all&gt;</title>")
	assert.Contains(t, out, "/ws/reload")
	assert.True(t, strings.HasSuffix(out, "</body></html>"))

	out = render(t, Layout(Page{Title: "x"}, ErrorPanel("x", "")))
	assert.Contains(t, out, `data-theme="forest"`)
	assert.NotContains(t, out, "/ws/reload")
}

func TestGallery(t *testing.T) {
	out := render(t, Gallery(GalleryData{
		Templates: []compositor.TemplatePayload{
			{Slug: "portfolio-clean", Name: "Clean <Portfolio>", Category: "portfolio", Thumbnail: "javascript:alert(1)"},
			{ID: "64f0", Name: "Shop", Category: "ecommerce", Description: "Sell things"},
		},
		Categories: catalog.Categories(),
		Active:     "ecommerce",
	}))

	assert.Contains(t, out, `href="/templates/portfolio-clean/preview"`)
	assert.Contains(t, out, `href="/templates/64f0/preview"`, "the backend id wins over the slug")
	assert.Contains(t, out, "Clean &lt;Portfolio&gt;")
	assert.Contains(t, out, "E-commerce")
	assert.Contains(t, out, `class="wg-btn active" href="/?category=ecommerce"`)
	assert.NotContains(t, out, "javascript:alert", "unsafe thumbnails are neutralized")

	empty := render(t, Gallery(GalleryData{Categories: catalog.Categories()}))
	assert.Contains(t, empty, "No templates in this category yet.")
	assert.Contains(t, empty, `class="wg-btn active" href="/?category=all"`)
}

func TestPreviewWidths(t *testing.T) {
	tpl := compositor.TemplatePayload{Slug: "blog-basic", Name: "Blog"}
	testCases := []struct {
		view  sandbox.Viewport
		width string
	}{
		{sandbox.Desktop, "width:100%"},
		{sandbox.Tablet, "width:768px"},
		{sandbox.Mobile, "width:375px"},
	}
	for _, tc := range testCases {
		t.Run(tc.view.Name, func(t *testing.T) {
			out := render(t, Preview(PreviewData{Template: tpl, View: tc.view}))
			assert.Contains(t, out, tc.width)
			assert.Contains(t, out, `src="/templates/blog-basic/document"`)
			assert.Contains(t, out, `sandbox="allow-scripts"`)
			assert.Contains(t, out, `class="wg-btn active" href="/templates/blog-basic/preview?view=`+tc.view.Name+`"`)
		})
	}
}

func TestPanels(t *testing.T) {
	out := render(t, ErrorPanel("Template has no content", "/templates/a/document"))
	assert.Contains(t, out, "Template has no content")
	assert.Contains(t, out, `href="/templates/a/document">Retry</a>`)
	assert.NotContains(t, render(t, ErrorPanel("boom", "")), "Retry")

	assert.Contains(t, render(t, NotFound("no site at /x")), "Website Not Found")
	assert.Contains(t, render(t, SubscriptionRequired()), published.SubscriptionMessage)
	assert.Equal(t, "<html>site</html>", render(t, Published(published.Page{Document: "<html>site</html>"})))

	standalone := render(t, Standalone("Preview", ErrorPanel("boom", "")))
	assert.True(t, strings.HasPrefix(standalone, "<!DOCTYPE html>"))
	assert.NotContains(t, standalone, "wg-bar")
}

func TestEditorShell(t *testing.T) {
	out := render(t, EditorShell(EditorData{WebsiteID: "w1", Name: `My "Site"`, Socket: "/ws/editor/w1"}))
	assert.Contains(t, out, `{"websiteId":"w1","socket":"/ws/editor/w1"}`)
	assert.Contains(t, out, `id="wg-frame" title="Website preview" sandbox="allow-scripts"`)
	assert.NotContains(t, out, "allow-same-origin")
	assert.Contains(t, out, `value="My &#34;Site&#34;"`)
	assert.Contains(t, out, `type: "confirm_reply"`)
	assert.Contains(t, out, `source: "webgen-host", type: "deselect"`)
}
