package published

import (
	"errors"
	"html"
	"strings"
	"testing"

	"github.com/conneroisu/webgen/internal/backend"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const savedSite = `<html><head><title>Cafe</title><style>h1{color:brown}</style></head>` +
	`<body><header class="hero"><h1 onclick="steal()">Welcome</h1></header>` +
	`<a href="javascript:alert(1)">bad</a><a href="/menu">Menu</a>` +
	`<script>document.title = "x"</script><script src="https://cdn.example/lib.js"></script></body></html>`

func TestRenderRequiresSubscription(t *testing.T) {
	_, err := NewRenderer(nil).Render(backend.PublishedSite{HTML: savedSite})
	require.Error(t, err)
	assert.True(t, errors.Is(err, weberrors.ErrSubscriptionRequired))
	assert.Contains(t, err.Error(), SubscriptionMessage)
}

func TestRenderSanitizesBody(t *testing.T) {
	page, err := NewRenderer(nil).Render(backend.PublishedSite{
		HTML:                  savedSite,
		CSS:                   "p{margin:0}",
		JS:                    "console.log('extra')",
		HasActiveSubscription: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Cafe", page.Title)
	assert.Contains(t, page.Body, `class="hero"`)
	assert.Contains(t, page.Body, "Welcome")
	assert.Contains(t, page.Body, `href="/menu"`)
	assert.NotContains(t, page.Body, "onclick")
	assert.NotContains(t, page.Body, "javascript:")
	assert.NotContains(t, page.Body, "<script")

	assert.Equal(t, "h1{color:brown}\n\np{margin:0}", page.CSS)
	assert.Equal(t, "document.title = \"x\"\n\nconsole.log('extra')", page.JS)
}

func TestRenderDocumentKeepsScriptsInFrame(t *testing.T) {
	page, err := NewRenderer(nil).Render(backend.PublishedSite{
		HTML:                  savedSite,
		HasActiveSubscription: true,
	})
	require.NoError(t, err)

	doc := page.Document
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, `<script src="https://cdn.tailwindcss.com"></script>`)
	assert.Contains(t, doc, "<style>h1{color:brown}</style>")
	assert.Contains(t, doc, `sandbox="allow-scripts"`)
	assert.NotContains(t, doc, "allow-same-origin")
	assert.Equal(t, 1, strings.Count(doc, "<script"), "only the Tailwind script runs in the page")
}

func TestRenderKeepsTemplateMarkup(t *testing.T) {
	site := `<html><body>` +
		`<div style="display:flex; gap:1rem; position:relative">` +
		`<button class="btn" type="button" onclick="steal()">Contact</button>` +
		`<svg viewBox="0 0 24 24" width="24" onload="steal()"><path d="M0 0h24v24H0z" fill="currentColor"/></svg>` +
		`<form action="/subscribe" method="post"><label for="email">Email</label>` +
		`<input id="email" type="email" name="email" placeholder="you@example.com" required></form>` +
		`<form action="javascript:steal()"><button>Go</button></form>` +
		`<p style="background:url(javascript:steal())" data-section="intro">Hi</p>` +
		`<iframe src="https://evil.example"></iframe>` +
		`</div></body></html>`

	page, err := NewRenderer(nil).Render(backend.PublishedSite{HTML: site, HasActiveSubscription: true})
	require.NoError(t, err)
	body := page.Body
	lower := strings.ToLower(body)

	assert.Contains(t, body, "gap:1rem")
	assert.Contains(t, body, "position:relative")
	assert.Contains(t, body, `<button class="btn" type="button">Contact</button>`)
	assert.Contains(t, lower, `<svg viewbox="0 0 24 24" width="24">`)
	assert.Contains(t, body, `d="M0 0h24v24H0z"`)
	assert.Contains(t, body, `action="/subscribe"`)
	assert.Contains(t, body, `type="email"`)
	assert.Contains(t, body, `placeholder="you@example.com"`)
	assert.Contains(t, body, `data-section="intro"`)

	assert.NotContains(t, lower, "onclick")
	assert.NotContains(t, lower, "onload")
	assert.NotContains(t, lower, "javascript")
	assert.NotContains(t, lower, "<iframe")
	assert.NotContains(t, body, "evil.example")
}

func TestRenderNameWinsOverTitle(t *testing.T) {
	page, err := NewRenderer(nil).Render(backend.PublishedSite{
		Name:                  "My <Cafe>",
		HTML:                  savedSite,
		HasActiveSubscription: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "My <Cafe>", page.Title)
	assert.Contains(t, page.Document, "<title>My &lt;Cafe&gt;</title>")
}

func TestRenderEmptySite(t *testing.T) {
	_, err := NewRenderer(nil).Render(backend.PublishedSite{HasActiveSubscription: true})
	assert.True(t, errors.Is(err, weberrors.ErrEmptyTemplate))
}

func TestRenderCSSCannotCloseStyleBlock(t *testing.T) {
	page, err := NewRenderer(nil).Render(backend.PublishedSite{
		HTML:                  "<p>x</p>",
		CSS:                   "p{}</style><script>alert(1)</script>",
		HasActiveSubscription: true,
	})
	require.NoError(t, err)
	assert.NotContains(t, page.Document, "</style><script>")
}

func TestScriptFrame(t *testing.T) {
	assert.Empty(t, ScriptFrame("  "))

	frame := ScriptFrame(`var s = "</script><img src=x>";`)
	assert.True(t, strings.HasPrefix(frame, `<iframe sandbox="allow-scripts" hidden`))
	assert.NotContains(t, frame, "<script>", "the srcdoc is attribute-escaped")

	start := strings.Index(frame, `srcdoc="`) + len(`srcdoc="`)
	end := strings.LastIndex(frame, `"></iframe>`)
	srcdoc := html.UnescapeString(frame[start:end])
	assert.Equal(t, 1, strings.Count(srcdoc, "</script>"), "user code cannot end the script early")
}
