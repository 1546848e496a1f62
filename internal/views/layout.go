// Package views renders the host pages: the template gallery, the device
// preview, the editor shell and the pages around published sites.
package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/conneroisu/webgen/internal/compositor"
)

// Page is the chrome shared by every host page.
type Page struct {
	Title string
	Theme string
	// LiveReload makes the page reload when the server broadcasts a
	// catalog change.
	LiveReload bool
}

const baseCSS = `
body{margin:0;font-family:system-ui,-apple-system,"Segoe UI",sans-serif;background:#f8fafc;color:#0f172a}
.wg-bar{display:flex;align-items:center;gap:.75rem;padding:.75rem 1.25rem;background:#0f172a;color:#f8fafc}
.wg-bar a{color:inherit;text-decoration:none}
.wg-main{padding:1.25rem}
.wg-btn{display:inline-block;padding:.45rem .9rem;border-radius:.375rem;border:1px solid #cbd5e1;background:#fff;color:#0f172a;cursor:pointer;text-decoration:none;font-size:.875rem}
.wg-btn.active,.wg-btn.primary{background:#2563eb;border-color:#2563eb;color:#fff}
.wg-panel{max-width:32rem;margin:4rem auto;padding:2rem;background:#fff;border-radius:.75rem;box-shadow:0 4px 20px rgba(15,23,42,.08);text-align:center}
`

const liveReloadJS = `
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws/reload");
  ws.onmessage = function (e) {
    try { if (JSON.parse(e.data).type === "reload") location.reload(); } catch (_) {}
  };
})();
`

// Layout wraps body in the host chrome.
func Layout(p Page, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		theme := p.Theme
		if theme == "" {
			theme = "forest"
		}
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en" data-theme="`+templ.EscapeString(theme)+`"><head>`+
			`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>`+templ.EscapeString(p.Title)+`</title>`+
			`<script src="`+compositor.DefaultTailwindURL+`"></script>`+
			`<style>`+baseCSS+`</style></head><body>`+
			`<nav class="wg-bar"><a href="/"><strong>webgen</strong></a><span>`+templ.EscapeString(p.Title)+`</span></nav>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		if p.LiveReload {
			if _, err := io.WriteString(w, "<script>"+liveReloadJS+"</script>"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// href sanitizes a URL for an attribute value.
func href(u string) string {
	return templ.EscapeString(string(templ.URL(u)))
}
