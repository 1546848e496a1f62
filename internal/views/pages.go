package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/conneroisu/webgen/internal/published"
)

// ErrorPanel shows a render failure with a retry action. An empty retryURL
// omits the action.
func ErrorPanel(message, retryURL string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		out := `<div class="wg-panel wg-error" role="alert"><h1>Preview unavailable</h1><p>` +
			templ.EscapeString(message) + `</p>`
		if retryURL != "" {
			out += `<a class="wg-btn primary" href="` + href(retryURL) + `">Retry</a>`
		}
		_, err := io.WriteString(w, out+`</div>`)
		return err
	})
}

// NotFound is shown for unknown templates, websites and slugs.
func NotFound(message string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="wg-panel"><h1>Website Not Found</h1><p>`+
			templ.EscapeString(message)+`</p><a class="wg-btn primary" href="/">Go Home</a></div>`)
		return err
	})
}

// SubscriptionRequired replaces a published site whose owner's
// subscription has lapsed.
func SubscriptionRequired() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="wg-panel" style="background:#fef2f2">`+
			`<h1 style="color:#dc2626">Subscription Required</h1><p>`+
			templ.EscapeString(published.SubscriptionMessage)+`</p></div>`)
		return err
	})
}

// Published writes a rendered published site as the whole response. The
// page carries its own chrome, so it is not wrapped in Layout.
func Published(p published.Page) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, p.Document)
		return err
	})
}

// Standalone wraps a panel in a bare document for responses outside the
// host chrome, such as the preview frame's own error page.
func Standalone(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+`</title><style>`+baseCSS+`</style></head><body>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
