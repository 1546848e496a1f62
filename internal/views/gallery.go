package views

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/conneroisu/webgen/internal/catalog"
	"github.com/conneroisu/webgen/internal/compositor"
	"github.com/conneroisu/webgen/internal/sandbox"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GalleryData feeds the template gallery.
type GalleryData struct {
	Templates  []compositor.TemplatePayload
	Categories []catalog.Category
	// Active is the selected category key; empty shows everything.
	Active string
}

// Gallery lists templates with category filters and preview links.
func Gallery(d GalleryData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<main class="wg-main"><div class="wg-filters" style="display:flex;gap:.5rem;flex-wrap:wrap;margin-bottom:1rem">`)
		b.WriteString(filterLink("all", "All", d.Active == ""))
		for _, c := range d.Categories {
			b.WriteString(filterLink(c.Key, c.Label, c.Key == d.Active))
		}
		b.WriteString(`</div>`)

		if len(d.Templates) == 0 {
			b.WriteString(`<p class="wg-empty">No templates in this category yet.</p></main>`)
			_, err := io.WriteString(w, b.String())
			return err
		}

		b.WriteString(`<div class="wg-grid" style="display:grid;grid-template-columns:repeat(auto-fill,minmax(16rem,1fr));gap:1rem">`)
		for _, t := range d.Templates {
			id := url.PathEscape(t.Identifier())
			b.WriteString(`<article class="wg-card" style="background:#fff;border-radius:.75rem;padding:1rem;box-shadow:0 1px 4px rgba(15,23,42,.08)">`)
			if t.Thumbnail != "" {
				fmt.Fprintf(&b, `<img src="%s" alt="%s" loading="lazy" style="width:100%%;border-radius:.5rem">`,
					href(t.Thumbnail), templ.EscapeString(t.Name))
			}
			fmt.Fprintf(&b, `<h2>%s</h2><p class="wg-category">%s</p>`,
				templ.EscapeString(t.Name), templ.EscapeString(catalog.Label(t.Category)))
			if t.Description != "" {
				fmt.Fprintf(&b, `<p>%s</p>`, templ.EscapeString(t.Description))
			}
			fmt.Fprintf(&b, `<a class="wg-btn primary" href="/templates/%s/preview">Preview</a></article>`, id)
		}
		b.WriteString(`</div></main>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func filterLink(key, label string, active bool) string {
	class := "wg-btn"
	if active {
		class += " active"
	}
	return fmt.Sprintf(`<a class="%s" href="/?category=%s">%s</a>`,
		class, url.QueryEscape(key), templ.EscapeString(label))
}

// PreviewData feeds the device preview page.
type PreviewData struct {
	Template compositor.TemplatePayload
	View     sandbox.Viewport
}

// Preview frames a composed template at the chosen device width.
func Preview(d PreviewData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		id := url.PathEscape(d.Template.Identifier())

		var b strings.Builder
		b.WriteString(`<main class="wg-main"><div style="display:flex;gap:.5rem;margin-bottom:1rem">`)
		for _, v := range sandbox.Viewports() {
			class := "wg-btn"
			if v.Name == d.View.Name {
				class += " active"
			}
			fmt.Fprintf(&b, `<a class="%s" href="/templates/%s/preview?view=%s">%s</a>`,
				class, id, v.Name, templ.EscapeString(viewLabel(v.Name)))
		}
		fmt.Fprintf(&b, `<form method="post" action="/templates/%s/use" style="margin-left:auto;display:flex;gap:.5rem">`+
			`<input name="name" placeholder="Website name" aria-label="Website name">`+
			`<button class="wg-btn primary" type="submit">Use this template</button></form>`, id)
		b.WriteString(`</div>`)
		fmt.Fprintf(&b, `<div style="display:flex;justify-content:center"><iframe id="wg-preview" title="%s" `+
			`sandbox="allow-scripts" src="/templates/%s/document" `+
			`style="width:%s;height:80vh;border:1px solid #cbd5e1;border-radius:.5rem;background:#fff"></iframe></div></main>`,
			templ.EscapeString(d.Template.Name), id, d.View.CSSWidth())

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func viewLabel(name string) string {
	return cases.Title(language.English).String(name)
}
