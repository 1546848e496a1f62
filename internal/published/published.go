// Package published turns a stored website into the page a visitor sees.
// Markup is sanitized and rendered directly; the site's own scripts only run
// inside a sandboxed frame without access to the host origin.
package published

import (
	"html"
	"regexp"
	"strings"

	"github.com/conneroisu/webgen/internal/backend"
	"github.com/conneroisu/webgen/internal/compositor"
	"github.com/conneroisu/webgen/internal/document"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SubscriptionMessage is shown instead of a site whose owner has no active
// subscription.
const SubscriptionMessage = "Please renew your subscription to view this website."

// Page is a rendered published site.
type Page struct {
	Title string
	// Body is the sanitized body markup.
	Body string
	CSS  string
	JS   string
	// Document is the complete page: Body, the Tailwind script, the CSS
	// block and the script frame.
	Document string
}

// Renderer renders published sites.
type Renderer struct {
	compositor *compositor.Compositor
	policy     *bluemonday.Policy
}

// NewRenderer creates a renderer composing pages with c. A nil compositor
// uses the default Tailwind CDN.
func NewRenderer(c *compositor.Compositor) *Renderer {
	if c == nil {
		c = compositor.NewCompositor(compositor.Options{})
	}
	return &Renderer{compositor: c, policy: Policy()}
}

// safeURL accepts http(s), mailto and tel URLs plus scheme-less relative ones.
// It guards URL attributes that bluemonday does not check by itself.
var safeURL = regexp.MustCompile(`(?i)^\s*(?:https?:|mailto:|tel:|[^\s:/?#]*(?:[/?#\s]|$))`)

var (
	layoutElements = []string{
		"div", "span", "p", "br", "hr", "header", "footer", "nav", "main", "section",
		"article", "aside", "figure", "figcaption", "address", "details", "summary",
		"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "code", "small",
		"strong", "em", "b", "i", "u", "s", "mark", "sub", "sup", "time", "abbr", "cite", "q",
		"ul", "ol", "li", "dl", "dt", "dd",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption", "colgroup", "col",
		"a", "img", "picture", "source", "video", "audio",
		"form", "input", "button", "label", "select", "option", "optgroup", "textarea",
		"fieldset", "legend",
	}
	svgElements = []string{
		"svg", "g", "path", "circle", "ellipse", "rect", "line", "polyline", "polygon",
		"defs", "symbol", "use", "desc", "text", "tspan", "clippath", "mask",
		"lineargradient", "radialgradient", "stop",
	}
	svgAttrs = []string{
		"viewbox", "xmlns", "preserveaspectratio", "width", "height", "fill", "fill-opacity", "fill-rule",
		"stroke", "stroke-width", "stroke-linecap", "stroke-linejoin", "stroke-opacity",
		"clip-rule", "clip-path", "d", "cx", "cy", "r", "rx", "ry", "x", "y", "x1", "y1",
		"x2", "y2", "dx", "dy", "points", "transform", "opacity", "offset", "stop-color",
		"stop-opacity", "gradientunits", "gradienttransform", "text-anchor", "mask",
	}
	formAttrs = []string{
		"type", "name", "value", "placeholder", "for", "required", "checked", "disabled",
		"selected", "multiple", "readonly", "rows", "cols", "min", "max", "step",
		"minlength", "maxlength", "pattern", "autocomplete", "method",
	}
)

// Policy is the sanitizer for published markup. Only what can execute is
// removed: script and iframe elements, event handler attributes and
// javascript: URLs. Layout, forms, buttons, SVG and arbitrary inline styles
// are kept so templates render as designed.
func Policy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowNoAttrs().OnElements(layoutElements...)
	p.AllowNoAttrs().OnElements(svgElements...)

	p.AllowAttrs("class", "id", "role", "title", "lang", "dir", "tabindex", "hidden", "style").Globally()
	p.AllowAttrs("aria-label", "aria-labelledby", "aria-describedby", "aria-hidden",
		"aria-expanded", "aria-controls", "aria-current", "aria-live").Globally()
	p.AllowDataAttributes()

	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)
	p.AllowAttrs("href", "target", "rel").OnElements("a")
	p.AllowAttrs("src", "alt", "width", "height", "loading", "sizes").OnElements("img", "input")
	p.AllowAttrs("src", "controls", "autoplay", "muted", "loop", "playsinline", "width", "height").
		OnElements("video", "audio")
	p.AllowAttrs("type", "media", "sizes").OnElements("source")
	p.AllowAttrs("src", "srcset").Matching(safeURL).OnElements("source", "img")
	p.AllowAttrs("poster").Matching(safeURL).OnElements("video")
	p.AllowAttrs("action").Matching(safeURL).OnElements("form")
	p.AllowAttrs("href").Matching(safeURL).OnElements("use")
	p.AllowAttrs(formAttrs...).OnElements("form", "input", "button", "label", "select", "option",
		"optgroup", "textarea", "fieldset")
	p.AllowAttrs(svgAttrs...).OnElements(svgElements...)
	p.AllowAttrs("colspan", "rowspan", "scope").OnElements("th", "td")
	p.AllowAttrs("datetime").OnElements("time")
	p.AllowAttrs("open").OnElements("details")
	return p
}

// unsafeStyle reports inline styles that can run code in older engines.
func unsafeStyle(v string) bool {
	v = strings.ToLower(v)
	return strings.Contains(v, "javascript:") || strings.Contains(v, "expression(") ||
		strings.Contains(v, "behavior:") || strings.Contains(v, "-moz-binding")
}

// Render gates the site on its owner's subscription and builds the page.
// The subscription flag supplied by the backend is trusted as is. The page
// title is the website's name; the markup's own <title> is used only when
// the site has no name.
func (r *Renderer) Render(site backend.PublishedSite) (Page, error) {
	if !site.HasActiveSubscription {
		return Page{}, weberrors.NewSubscriptionRequiredError(SubscriptionMessage)
	}

	doc, err := document.Parse(site.HTML)
	if err != nil {
		return Page{}, err
	}

	var styles, scripts []string
	title := site.Name
	document.Walk(doc.Root(), func(n *nethtml.Node) bool {
		if n.Type != nethtml.ElementNode {
			return true
		}
		if v, ok := document.Attr(n, "style"); ok && unsafeStyle(v) {
			document.RemoveAttr(n, "style")
		}
		switch n.DataAtom {
		case atom.Style:
			if s := strings.TrimSpace(document.TextContent(n)); s != "" {
				styles = append(styles, s)
			}
			return false
		case atom.Script:
			if _, external := document.Attr(n, "src"); !external {
				if s := strings.TrimSpace(document.TextContent(n)); s != "" {
					scripts = append(scripts, s)
				}
			}
			return false
		case atom.Title:
			if t := strings.TrimSpace(document.TextContent(n)); t != "" && title == "" {
				title = t
			}
			return false
		}
		return true
	})
	if s := strings.TrimSpace(site.CSS); s != "" {
		styles = append(styles, s)
	}
	if s := strings.TrimSpace(site.JS); s != "" {
		scripts = append(scripts, s)
	}

	var inner strings.Builder
	if body := doc.Body(); body != nil {
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			if err := nethtml.Render(&inner, c); err != nil {
				return Page{}, weberrors.NewInternalError(weberrors.ErrCodeInternal, "rendering published body", err)
			}
		}
	}

	page := Page{
		Title: title,
		Body:  r.policy.Sanitize(inner.String()),
		CSS:   strings.ReplaceAll(strings.Join(styles, "\n\n"), "</", `<\/`),
		JS:    strings.Join(scripts, "\n\n"),
	}

	var shell strings.Builder
	shell.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
	shell.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	shell.WriteString("<title>" + html.EscapeString(page.Title) + "</title></head><body>")
	shell.WriteString(`<div class="published-website-content">` + page.Body + `</div>`)
	shell.WriteString(ScriptFrame(page.JS))
	shell.WriteString("</body></html>")

	// Scripts never reach the composed page; they live in the frame.
	page.Document, err = r.compositor.Compose(compositor.Fragments{HTML: shell.String(), CSS: page.CSS})
	if err != nil {
		return Page{}, err
	}
	return page, nil
}

// ScriptFrame wraps js in a hidden iframe that may run scripts but has an
// opaque origin, so the code cannot reach the host page, its cookies or its
// storage. Empty js yields no frame.
func ScriptFrame(js string) string {
	if strings.TrimSpace(js) == "" {
		return ""
	}
	src := "<!DOCTYPE html><html><body><script>" +
		strings.ReplaceAll(js, "</", `<\/`) +
		"</script></body></html>"
	return `<iframe sandbox="allow-scripts" hidden title="site scripts" srcdoc="` +
		html.EscapeString(src) + `"></iframe>`
}
