package compositor

import (
	"encoding/json"
	"strings"

	weberrors "github.com/conneroisu/webgen/internal/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TemplatePayload is a template as returned by the template service. The
// fragments arrive in one of three shapes: previewJson, the legacy nested
// content object, or flat html/css/js fields.
type TemplatePayload struct {
	ID          string     `json:"_id,omitempty" yaml:"-"`
	Slug        string     `json:"id,omitempty" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Category    string     `json:"category,omitempty" yaml:"category"`
	Description string     `json:"description,omitempty" yaml:"description"`
	Thumbnail   string     `json:"thumbnail,omitempty" yaml:"thumbnail"`
	PreviewJSON *Fragments `json:"previewJson,omitempty" yaml:"-"`
	Content     *Fragments `json:"content,omitempty" yaml:"-"`
	HTML        string     `json:"html,omitempty" yaml:"-"`
	CSS         string     `json:"css,omitempty" yaml:"-"`
	JS          string     `json:"js,omitempty" yaml:"-"`
}

// Identifier returns the backend id, falling back to the slug.
func (p *TemplatePayload) Identifier() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Slug
}

// Fragments picks the fragment shape: previewJson first, then the legacy
// content object, then flat fields.
func (p *TemplatePayload) Fragments() (Fragments, error) {
	var f Fragments
	switch {
	case p.PreviewJSON != nil:
		f = *p.PreviewJSON
	case p.Content != nil:
		f = *p.Content
	case p.HTML != "" || p.CSS != "" || p.JS != "":
		f = Fragments{HTML: p.HTML, CSS: p.CSS, JS: p.JS}
	default:
		return Fragments{}, weberrors.NewInvalidTemplateError(
			"invalid template format: no previewJson or content found", nil)
	}
	if f.IsEmpty() {
		return Fragments{}, weberrors.NewEmptyTemplateError()
	}
	return f, nil
}

// DecodeTemplate parses a template JSON document in any supported shape.
func DecodeTemplate(data []byte) (*TemplatePayload, error) {
	var p TemplatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, weberrors.NewInvalidTemplateError("template is not valid JSON", err)
	}
	return &p, nil
}

// Extract lifts the CSS and JS fragments out of a full HTML page: the first
// inline <style> body and every inline <script> body without a src
// attribute, joined by blank lines. The markup itself is returned untouched,
// so composing the result does not duplicate the lifted code.
func Extract(page string) Fragments {
	f := Fragments{HTML: strings.TrimSpace(page)}

	var scripts []string
	z := html.NewTokenizer(strings.NewReader(page))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a tokenizer failure both end the scan.
			break
		}
		if tt != html.StartTagToken {
			continue
		}

		tok := z.Token()
		switch tok.DataAtom {
		case atom.Style:
			body := rawText(z)
			if f.CSS == "" && body != "" {
				f.CSS = body
			}
		case atom.Script:
			if hasAttr(tok, "src") {
				continue
			}
			if body := rawText(z); body != "" {
				scripts = append(scripts, body)
			}
		}
	}

	f.JS = strings.Join(scripts, "\n\n")
	return f
}

// rawText reads the text token following a raw-text start tag.
func rawText(z *html.Tokenizer) string {
	if z.Next() != html.TextToken {
		return ""
	}
	return strings.TrimSpace(string(z.Text()))
}

func hasAttr(tok html.Token, key string) bool {
	for _, a := range tok.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
