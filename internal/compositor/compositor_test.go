package compositor

import (
	"errors"
	"strings"
	"testing"

	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tailwindTag = `<script src="https://cdn.tailwindcss.com"></script>`

func TestComposeInjectsAllFragments(t *testing.T) {
	out, err := Compose(Fragments{
		HTML: "<html><head></head><body></body></html>",
		CSS:  "body{color:red}",
		JS:   "console.log(1)",
	})
	require.NoError(t, err)

	head := strings.Index(out, "</head>")
	body := strings.Index(out, "</body>")
	require.Positive(t, head)
	require.Positive(t, body)

	style := strings.Index(out, "<style>body{color:red}</style>")
	script := strings.Index(out, "<script>console.log(1)</script>")
	tw := strings.Index(out, tailwindTag)

	assert.True(t, style >= 0 && style < head, "style block must precede </head>")
	assert.True(t, tw >= 0 && tw < head, "tailwind must precede </head>")
	assert.True(t, script > head && script < body, "script block must precede </body>")
}

func TestComposeEmptyHTML(t *testing.T) {
	for _, in := range []string{"", "   \n\t"} {
		_, err := Compose(Fragments{HTML: in, CSS: "a{}"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, weberrors.ErrEmptyTemplate))
	}
}

func TestComposeIsIdempotent(t *testing.T) {
	f := Fragments{
		HTML: "<!DOCTYPE html><html><head><title>x</title></head><body><h1>Hi</h1></body></html>",
		CSS:  "h1{font-size:3rem}",
		JS:   "document.title='y'",
	}

	once, err := Compose(f)
	require.NoError(t, err)

	twice, err := Compose(Fragments{HTML: once, CSS: f.CSS, JS: f.JS})
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, strings.Count(twice, tailwindTag))
	assert.Equal(t, 1, strings.Count(twice, "<style>"+f.CSS+"</style>"))
	assert.Equal(t, 1, strings.Count(twice, "<script>"+f.JS+"</script>"))
}

func TestComposeSkipsExistingTailwind(t *testing.T) {
	in := `<html><head><script src="https://cdn.tailwindcss.com?plugins=forms"></script></head><body></body></html>`
	out, err := Compose(Fragments{HTML: in})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestComposeSkipsFragmentsAlreadyPresent(t *testing.T) {
	in := "<html><head><style>p{margin:0}</style></head><body><script>go()</script></body></html>"
	out, err := Compose(Fragments{HTML: in, CSS: "p{margin:0}", JS: "go()"})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "p{margin:0}"))
	assert.Equal(t, 1, strings.Count(out, "go()"))
}

func TestComposeWithoutHeadTags(t *testing.T) {
	out, err := Compose(Fragments{HTML: "<h1>Welcome</h1>", CSS: "h1{}", JS: "run()"})
	require.NoError(t, err)

	assert.NotContains(t, out, "<style>", "css is skipped without a head")
	assert.True(t, strings.HasSuffix(out, "<script>run()</script>"), "js is appended")
	assert.True(t, strings.HasPrefix(out, tailwindTag), "tailwind is prepended")
}

func TestComposeWithoutHeadKeepsDoctypeFirst(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		before string
	}{
		{"html and body", "<!DOCTYPE html><html><body><p>x</p></body></html>", "<body>"},
		{"html with attributes", "<!doctype html>\n<html lang=\"en\"><p>x</p></html>", "<p>x</p>"},
		{"body only", "<!DOCTYPE html><body class=\"page\"><p>x</p></body>", "<body class="},
		{"doctype only", "<!DOCTYPE html><p>x</p>", "<p>x</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Compose(Fragments{HTML: tt.html})
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(strings.ToLower(out), "<!doctype html>"), out)
			tag := strings.Index(out, tailwindTag)
			require.GreaterOrEqual(t, tag, 0)
			assert.Less(t, tag, strings.Index(out, tt.before))
			if html := strings.Index(strings.ToLower(out), "<html"); html >= 0 {
				assert.Greater(t, tag, html)
			}
		})
	}
}

func TestComposeOpenHeadOnly(t *testing.T) {
	out, err := Compose(Fragments{HTML: "<html><head><title>t</title><body>x", CSS: "b{}"})
	require.NoError(t, err)

	assert.Contains(t, out, "<head>\n<style>b{}</style>\n"+tailwindTag)
}

func TestComposeHeaderIsNotHead(t *testing.T) {
	out, err := Compose(Fragments{HTML: "<header>nav</header><p>x</p>", CSS: "p{}"})
	require.NoError(t, err)

	assert.NotContains(t, out, "<style>")
	assert.Contains(t, out, "<header>nav</header>")
}

func TestComposeUppercaseTags(t *testing.T) {
	out, err := Compose(Fragments{HTML: "<HTML><HEAD></HEAD><BODY></BODY></HTML>", CSS: "i{}", JS: "j()"})
	require.NoError(t, err)

	assert.Less(t, strings.Index(out, "<style>i{}</style>"), strings.Index(out, "</HEAD>"))
	assert.Less(t, strings.Index(out, "<script>j()</script>"), strings.Index(out, "</BODY>"))
}

func TestCustomTailwindURL(t *testing.T) {
	c := NewCompositor(Options{TailwindURL: "https://cdn.example.com/tw.js"})
	out, err := c.Compose(Fragments{HTML: "<head></head>"})
	require.NoError(t, err)
	assert.Contains(t, out, `<script src="https://cdn.example.com/tw.js"></script>`)

	again, err := c.Compose(Fragments{HTML: out})
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestTemplatePayloadShapes(t *testing.T) {
	testCases := []struct {
		name string
		json string
		html string
	}{
		{"previewJson", `{"name":"a","previewJson":{"html":"<p>p</p>","css":"c"}}`, "<p>p</p>"},
		{"legacy content", `{"name":"b","content":{"html":"<p>c</p>"}}`, "<p>c</p>"},
		{"flat", `{"name":"c","html":"<p>f</p>","js":"x()"}`, "<p>f</p>"},
		{"previewJson wins", `{"previewJson":{"html":"<p>1</p>"},"content":{"html":"<p>2</p>"}}`, "<p>1</p>"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := DecodeTemplate([]byte(tc.json))
			require.NoError(t, err)
			f, err := p.Fragments()
			require.NoError(t, err)
			assert.Equal(t, tc.html, f.HTML)
		})
	}
}

func TestTemplatePayloadErrors(t *testing.T) {
	_, err := DecodeTemplate([]byte("{"))
	assert.True(t, errors.Is(err, weberrors.ErrInvalidTemplate))

	p, err := DecodeTemplate([]byte(`{"name":"nothing"}`))
	require.NoError(t, err)
	_, err = p.Fragments()
	assert.True(t, errors.Is(err, weberrors.ErrInvalidTemplate))

	p, err = DecodeTemplate([]byte(`{"content":{"html":"","css":"a{}"}}`))
	require.NoError(t, err)
	_, err = p.Fragments()
	assert.True(t, errors.Is(err, weberrors.ErrEmptyTemplate))
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "abc", (&TemplatePayload{ID: "abc", Slug: "s"}).Identifier())
	assert.Equal(t, "s", (&TemplatePayload{Slug: "s"}).Identifier())
}

func TestExtract(t *testing.T) {
	page := `<html><head>
<style> .hero{color:blue} </style>
<style>.second{}</style>
<script src="https://cdn.tailwindcss.com"></script>
</head><body>
<script>one()</script>
<p>text</p>
<script>
two()
</script>
</body></html>`

	f := Extract(page)

	assert.Equal(t, ".hero{color:blue}", f.CSS)
	assert.Equal(t, "one()\n\ntwo()", f.JS)
	assert.Equal(t, strings.TrimSpace(page), f.HTML)
}

func TestExtractThenCompose(t *testing.T) {
	page := `<html><head><style>a{}</style></head><body><script>init()</script></body></html>`

	f := Extract(page)
	require.Equal(t, "a{}", f.CSS)
	require.Equal(t, "init()", f.JS)

	out, err := Compose(f)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "a{}"))
	assert.Equal(t, 1, strings.Count(out, "init()"))
	assert.Equal(t, 1, strings.Count(out, tailwindTag))
}
