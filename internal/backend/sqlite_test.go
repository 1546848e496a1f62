package backend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/conneroisu/webgen/internal/compositor"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTemplates []Template

func (s staticTemplates) List(category string) []Template {
	var out []Template
	for _, t := range s {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

func (s staticTemplates) Get(id string) (*Template, error) {
	for i := range s {
		if s[i].Identifier() == id {
			return &s[i], nil
		}
	}
	return nil, weberrors.NewNotFoundError("template", id)
}

var testTemplates = staticTemplates{
	{
		Slug:     "portfolio-clean",
		Name:     "Clean Portfolio",
		Category: "portfolio",
		PreviewJSON: &compositor.Fragments{
			HTML: "<html><head></head><body><h1>Hi</h1></body></html>",
			CSS:  "h1{color:red}",
			JS:   "console.log(1)",
		},
	},
	{Slug: "blog-basic", Name: "Basic Blog", Category: "blog", HTML: "<main>posts</main>"},
}

func openTestStore(t *testing.T, subscribed bool) *Store {
	t.Helper()
	s, err := OpenStore(context.Background(), StoreOptions{
		Path:       ":memory:",
		Templates:  testTemplates,
		Subscribed: subscribed,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCreateWebsiteComposesTemplate(t *testing.T) {
	s := openTestStore(t, false)
	ctx := context.Background()

	w, err := s.CreateWebsite(ctx, NewWebsite{TemplateID: "portfolio-clean", CustomName: "Café Owner"})
	require.NoError(t, err)

	assert.NotEmpty(t, w.ID)
	assert.Equal(t, "Café Owner", w.Name)
	assert.True(t, strings.HasPrefix(w.Slug, "cafe-owner-"))
	assert.Contains(t, w.HTML, "<style>h1{color:red}</style>")
	assert.Contains(t, w.HTML, "<script>console.log(1)</script>")
	assert.Contains(t, w.HTML, compositor.DefaultTailwindURL)
	assert.False(t, w.IsPublished)
}

func TestStoreUnknownTemplate(t *testing.T) {
	s := openTestStore(t, false)
	_, err := s.CreateWebsite(context.Background(), NewWebsite{TemplateID: "nope"})
	assert.True(t, errors.Is(err, weberrors.ErrNotFound))
}

func TestStoreSaveAndGet(t *testing.T) {
	s := openTestStore(t, false)
	ctx := context.Background()
	w, err := s.CreateWebsite(ctx, NewWebsite{TemplateID: "blog-basic"})
	require.NoError(t, err)

	saved, err := s.SaveWebsite(ctx, w.ID, WebsiteUpdate{HTML: "<html><body>new</body></html>"})
	require.NoError(t, err)
	assert.Equal(t, "Basic Blog", saved.Name, "empty name keeps the old one")
	assert.Equal(t, "<html><body>new</body></html>", saved.HTML)

	_, err = s.SaveWebsite(ctx, "missing", WebsiteUpdate{HTML: "<p>x</p>"})
	assert.True(t, errors.Is(err, weberrors.ErrNotFound))

	_, err = s.SaveWebsite(ctx, w.ID, WebsiteUpdate{HTML: "  "})
	assert.True(t, errors.Is(err, weberrors.ErrPersistence))
}

func TestStorePublishRequiresSubscription(t *testing.T) {
	s := openTestStore(t, false)
	ctx := context.Background()
	w, err := s.CreateWebsite(ctx, NewWebsite{TemplateID: "blog-basic"})
	require.NoError(t, err)

	_, err = s.PublishWebsite(ctx, w.ID, WebsiteUpdate{Name: w.Name, HTML: w.HTML})
	assert.True(t, weberrors.IsSubscriptionRequired(err))

	_, err = s.SetCustomDomain(ctx, w.ID, "example.com")
	assert.True(t, weberrors.IsSubscriptionRequired(err))

	require.NoError(t, s.SetSubscription(ctx, true))
	pub, err := s.PublishWebsite(ctx, w.ID, WebsiteUpdate{Name: w.Name, HTML: w.HTML})
	require.NoError(t, err)
	assert.True(t, pub.IsPublished)
	require.NotNil(t, pub.PublishedAt)
	assert.True(t, pub.HasActiveSubscription)
}

func TestStorePublishedSite(t *testing.T) {
	s := openTestStore(t, true)
	ctx := context.Background()
	w, err := s.CreateWebsite(ctx, NewWebsite{TemplateID: "portfolio-clean"})
	require.NoError(t, err)

	_, err = s.GetPublishedSite(ctx, w.Slug)
	assert.True(t, errors.Is(err, weberrors.ErrNotFound), "unpublished sites are hidden")

	_, err = s.PublishWebsite(ctx, w.ID, WebsiteUpdate{HTML: w.HTML})
	require.NoError(t, err)

	site, err := s.GetPublishedSite(ctx, w.Slug)
	require.NoError(t, err)
	assert.True(t, site.HasActiveSubscription)
	assert.Equal(t, "h1{color:red}", site.CSS)
	assert.Equal(t, "console.log(1)", site.JS)

	require.NoError(t, s.SetSubscription(ctx, false))
	site, err = s.GetPublishedSite(ctx, w.Slug)
	require.NoError(t, err)
	assert.False(t, site.HasActiveSubscription)
}

func TestStoreCustomDomain(t *testing.T) {
	s := openTestStore(t, true)
	ctx := context.Background()
	a, err := s.CreateWebsite(ctx, NewWebsite{TemplateID: "blog-basic"})
	require.NoError(t, err)
	b, err := s.CreateWebsite(ctx, NewWebsite{TemplateID: "blog-basic"})
	require.NoError(t, err)

	_, err = s.SetCustomDomain(ctx, a.ID, "not a domain")
	assert.Error(t, err)

	w, err := s.SetCustomDomain(ctx, a.ID, "WWW.Example.com")
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", w.CustomDomain)
	assert.False(t, w.IsCustomDomainVerified)

	_, err = s.SetCustomDomain(ctx, b.ID, "www.example.com")
	assert.True(t, errors.Is(err, weberrors.ErrPersistence), "domains are unique")

	status, err := s.VerifyCustomDomain(ctx, a.ID, "other.com")
	require.NoError(t, err)
	assert.False(t, status.IsVerified)

	status, err = s.VerifyCustomDomain(ctx, a.ID, "www.example.com")
	require.NoError(t, err)
	assert.True(t, status.IsVerified)

	got, err := s.GetWebsite(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCustomDomainVerified)
}

func TestStoreListTemplatesPaging(t *testing.T) {
	s := openTestStore(t, false)
	ctx := context.Background()

	all, err := s.ListTemplates(ctx, TemplateFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	blogs, err := s.ListTemplates(ctx, TemplateFilter{Category: "blog"})
	require.NoError(t, err)
	require.Len(t, blogs, 1)

	page2, err := s.ListTemplates(ctx, TemplateFilter{Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "Basic Blog", page2[0].Name)

	empty, err := s.ListTemplates(ctx, TemplateFilter{Page: 5, Limit: 1})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "cafe-owner", Slugify("Café Owner"))
	assert.Equal(t, "my-site-2", Slugify("  My   Site!! 2 "))
	assert.Equal(t, "", Slugify("!!!"))
}
