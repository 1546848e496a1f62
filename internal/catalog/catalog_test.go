package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conneroisu/webgen/internal/compositor"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, root, folder string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func sampleCatalog(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTemplate(t, root, "portfolio-clean", map[string]string{
		ManifestFile: "id: portfolio-clean\nname: Clean Portfolio\ncategory: Portfolio\n" +
			"description: A minimal portfolio\nthumbnail: /thumbs/clean.png\n",
		HTMLFile: "<main><h1>Jane Doe</h1></main>",
		CSSFile:  "h1{color:#333}",
		JSFile:   "console.log('hi')",
	})
	writeTemplate(t, root, "cafe_menu", map[string]string{
		ManifestFile: "name: Cafe Menu\ncategory: e-commerce\n",
		HTMLFile:     "<section>Menu</section>",
	})
	writeTemplate(t, root, "blog-basic", map[string]string{
		ManifestFile: "name: Basic Blog\ncategory: blog\n",
		HTMLFile:     "<article>Post</article>",
	})
	writeTemplate(t, root, "broken", map[string]string{
		ManifestFile: "name: [unclosed\n",
		HTMLFile:     "<p>x</p>",
	})
	writeTemplate(t, root, "no-page", map[string]string{
		ManifestFile: "name: No Page\n",
	})
	writeTemplate(t, root, ".hidden", map[string]string{HTMLFile: "<p>x</p>"})
	return root
}

func TestLoad(t *testing.T) {
	c, err := Load(sampleCatalog(t))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len(), "broken, pageless and hidden folders are skipped")

	tpl, err := c.Get("portfolio-clean")
	require.NoError(t, err)
	assert.Equal(t, "Clean Portfolio", tpl.Name)
	assert.Equal(t, CategoryPortfolio, tpl.Category)
	assert.Equal(t, "/thumbs/clean.png", tpl.Thumbnail)
	assert.Equal(t, "portfolio-clean", tpl.Identifier())

	frags, err := tpl.Fragments()
	require.NoError(t, err)
	assert.Equal(t, compositor.Fragments{
		HTML: "<main><h1>Jane Doe</h1></main>",
		CSS:  "h1{color:#333}",
		JS:   "console.log('hi')",
	}, frags)

	cafe, err := c.Get("cafe_menu")
	require.NoError(t, err, "the folder name is the default id")
	assert.Equal(t, CategoryEcommerce, cafe.Category)
	assert.Empty(t, cafe.CSS)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	var se *weberrors.SiteError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, weberrors.ErrorTypeIO, se.Type)
}

func TestGetReturnsCopy(t *testing.T) {
	c, err := Load(sampleCatalog(t))
	require.NoError(t, err)

	tpl, err := c.Get("blog-basic")
	require.NoError(t, err)
	tpl.Name = "changed"

	again, err := c.Get("blog-basic")
	require.NoError(t, err)
	assert.Equal(t, "Basic Blog", again.Name)

	_, err = c.Get("missing")
	assert.True(t, errors.Is(err, weberrors.ErrNotFound))
}

func TestList(t *testing.T) {
	c, err := Load(sampleCatalog(t))
	require.NoError(t, err)

	names := func(ts []compositor.TemplatePayload) []string {
		out := make([]string, 0, len(ts))
		for _, tpl := range ts {
			out = append(out, tpl.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Basic Blog", "Cafe Menu", "Clean Portfolio"}, names(c.List("")))
	assert.Equal(t, names(c.List("")), names(c.List("all")))
	assert.Equal(t, []string{"Basic Blog"}, names(c.List("Blog")))
	assert.Equal(t, []string{"Cafe Menu"}, names(c.List("ecommerce")))
	assert.Empty(t, c.List("landing"))
}

func TestCategories(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 6)
	assert.Equal(t, Category{Key: "portfolio", Label: "Portfolio"}, cats[0])
	assert.Equal(t, Category{Key: "ecommerce", Label: "E-commerce"}, cats[3])

	assert.Equal(t, CategoryLanding, NormalizeCategory(" Landing "))
	assert.Equal(t, CategoryOther, NormalizeCategory("restaurant"))
	assert.Equal(t, CategoryOther, NormalizeCategory(""))
}

func TestReloadAndListeners(t *testing.T) {
	root := sampleCatalog(t)
	c, err := Load(root)
	require.NoError(t, err)

	var calls int32
	c.OnChange(func() { atomic.AddInt32(&calls, 1) })

	writeTemplate(t, root, "landing-launch", map[string]string{HTMLFile: "<h1>Launch</h1>"})
	require.NoError(t, c.Reload())
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	tpl, err := c.Get("landing-launch")
	require.NoError(t, err)
	assert.Equal(t, "Landing Launch", tpl.Name)
	assert.Equal(t, CategoryOther, tpl.Category)

	require.NoError(t, os.RemoveAll(root))
	assert.Error(t, c.Reload())
	assert.Equal(t, 4, c.Len(), "a failed reload keeps the previous snapshot")
}

func TestSave(t *testing.T) {
	root := t.TempDir()
	src := &compositor.TemplatePayload{
		Slug:        "agency",
		Name:        "Agency",
		Category:    "business",
		Description: "Bold agency site",
		PreviewJSON: &compositor.Fragments{HTML: "<h1>We build</h1>", CSS: "h1{margin:0}"},
	}
	folder, err := Save(root, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "agency"), folder)
	assert.NoFileExists(t, filepath.Join(folder, JSFile))

	c, err := Load(root)
	require.NoError(t, err)
	tpl, err := c.Get("agency")
	require.NoError(t, err)
	assert.Equal(t, "Agency", tpl.Name)
	assert.Equal(t, CategoryBusiness, tpl.Category)
	assert.Equal(t, "Bold agency site", tpl.Description)
	assert.Equal(t, "<h1>We build</h1>", tpl.HTML)
	assert.Equal(t, "h1{margin:0}", tpl.CSS)

	_, err = Save(root, &compositor.TemplatePayload{Slug: "../escape", HTML: "<p>x</p>"})
	assert.Error(t, err)
	_, err = Save(root, &compositor.TemplatePayload{Slug: "empty"})
	assert.True(t, errors.Is(err, weberrors.ErrInvalidTemplate))
}

func TestWatchReloads(t *testing.T) {
	root := sampleCatalog(t)
	c, err := Load(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = c.Watch(ctx, 30*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "blog-basic", ManifestFile),
		[]byte("name: Renamed Blog\ncategory: blog\n"), 0o644))

	assert.Eventually(t, func() bool {
		tpl, err := c.Get("blog-basic")
		return err == nil && tpl.Name == "Renamed Blog"
	}, 3*time.Second, 20*time.Millisecond)
}
