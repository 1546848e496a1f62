// Package catalog serves templates from a directory tree. Each template
// lives in its own folder:
//
//	portfolio-clean/
//	  template.yaml   id, name, category, description, thumbnail
//	  index.html      required
//	  style.css       optional
//	  script.js       optional
//
// The catalog can watch its directory and reload itself when any of those
// files change.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/webgen/internal/compositor"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/logging"
	"github.com/conneroisu/webgen/internal/watcher"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// File names inside a template folder.
const (
	ManifestFile = "template.yaml"
	HTMLFile     = "index.html"
	CSSFile      = "style.css"
	JSFile       = "script.js"
)

// Category keys.
const (
	CategoryPortfolio = "portfolio"
	CategoryBusiness  = "business"
	CategoryBlog      = "blog"
	CategoryEcommerce = "ecommerce"
	CategoryLanding   = "landing"
	CategoryOther     = "other"
)

var categoryKeys = []string{
	CategoryPortfolio, CategoryBusiness, CategoryBlog,
	CategoryEcommerce, CategoryLanding, CategoryOther,
}

// Category is a gallery filter.
type Category struct {
	Key   string
	Label string
}

// Categories lists the gallery filters in display order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryKeys))
	for _, k := range categoryKeys {
		out = append(out, Category{Key: k, Label: Label(k)})
	}
	return out
}

// Label renders a category key for display.
func Label(key string) string {
	if key == CategoryEcommerce {
		return "E-commerce"
	}
	return cases.Title(language.English).String(key)
}

// NormalizeCategory maps free-form input onto a known key. Unknown values
// become "other".
func NormalizeCategory(s string) string {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("-", "", "_", "", " ", "").Replace(k)
	for _, c := range categoryKeys {
		if k == c {
			return c
		}
	}
	return CategoryOther
}

// Catalog is an in-memory snapshot of a template directory.
type Catalog struct {
	dir    string
	logger logging.Logger

	mu        sync.RWMutex
	templates map[string]*compositor.TemplatePayload
	listeners []func()
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger.WithComponent("catalog")
		}
	}
}

// Load reads every template folder below dir. Folders that fail to load
// are logged and skipped; an unreadable dir is an error.
func Load(dir string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		dir:       dir,
		logger:    logging.NewNopLogger(),
		templates: map[string]*compositor.TemplatePayload{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the catalog root.
func (c *Catalog) Dir() string {
	return c.dir
}

// Reload rescans the directory. On failure the previous snapshot stays.
func (c *Catalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return weberrors.NewIOError(weberrors.ErrCodeIO, "reading template catalog "+c.dir, err)
	}

	ctx := context.Background()
	next := make(map[string]*compositor.TemplatePayload, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		t, err := loadTemplate(filepath.Join(c.dir, e.Name()))
		if err != nil {
			c.logger.Warn(ctx, err, "skipping template", "folder", e.Name())
			continue
		}
		if _, dup := next[t.Slug]; dup {
			c.logger.Warn(ctx, nil, "duplicate template id", "id", t.Slug, "folder", e.Name())
			continue
		}
		next[t.Slug] = t
	}

	c.mu.Lock()
	c.templates = next
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()

	c.logger.Info(ctx, "template catalog loaded", "dir", c.dir, "templates", len(next))
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// OnChange registers fn to run after every successful reload.
func (c *Catalog) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Len returns the number of loaded templates.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// List returns copies of the templates in category, or of all templates
// when category is empty or "all", ordered by name.
func (c *Catalog) List(category string) []compositor.TemplatePayload {
	all := category == "" || strings.EqualFold(category, "all")
	if !all {
		category = NormalizeCategory(category)
	}

	c.mu.RLock()
	out := make([]compositor.TemplatePayload, 0, len(c.templates))
	for _, t := range c.templates {
		if all || t.Category == category {
			out = append(out, *t)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

// Get returns a copy of the template with the given id.
func (c *Catalog) Get(id string) (*compositor.TemplatePayload, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[id]
	if !ok {
		return nil, weberrors.NewNotFoundError("template", id)
	}
	cp := *t
	return &cp, nil
}

// Watch reloads the catalog whenever a template file changes, until ctx
// is done. The returned watcher is already started.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration) (*watcher.FileWatcher, error) {
	root, err := filepath.Abs(c.dir)
	if err != nil {
		return nil, weberrors.NewIOError(weberrors.ErrCodeIO, "resolving "+c.dir, err)
	}
	fw, err := watcher.NewFileWatcher(debounce, watcher.WithRoot(root), watcher.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(func(path string) bool {
		// Directory events carry no extension but add or remove templates.
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return true
		}
		return watcher.CatalogFilter(path) || filepath.Dir(path) == root
	})
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		c.logger.Debug(ctx, "template files changed", "events", len(events))
		return c.Reload()
	})
	if err := fw.AddRecursive(root); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = fw.Stop()
	}()
	return fw, nil
}

func loadTemplate(folder string) (*compositor.TemplatePayload, error) {
	t := &compositor.TemplatePayload{}

	manifest, err := os.ReadFile(filepath.Join(folder, ManifestFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(manifest, t); err != nil {
			return nil, weberrors.NewInvalidTemplateError("invalid "+ManifestFile, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, weberrors.NewIOError(weberrors.ErrCodeIO, "reading "+ManifestFile, err)
	}

	if t.Slug == "" {
		t.Slug = filepath.Base(folder)
	}
	if t.Name == "" {
		t.Name = cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(t.Slug))
	}
	t.Category = NormalizeCategory(t.Category)

	page, err := os.ReadFile(filepath.Join(folder, HTMLFile))
	if err != nil {
		return nil, weberrors.NewInvalidTemplateError("template has no "+HTMLFile, err)
	}
	t.HTML = string(page)
	if t.CSS, err = readOptional(filepath.Join(folder, CSSFile)); err != nil {
		return nil, err
	}
	if t.JS, err = readOptional(filepath.Join(folder, JSFile)); err != nil {
		return nil, err
	}

	if _, err := t.Fragments(); err != nil {
		return nil, err
	}
	return t, nil
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", weberrors.NewIOError(weberrors.ErrCodeIO, "reading "+filepath.Base(path), err)
	}
	return string(data), nil
}

// Save writes t as a template folder under dir and returns the folder
// path. The template's fragments are resolved first, so any payload shape
// can be saved.
func Save(dir string, t *compositor.TemplatePayload) (string, error) {
	id := t.Slug
	if id == "" {
		id = t.ID
	}
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", weberrors.NewValidationError(weberrors.ErrCodeValidationFailed,
			fmt.Sprintf("template id %q cannot name a folder", id))
	}
	frags, err := t.Fragments()
	if err != nil {
		return "", err
	}

	meta := compositor.TemplatePayload{
		Slug:        id,
		Name:        t.Name,
		Category:    NormalizeCategory(t.Category),
		Description: t.Description,
		Thumbnail:   t.Thumbnail,
	}
	manifest, err := yaml.Marshal(&meta)
	if err != nil {
		return "", weberrors.NewInternalError(weberrors.ErrCodeInternal, "encoding manifest", err)
	}

	folder := filepath.Join(dir, id)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", weberrors.NewIOError(weberrors.ErrCodeIO, "creating "+folder, err)
	}
	files := []struct {
		name string
		body string
	}{
		{ManifestFile, string(manifest)},
		{HTMLFile, frags.HTML},
		{CSSFile, frags.CSS},
		{JSFile, frags.JS},
	}
	for _, f := range files {
		if f.body == "" && f.name != HTMLFile {
			continue
		}
		if err := os.WriteFile(filepath.Join(folder, f.name), []byte(f.body), 0o644); err != nil {
			return "", weberrors.NewIOError(weberrors.ErrCodeIO, "writing "+f.name, err)
		}
	}
	return folder, nil
}
