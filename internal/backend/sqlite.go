package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/webgen/internal/compositor"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/validation"
	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// TemplateSource supplies templates to the local store.
type TemplateSource interface {
	List(category string) []Template
	Get(id string) (*Template, error)
}

// StoreOptions configures the local store.
type StoreOptions struct {
	// Path is the database file; ":memory:" keeps everything in memory.
	Path      string
	Templates TemplateSource
	// Subscribed seeds the local owner's subscription flag on first open.
	Subscribed bool
}

// Store is a local development backend on SQLite. It serves a single
// local owner whose subscription flag gates publishing and custom domains.
type Store struct {
	db        *sql.DB
	templates TemplateSource
	now       func() time.Time
}

var _ Backend = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS owner (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	has_active_subscription INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS websites (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	html TEXT NOT NULL,
	template_id TEXT NOT NULL DEFAULT '',
	slug TEXT NOT NULL UNIQUE,
	thumbnail TEXT NOT NULL DEFAULT '',
	is_published INTEGER NOT NULL DEFAULT 0,
	published_at INTEGER,
	custom_domain TEXT UNIQUE,
	domain_verified_at INTEGER,
	updated_at INTEGER NOT NULL
);
`

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// OpenStore opens or creates the database and applies the schema.
func OpenStore(ctx context.Context, opts StoreOptions) (*Store, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, weberrors.NewConfigError(weberrors.ErrCodeConfigInvalid, "storage path is required")
	}
	if path != ":memory:" {
		path = filepath.Clean(path)
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, weberrors.NewPersistenceError("open sqlite db", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, weberrors.NewPersistenceError("ping sqlite db", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, weberrors.NewPersistenceError("apply schema", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO owner (id, has_active_subscription) VALUES (1, ?)`,
		boolInt(opts.Subscribed)); err != nil {
		_ = db.Close()
		return nil, weberrors.NewPersistenceError("seed owner", err)
	}

	return &Store{db: db, templates: opts.Templates, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetSubscription flips the local owner's subscription flag.
func (s *Store) SetSubscription(ctx context.Context, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE owner SET has_active_subscription = ? WHERE id = 1`, boolInt(active))
	if err != nil {
		return weberrors.NewPersistenceError("update subscription", err)
	}
	return nil
}

func (s *Store) subscribed(ctx context.Context) (bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT has_active_subscription FROM owner WHERE id = 1`).Scan(&v)
	if err != nil {
		return false, weberrors.NewPersistenceError("read subscription", err)
	}
	return v == 1, nil
}

// ListTemplates implements Backend.
func (s *Store) ListTemplates(_ context.Context, filter TemplateFilter) ([]Template, error) {
	if s.templates == nil {
		return nil, nil
	}
	all := s.templates.List(filter.Category)
	if filter.Limit <= 0 {
		return all, nil
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	from := (page - 1) * filter.Limit
	if from >= len(all) {
		return []Template{}, nil
	}
	to := from + filter.Limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], nil
}

// FetchTemplate implements Backend.
func (s *Store) FetchTemplate(_ context.Context, id string) (*Template, error) {
	if s.templates == nil {
		return nil, weberrors.NewNotFoundError("template", id)
	}
	return s.templates.Get(id)
}

// CreateWebsite composes the template into a standalone document and
// stores it under a fresh id and slug.
func (s *Store) CreateWebsite(ctx context.Context, req NewWebsite) (*Website, error) {
	tpl, err := s.FetchTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	frags, err := tpl.Fragments()
	if err != nil {
		return nil, err
	}
	doc, err := compositor.Compose(frags)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.CustomName)
	if name == "" {
		name = tpl.Name
	}
	id := uuid.NewString()
	slug := Slugify(name)
	if slug == "" {
		slug = "site"
	}
	slug += "-" + id[:8]

	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO websites (id, name, html, template_id, slug, thumbnail, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, doc, tpl.Identifier(), slug, tpl.Thumbnail, toMillis(now))
	if err != nil {
		return nil, weberrors.NewPersistenceError("create website", err)
	}
	return s.GetWebsite(ctx, id)
}

const websiteColumns = `id, name, html, template_id, slug, thumbnail, is_published,
	published_at, custom_domain, domain_verified_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWebsite(row rowScanner) (*Website, error) {
	var (
		w           Website
		published   int
		publishedAt sql.NullInt64
		domain      sql.NullString
		verifiedAt  sql.NullInt64
		updatedAt   int64
	)
	if err := row.Scan(&w.ID, &w.Name, &w.HTML, &w.TemplateID, &w.Slug, &w.Thumbnail,
		&published, &publishedAt, &domain, &verifiedAt, &updatedAt); err != nil {
		return nil, err
	}
	w.IsPublished = published == 1
	if publishedAt.Valid {
		t := fromMillis(publishedAt.Int64)
		w.PublishedAt = &t
	}
	w.CustomDomain = domain.String
	w.IsCustomDomainVerified = verifiedAt.Valid
	w.UpdatedAt = fromMillis(updatedAt)
	return &w, nil
}

// GetWebsite implements Backend.
func (s *Store) GetWebsite(ctx context.Context, id string) (*Website, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id = ?`, id)
	w, err := scanWebsite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, weberrors.NewNotFoundError("website", id)
	}
	if err != nil {
		return nil, weberrors.NewPersistenceError("read website", err)
	}
	if w.HasActiveSubscription, err = s.subscribed(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// SaveWebsite implements Backend.
func (s *Store) SaveWebsite(ctx context.Context, id string, update WebsiteUpdate) (*Website, error) {
	if strings.TrimSpace(update.HTML) == "" {
		return nil, weberrors.NewPersistenceError("refusing to save an empty document", nil)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE websites SET name = COALESCE(NULLIF(?, ''), name), html = ?, updated_at = ? WHERE id = ?`,
		update.Name, update.HTML, toMillis(s.now()), id)
	if err := affected(res, err, "website", id); err != nil {
		return nil, err
	}
	return s.GetWebsite(ctx, id)
}

// PublishWebsite implements Backend. Publishing needs an active
// subscription.
func (s *Store) PublishWebsite(ctx context.Context, id string, update WebsiteUpdate) (*Website, error) {
	ok, err := s.subscribed(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, weberrors.NewSubscriptionRequiredError("Publishing requires an active subscription")
	}
	if strings.TrimSpace(update.HTML) == "" {
		return nil, weberrors.NewPersistenceError("refusing to publish an empty document", nil)
	}
	now := toMillis(s.now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE websites SET name = COALESCE(NULLIF(?, ''), name), html = ?, is_published = 1,
		 published_at = ?, updated_at = ? WHERE id = ?`,
		update.Name, update.HTML, now, now, id)
	if err := affected(res, err, "website", id); err != nil {
		return nil, err
	}
	return s.GetWebsite(ctx, id)
}

// SetCustomDomain implements Backend. The domain starts unverified.
func (s *Store) SetCustomDomain(ctx context.Context, id, domain string) (*Website, error) {
	ok, err := s.subscribed(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, weberrors.NewSubscriptionRequiredError("Custom domains require an active subscription")
	}
	if err := validation.ValidateDomain(domain); err != nil {
		return nil, weberrors.NewValidationError(weberrors.ErrCodeValidationFailed, err.Error())
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE websites SET custom_domain = ?, domain_verified_at = NULL, updated_at = ? WHERE id = ?`,
		validation.NormalizeDomain(domain), toMillis(s.now()), id)
	if isUniqueViolation(err) {
		return nil, weberrors.NewPersistenceError("domain is already in use", err)
	}
	if err := affected(res, err, "website", id); err != nil {
		return nil, err
	}
	return s.GetWebsite(ctx, id)
}

// VerifyCustomDomain implements Backend. The local store performs no DNS
// lookup: a domain verifies when it is the one configured for the site.
func (s *Store) VerifyCustomDomain(ctx context.Context, id, domain string) (*DomainStatus, error) {
	w, err := s.GetWebsite(ctx, id)
	if err != nil {
		return nil, err
	}
	if !w.HasActiveSubscription {
		return nil, weberrors.NewSubscriptionRequiredError("Custom domains require an active subscription")
	}
	domain = validation.NormalizeDomain(domain)
	if w.CustomDomain == "" || w.CustomDomain != domain {
		return &DomainStatus{Domain: domain, Message: "Domain is not configured for this website"}, nil
	}
	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE websites SET domain_verified_at = ? WHERE id = ?`, toMillis(now), id); err != nil {
		return nil, weberrors.NewPersistenceError("verify domain", err)
	}
	verified := fromMillis(toMillis(now))
	return &DomainStatus{Domain: domain, IsVerified: true, VerifiedAt: &verified, Message: "Domain verified"}, nil
}

// GetPublishedSite implements Backend. Inline CSS and JS are lifted out of
// the stored document so the published renderer can isolate the script.
func (s *Store) GetPublishedSite(ctx context.Context, slug string) (*PublishedSite, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+websiteColumns+` FROM websites WHERE (slug = ? OR custom_domain = ?) AND is_published = 1`,
		slug, strings.ToLower(slug))
	w, err := scanWebsite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, weberrors.NewNotFoundError("site", slug)
	}
	if err != nil {
		return nil, weberrors.NewPersistenceError("read site", err)
	}
	active, err := s.subscribed(ctx)
	if err != nil {
		return nil, err
	}
	frags := compositor.Extract(w.HTML)
	return &PublishedSite{
		Name:                  w.Name,
		HTML:                  frags.HTML,
		CSS:                   frags.CSS,
		JS:                    frags.JS,
		HasActiveSubscription: active,
	}, nil
}

func affected(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return weberrors.NewPersistenceError(fmt.Sprintf("update %s", kind), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return weberrors.NewPersistenceError(fmt.Sprintf("update %s", kind), err)
	}
	if n == 0 {
		return weberrors.NewNotFoundError(kind, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
