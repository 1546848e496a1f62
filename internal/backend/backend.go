// Package backend defines the collaborator contracts of the editor (template
// fetch, website persistence, subscription gate and published-site
// retrieval) with a REST client for the hosted API and a local SQLite store.
package backend

import (
	"context"
	"time"

	"github.com/conneroisu/webgen/internal/compositor"
)

// Template is a catalog entry as the template service returns it.
type Template = compositor.TemplatePayload

// TemplateFilter narrows ListTemplates.
type TemplateFilter struct {
	Category string
	Page     int
	Limit    int
}

// Website is a user's site built from a template.
type Website struct {
	ID                     string     `json:"_id"`
	Name                   string     `json:"name"`
	HTML                   string     `json:"html"`
	TemplateID             string     `json:"templateId,omitempty"`
	Slug                   string     `json:"slug,omitempty"`
	Thumbnail              string     `json:"thumbnail,omitempty"`
	IsPublished            bool       `json:"isPublished"`
	PublishedAt            *time.Time `json:"publishedAt,omitempty"`
	CustomDomain           string     `json:"customDomain,omitempty"`
	IsCustomDomainVerified bool       `json:"isCustomDomainVerified,omitempty"`
	HasActiveSubscription  bool       `json:"hasActiveSubscription"`
	UpdatedAt              time.Time  `json:"updatedAt,omitempty"`
}

// WebsiteUpdate is the body of save and publish calls.
type WebsiteUpdate struct {
	Name        string `json:"name"`
	HTML        string `json:"html"`
	IsPublished bool   `json:"isPublished,omitempty"`
}

// NewWebsite instantiates a website from a template.
type NewWebsite struct {
	UserID     string `json:"userId"`
	TemplateID string `json:"templateId"`
	CustomName string `json:"customName,omitempty"`
}

// PublishedSite is what a visitor of a slug receives.
type PublishedSite struct {
	Name                  string `json:"name,omitempty"`
	HTML                  string `json:"html"`
	CSS                   string `json:"css"`
	JS                    string `json:"js"`
	HasActiveSubscription bool   `json:"hasActiveSubscription"`
}

// DomainStatus is the outcome of a custom-domain verification.
type DomainStatus struct {
	Domain     string     `json:"domain,omitempty"`
	IsVerified bool       `json:"isVerified"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// Backend is every collaborator the editor talks to.
type Backend interface {
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]Template, error)
	FetchTemplate(ctx context.Context, id string) (*Template, error)
	CreateWebsite(ctx context.Context, req NewWebsite) (*Website, error)
	GetWebsite(ctx context.Context, id string) (*Website, error)
	SaveWebsite(ctx context.Context, id string, update WebsiteUpdate) (*Website, error)
	PublishWebsite(ctx context.Context, id string, update WebsiteUpdate) (*Website, error)
	SetCustomDomain(ctx context.Context, id, domain string) (*Website, error)
	VerifyCustomDomain(ctx context.Context, id, domain string) (*DomainStatus, error)
	GetPublishedSite(ctx context.Context, slug string) (*PublishedSite, error)
}
