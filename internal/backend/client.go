package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/logging"
)

const refreshPath = "/auth/refresh"

// TokenStore holds the bearer token used for API calls.
type TokenStore interface {
	Token() string
	SetToken(token string) error
}

// ClientConfig configures the REST client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     TokenStore
	Logger     logging.Logger
}

// Client talks to the hosted website-builder API. Responses use the
// {success, message, data} envelope.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenStore
	logger logging.Logger
}

var _ Backend = (*Client)(nil)

// NewClient creates a REST backend.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, weberrors.NewConfigError(weberrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid api base url %q", cfg.BaseURL))
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		base:   base,
		http:   hc,
		tokens: cfg.Tokens,
		logger: logger.WithComponent("api"),
	}, nil
}

type envelope struct {
	Success              *bool           `json:"success"`
	Message              string          `json:"message"`
	Data                 json.RawMessage `json:"data"`
	RequiresSubscription bool            `json:"requiresSubscription"`
	AccessToken          string          `json:"accessToken"`
}

// ListTemplates implements Backend.
func (c *Client) ListTemplates(ctx context.Context, filter TemplateFilter) ([]Template, error) {
	q := url.Values{}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	path := "/templates/get-templates"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []Template
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchTemplate implements Backend.
func (c *Client) FetchTemplate(ctx context.Context, id string) (*Template, error) {
	var out Template
	if err := c.do(ctx, http.MethodGet, "/templates/get-templates/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateWebsite implements Backend.
func (c *Client) CreateWebsite(ctx context.Context, req NewWebsite) (*Website, error) {
	var out Website
	if err := c.do(ctx, http.MethodPost, "/websites/create-website", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWebsite implements Backend.
func (c *Client) GetWebsite(ctx context.Context, id string) (*Website, error) {
	var out Website
	if err := c.do(ctx, http.MethodGet, "/websites/website/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveWebsite implements Backend.
func (c *Client) SaveWebsite(ctx context.Context, id string, update WebsiteUpdate) (*Website, error) {
	var out Website
	if err := c.do(ctx, http.MethodPut, "/websites/update/"+url.PathEscape(id), update, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID, out.Name, out.HTML = id, update.Name, update.HTML
	}
	return &out, nil
}

// PublishWebsite implements Backend.
func (c *Client) PublishWebsite(ctx context.Context, id string, update WebsiteUpdate) (*Website, error) {
	update.IsPublished = true
	var res struct {
		WebsiteID   string     `json:"websiteId"`
		Slug        string     `json:"slug"`
		IsPublished bool       `json:"isPublished"`
		PublishedAt *time.Time `json:"publishedAt"`
	}
	if err := c.do(ctx, http.MethodPut, "/websites/"+url.PathEscape(id)+"/publish", update, &res); err != nil {
		return nil, err
	}
	return &Website{
		ID:          id,
		Name:        update.Name,
		HTML:        update.HTML,
		Slug:        res.Slug,
		IsPublished: res.IsPublished,
		PublishedAt: res.PublishedAt,
	}, nil
}

// SetCustomDomain implements Backend.
func (c *Client) SetCustomDomain(ctx context.Context, id, domain string) (*Website, error) {
	var out Website
	body := map[string]string{"domain": domain}
	if err := c.do(ctx, http.MethodPost, "/websites/"+url.PathEscape(id)+"/custom-domain", body, &out); err != nil {
		return nil, err
	}
	out.ID = id
	if out.CustomDomain == "" {
		out.CustomDomain = domain
	}
	return &out, nil
}

// VerifyCustomDomain implements Backend.
func (c *Client) VerifyCustomDomain(ctx context.Context, id, domain string) (*DomainStatus, error) {
	var out DomainStatus
	path := "/websites/verify-domain/" + url.PathEscape(domain) + "?siteid=" + url.QueryEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	out.Domain = domain
	return &out, nil
}

// GetPublishedSite implements Backend.
func (c *Client) GetPublishedSite(ctx context.Context, slug string) (*PublishedSite, error) {
	var out PublishedSite
	if err := c.do(ctx, http.MethodGet, "/websites/site/"+url.PathEscape(slug), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs a call and decodes the envelope's data into out. An expired
// token triggers one refresh and one retry.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	env, status, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && path != refreshPath && c.tokens != nil {
		if rerr := c.refresh(ctx); rerr == nil {
			env, status, err = c.send(ctx, method, path, body)
			if err != nil {
				return err
			}
		} else {
			c.logger.Warn(ctx, rerr, "Token refresh failed", "path", path)
		}
	}

	if status >= http.StatusBadRequest || (env.Success != nil && !*env.Success) {
		return c.failure(method, path, status, env)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return weberrors.NewPersistenceError("unexpected response payload", err).
				WithContext("path", path)
		}
	}
	return nil
}

func (c *Client) failure(method, path string, status int, env *envelope) error {
	msg := env.Message
	if msg == "" {
		msg = fmt.Sprintf("%s %s failed with status %d", method, path, status)
	}
	switch {
	case env.RequiresSubscription:
		return weberrors.NewSubscriptionRequiredError(env.Message).WithContext("path", path)
	case status == http.StatusNotFound:
		return weberrors.NewNotFoundError("resource", path).WithContext("message", msg)
	default:
		return weberrors.NewPersistenceError(msg, nil).
			WithContext("path", path).
			WithContext("status", status)
	}
}

func (c *Client) refresh(ctx context.Context) error {
	env, status, err := c.send(ctx, http.MethodGet, refreshPath, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK || (env.Success != nil && !*env.Success) {
		_ = c.tokens.SetToken("")
		return weberrors.NewPersistenceError("session expired", nil).WithContext("status", status)
	}

	token := env.AccessToken
	if token == "" && len(env.Data) > 0 {
		var data struct {
			AccessToken string `json:"accessToken"`
		}
		if json.Unmarshal(env.Data, &data) == nil {
			token = data.AccessToken
		}
	}
	if token == "" {
		return weberrors.NewPersistenceError("refresh returned no token", nil)
	}
	return c.tokens.SetToken(token)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*envelope, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, weberrors.NewInternalError(weberrors.ErrCodeInternal, "failed to encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return nil, 0, weberrors.NewPersistenceError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, weberrors.NewPersistenceError("request failed", err).WithContext("path", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, resp.StatusCode, weberrors.NewPersistenceError("failed to read response", err)
	}
	c.logger.Debug(ctx, "API call", "method", method, "path", path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	env := &envelope{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, env); err != nil && resp.StatusCode < http.StatusBadRequest {
			return nil, resp.StatusCode, weberrors.NewPersistenceError("response is not valid JSON", err).
				WithContext("body", logging.Truncate(string(raw), 200))
		}
	}
	return env, resp.StatusCode, nil
}
