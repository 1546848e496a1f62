package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/conneroisu/webgen/internal/backend"
	"github.com/conneroisu/webgen/internal/catalog"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/conneroisu/webgen/internal/validation"
	"github.com/conneroisu/webgen/internal/views"
	"github.com/go-chi/chi/v5"
)

func (s *Server) page(title string) views.Page {
	p := views.Page{Title: title, LiveReload: s.config.Server.Development()}
	if s.preferences != nil {
		p.Theme = s.preferences.Theme()
	}
	return p
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		s.logger.Error(r.Context(), err, "Failed to render page", "path", r.URL.Path)
	}
}

// statusFor maps a collaborator error onto an HTTP status.
func statusFor(err error) int {
	switch weberrors.CodeOf(err) {
	case weberrors.ErrCodeNotFound:
		return http.StatusNotFound
	case weberrors.ErrCodeSubscriptionRequired:
		return http.StatusPaymentRequired
	case weberrors.ErrCodeEmptyTemplate, weberrors.ErrCodeInvalidTemplate:
		return http.StatusUnprocessableEntity
	case weberrors.ErrCodePersistence:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// message returns the user-facing text of err.
func message(err error) string {
	var se *weberrors.SiteError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, title string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusBadGateway {
		s.logger.Error(r.Context(), err, "Request failed", "path", r.URL.Path)
	}
	retry := ""
	if r.Method == http.MethodGet {
		retry = r.URL.RequestURI()
	}
	body := views.ErrorPanel(message(err), retry)
	if status == http.StatusNotFound {
		body = views.NotFound(message(err))
	}
	s.render(w, r, status, views.Layout(s.page(title), body))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, views.Layout(s.page("Not Found"),
		views.NotFound("Nothing lives at "+r.URL.Path+".")))
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	active := strings.TrimSpace(r.URL.Query().Get("category"))
	if active == "all" {
		active = ""
	}
	if active != "" {
		active = catalog.NormalizeCategory(active)
	}

	templates, err := s.backend.ListTemplates(r.Context(), backend.TemplateFilter{Category: active})
	if err != nil {
		s.fail(w, r, "Templates", err)
		return
	}
	s.render(w, r, http.StatusOK, views.Layout(s.page("Templates"), views.Gallery(views.GalleryData{
		Templates:  templates,
		Categories: catalog.Categories(),
		Active:     active,
	})))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.backend.FetchTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "Preview", err)
		return
	}
	s.render(w, r, http.StatusOK, views.Layout(s.page(tpl.Name), views.Preview(views.PreviewData{
		Template: *tpl,
		View:     sandbox.ViewportFor(r.URL.Query().Get("view")),
	})))
}

// handleTemplateDocument serves the composed template into the preview
// frame. Failures render an error panel inside the frame.
func (s *Server) handleTemplateDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.composeTemplate(r)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError || status == http.StatusBadGateway {
			s.logger.Error(r.Context(), err, "Template preview failed", "template", chi.URLParam(r, "id"))
		}
		s.render(w, r, status, views.Standalone("Preview unavailable",
			views.ErrorPanel(message(err), r.URL.RequestURI())))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(doc)); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to write template document")
	}
}

func (s *Server) composeTemplate(r *http.Request) (string, error) {
	tpl, err := s.backend.FetchTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return "", err
	}
	frags, err := tpl.Fragments()
	if err != nil {
		return "", err
	}
	return s.compositor.Compose(frags)
}

// handleUseTemplate creates a website from a template and opens it in the
// editor.
func (s *Server) handleUseTemplate(w http.ResponseWriter, r *http.Request) {
	req := backend.NewWebsite{
		TemplateID: chi.URLParam(r, "id"),
		CustomName: validation.SanitizeInput(strings.TrimSpace(r.FormValue("name"))),
	}
	if s.preferences != nil {
		if user := s.preferences.User(); user != nil {
			req.UserID = user.ID
		}
	}

	site, err := s.backend.CreateWebsite(r.Context(), req)
	if err != nil {
		s.fail(w, r, "New website", err)
		return
	}
	s.logger.Info(r.Context(), "Website created", "website", site.ID, "template", req.TemplateID)
	http.Redirect(w, r, "/editor/"+url.PathEscape(site.ID), http.StatusSeeOther)
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")
	site, err := s.backend.GetWebsite(r.Context(), websiteID)
	if err != nil {
		s.fail(w, r, "Editor", err)
		return
	}
	p := s.page("Editing " + site.Name)
	// Reloading would drop the editing session.
	p.LiveReload = false
	s.render(w, r, http.StatusOK, views.Layout(p, views.EditorShell(views.EditorData{
		WebsiteID: websiteID,
		Name:      site.Name,
		Socket:    "/ws/editor/" + url.PathEscape(websiteID),
	})))
}

// handleSite serves a published website to visitors.
func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := validation.ValidateSlug(slug); err != nil {
		s.render(w, r, http.StatusNotFound, views.Standalone("Website Not Found",
			views.NotFound("The website you're looking for doesn't exist or hasn't been published.")))
		return
	}

	site, err := s.backend.GetPublishedSite(r.Context(), slug)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			s.render(w, r, http.StatusNotFound, views.Standalone("Website Not Found",
				views.NotFound("The website you're looking for doesn't exist or hasn't been published.")))
			return
		}
		s.fail(w, r, "Website", err)
		return
	}

	page, err := s.published.Render(*site)
	switch {
	case weberrors.IsSubscriptionRequired(err):
		s.render(w, r, http.StatusPaymentRequired, views.Standalone("Subscription Required", views.SubscriptionRequired()))
	case err != nil:
		s.render(w, r, statusFor(err), views.Standalone("Website unavailable", views.ErrorPanel(message(err), "")))
	default:
		s.render(w, r, http.StatusOK, views.Published(page))
	}
}
