package editor

import (
	"context"
	"strings"
	"sync"

	"github.com/conneroisu/webgen/internal/backend"
	"github.com/conneroisu/webgen/internal/compositor"
	"github.com/conneroisu/webgen/internal/document"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/logging"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/conneroisu/webgen/internal/validation"
	"github.com/google/uuid"
)

// Toast texts for successful operations.
const (
	ToastTextUpdated      = "Text updated!"
	ToastStyleUpdated     = "Style updated!"
	ToastImageUpdated     = "Image updated!"
	ToastLinkUpdated      = "Link updated!"
	ToastElementDeleted   = "Element deleted!"
	ToastElementCopied    = "Element duplicated!"
	ToastSaved            = "Website saved successfully!"
	ToastPublished        = "Website published successfully!"
	ToastDomainSet        = "Custom domain saved. Verify it once DNS is configured."
	ToastDomainVerified   = "Domain verified successfully!"
	ToastDomainUnverified = "Domain verification failed"
)

// Selection is the selected element of a session with the snapshot the
// editor panel shows for it.
type Selection struct {
	Index    int
	Snapshot Snapshot
}

// SessionOptions wires a Session. Frame is required; the rest default.
type SessionOptions struct {
	Backend    backend.Backend
	Frame      *sandbox.Frame
	Renderer   *sandbox.Renderer
	Engine     *Engine
	Compositor *compositor.Compositor
	Resolver   StyleResolver
	Confirmer  Confirmer
	Notifier   Notifier
	Logger     logging.Logger
}

// Session edits one website in one frame. Methods are serialized; a render
// signal or a confirmation reply must reach the session through Signal or
// Reply, never through a call that waits for the session lock.
type Session struct {
	id         string
	backend    backend.Backend
	frame      *sandbox.Frame
	renderer   *sandbox.Renderer
	engine     *Engine
	compositor *compositor.Compositor
	resolver   StyleResolver
	confirmer  Confirmer
	notifier   Notifier
	errors     *weberrors.ErrorHandler
	logger     logging.Logger

	mu        sync.Mutex
	websiteID string
	name      string
	slug      string
	published bool
	bridge    *Bridge
	live      *LiveView
	selection *Selection
	outcome   sandbox.Outcome
}

// NewSession creates a session with nothing loaded.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Frame == nil {
		return nil, weberrors.NewConfigError(weberrors.ErrCodeConfigInvalid, "session needs a frame")
	}
	s := &Session{
		id:         uuid.NewString(),
		backend:    opts.Backend,
		frame:      opts.Frame,
		renderer:   opts.Renderer,
		engine:     opts.Engine,
		compositor: opts.Compositor,
		resolver:   opts.Resolver,
		confirmer:  opts.Confirmer,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	s.logger = s.logger.WithComponent("session").With("session", s.id)
	if s.renderer == nil {
		s.renderer = sandbox.NewRenderer(sandbox.Options{Logger: opts.Logger})
	}
	if s.engine == nil {
		s.engine = NewEngine()
	}
	if s.compositor == nil {
		s.compositor = compositor.NewCompositor(compositor.Options{})
	}
	if s.confirmer == nil {
		s.confirmer = AlwaysConfirm
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	s.errors = weberrors.NewErrorHandler(s.logger, toastAdapter{notifier: s.notifier})
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Frame returns the render target.
func (s *Session) Frame() *sandbox.Frame {
	return s.frame
}

// Name returns the working website name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// WebsiteID returns the id of the loaded website, empty for ad-hoc markup.
func (s *Session) WebsiteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.websiteID
}

// Selection returns the current selection.
func (s *Session) Selection() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return Selection{}, false
	}
	return *s.selection, true
}

// LiveView returns the current annotated view.
func (s *Session) LiveView() *LiveView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Outcome returns the result of the latest render.
func (s *Session) Outcome() sandbox.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Serialize returns the annotation-free markup of the model.
func (s *Session) Serialize() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bridge == nil {
		return "", weberrors.NewNotReadyError(s.frame.State().String())
	}
	return s.bridge.Serialize()
}

// Load fetches a website and renders it.
func (s *Session) Load(ctx context.Context, websiteID string) (sandbox.Outcome, error) {
	if s.backend == nil {
		return sandbox.Outcome{}, weberrors.NewConfigError(weberrors.ErrCodeConfigInvalid, "no backend configured")
	}
	site, err := s.backend.GetWebsite(ctx, websiteID)
	if err != nil {
		s.errors.Handle(ctx, err)
		return sandbox.Outcome{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.websiteID = site.ID
	if s.websiteID == "" {
		s.websiteID = websiteID
	}
	s.slug = site.Slug
	s.published = site.IsPublished
	return s.load(ctx, site.Name, site.HTML)
}

// LoadHTML renders markup that is not backed by a stored website.
func (s *Session) LoadHTML(ctx context.Context, name, markup string) (sandbox.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, name, markup)
}

func (s *Session) load(ctx context.Context, name, markup string) (sandbox.Outcome, error) {
	doc, err := document.Parse(markup)
	if err != nil {
		s.errors.Handle(ctx, err)
		return sandbox.Outcome{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = "My Website"
	}
	s.name = name
	s.bridge = NewBridge(doc)
	s.selection = nil
	return s.render(ctx), nil
}

// ReloadRaw replaces the model with hand-edited markup, as the code view
// does, and renders it. The selection is cleared.
func (s *Session) ReloadRaw(ctx context.Context, markup string) (sandbox.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.reloadRaw(ctx, markup)
	if err != nil {
		s.errors.Handle(ctx, err)
	}
	return out, err
}

func (s *Session) reloadRaw(ctx context.Context, markup string) (sandbox.Outcome, error) {
	doc, err := document.Parse(markup)
	if err != nil {
		return sandbox.Outcome{}, err
	}
	if s.bridge == nil {
		s.bridge = NewBridge(doc)
	} else {
		s.bridge.Replace(doc)
	}
	s.selection = nil
	return s.render(ctx), nil
}

// Retry renders the current model again, typically after a render error.
func (s *Session) Retry(ctx context.Context) (sandbox.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bridge == nil {
		return sandbox.Outcome{}, weberrors.NewNotReadyError(s.frame.State().String())
	}
	return s.render(ctx), nil
}

// render derives a fresh live view, carries the selection over and writes
// it to the frame. Callers hold mu.
func (s *Session) render(ctx context.Context) sandbox.Outcome {
	s.live = s.engine.Annotate(s.bridge.Model())
	if s.selection != nil {
		if err := s.live.Restore(s.selection.Index); err != nil {
			s.selection = nil
			s.bridge.ClearSelection()
		}
	}

	markup, err := s.live.Markup()
	if err == nil {
		markup, err = s.compositor.Compose(compositor.Fragments{HTML: markup})
	}
	if err != nil {
		rerr := weberrors.NewRenderError("cannot prepare live view", err)
		s.logger.Error(ctx, rerr, "Render preparation failed")
		s.outcome = sandbox.Outcome{State: sandbox.StateError, Err: rerr}
		return s.outcome
	}

	s.outcome = s.renderer.Render(ctx, markup, s.frame)
	if s.outcome.Ready() && s.selection != nil {
		if snap, err := s.live.Snapshot(ctx, s.selection.Index, nil, s.resolver); err == nil {
			s.selection.Snapshot = snap
		}
	}
	return s.outcome
}

// Signal forwards a render signal to a remote surface. It never waits on
// the session lock.
func (s *Session) Signal(m Message) bool {
	remote, ok := s.frame.Surface().(*sandbox.RemoteSurface)
	if !ok || !m.IsRenderSignal() {
		return false
	}
	return remote.Signal(m.Seq, m.Error)
}

// Reply answers a pending confirmation prompt. It never waits on the
// session lock.
func (s *Session) Reply(m Message) bool {
	rc, ok := s.confirmer.(*RemoteConfirmer)
	if !ok || m.Type != MsgConfirmReply {
		return false
	}
	return rc.Reply(m.ID, m.OK)
}

// Dispatch applies one message and returns the events for the browser.
// Errors are reported through the notifier before they are returned.
func (s *Session) Dispatch(ctx context.Context, m Message) ([]Event, error) {
	if err := m.Validate(); err != nil {
		s.errors.Handle(ctx, err)
		return nil, err
	}
	switch m.Type {
	case MsgLoaded, MsgLoadError:
		s.Signal(m)
		return nil, nil
	case MsgConfirmReply:
		s.Reply(m)
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.dispatch(ctx, m)
	if err != nil {
		s.logger.Debug(ctx, "Message rejected", "type", m.Type, "code", weberrors.CodeOf(err))
		s.errors.Handle(ctx, err)
		return events, err
	}
	return events, nil
}

func (s *Session) dispatch(ctx context.Context, m Message) ([]Event, error) {
	if err := s.gate(m.Type); err != nil {
		return nil, err
	}

	switch m.Type {
	case MsgHover:
		return nil, s.live.PointerEnter(*m.Index)
	case MsgLeave:
		return nil, s.live.PointerLeave(*m.Index)
	case MsgSelect:
		snap, err := s.selectIndex(ctx, *m.Index, m.Style)
		if err != nil {
			return nil, err
		}
		return []Event{{Type: EventSnapshot, Snapshot: &snap}}, nil
	case MsgEdit:
		snap, err := s.ensureSelected(ctx, *m.Index)
		if err != nil {
			return nil, err
		}
		return []Event{{Type: EventEdit, Snapshot: &snap}}, nil
	case MsgDelete:
		return s.deleteElement(ctx, *m.Index)
	case MsgDuplicate:
		if _, err := s.ensureSelected(ctx, *m.Index); err != nil {
			return nil, err
		}
		return s.mutate(ctx, ToastElementCopied, s.bridge.DuplicateElement)
	case MsgUpdateText:
		return s.mutate(ctx, ToastTextUpdated, func() error { return s.bridge.UpdateText(m.Value) })
	case MsgUpdateStyle:
		return s.mutate(ctx, ToastStyleUpdated, func() error { return s.bridge.UpdateStyle(m.Property, m.Value) })
	case MsgUpdateImage:
		return s.mutate(ctx, ToastImageUpdated, func() error { return s.bridge.UpdateImage(m.Value) })
	case MsgUpdateLink:
		return s.mutate(ctx, ToastLinkUpdated, func() error { return s.bridge.UpdateLink(m.Value) })
	case MsgDeselect:
		s.clearSelection()
		return []Event{{Type: EventCleared}}, nil
	case MsgRename:
		if name := strings.TrimSpace(m.Name); name != "" {
			s.name = name
		}
		return []Event{s.websiteEvent()}, nil
	case MsgSave:
		if err := s.save(ctx); err != nil {
			return nil, err
		}
		return []Event{s.websiteEvent()}, nil
	case MsgPublish:
		if err := s.publish(ctx); err != nil {
			return nil, err
		}
		return []Event{s.websiteEvent()}, nil
	case MsgSetDomain:
		if err := s.setDomain(ctx, m.Domain); err != nil {
			return nil, err
		}
		return nil, nil
	case MsgVerifyDomain:
		if err := s.verifyDomain(ctx, m.Domain); err != nil {
			return nil, err
		}
		return nil, nil
	case MsgReloadRaw:
		out, err := s.reloadRaw(ctx, m.HTML)
		if err != nil {
			return nil, err
		}
		return []Event{StateEvent(out), {Type: EventCleared}}, nil
	case MsgRetry:
		if s.bridge == nil {
			return nil, weberrors.NewNotReadyError(s.frame.State().String())
		}
		return []Event{StateEvent(s.render(ctx))}, nil
	}
	return nil, weberrors.NewInvalidMessageError("unsupported message type "+string(m.Type), nil)
}

// gate rejects interaction until the frame is ready. Persistence only
// needs a loaded model; retry and raw reloads recover from errors.
func (s *Session) gate(t MessageType) error {
	state := s.frame.State()
	switch t {
	case MsgRetry, MsgReloadRaw:
		if state == sandbox.StateLoading {
			return weberrors.NewNotReadyError(state.String())
		}
		return nil
	case MsgSave, MsgPublish, MsgRename, MsgSetDomain, MsgVerifyDomain:
		if s.bridge == nil || state == sandbox.StateLoading {
			return weberrors.NewNotReadyError(state.String())
		}
		return nil
	}
	if state != sandbox.StateReady || s.live == nil {
		return weberrors.NewNotReadyError(state.String())
	}
	return nil
}

func (s *Session) selectIndex(ctx context.Context, i int, reported *sandbox.ComputedStyle) (Snapshot, error) {
	if err := s.bridge.Select(i); err != nil {
		return Snapshot{}, err
	}
	snap, err := s.live.Select(ctx, i, reported, s.resolver)
	if err != nil {
		s.bridge.ClearSelection()
		return Snapshot{}, err
	}
	s.selection = &Selection{Index: i, Snapshot: snap}
	return snap, nil
}

// ensureSelected selects i unless it already is. Toolbar actions carry the
// index of the element they belong to.
func (s *Session) ensureSelected(ctx context.Context, i int) (Snapshot, error) {
	if s.selection != nil && s.selection.Index == i {
		return s.selection.Snapshot, nil
	}
	return s.selectIndex(ctx, i, nil)
}

// mutate applies op to the model, re-renders with the selection kept and
// reports the refreshed snapshot.
func (s *Session) mutate(ctx context.Context, success string, op func() error) ([]Event, error) {
	if err := op(); err != nil {
		return nil, err
	}
	out := s.render(ctx)
	events := []Event{StateEvent(out)}
	if s.selection != nil {
		snap := s.selection.Snapshot
		events = append(events, Event{Type: EventSnapshot, Snapshot: &snap})
	}
	s.notifier.Notify(ctx, Notification{Level: LevelSuccess, Kind: KindGeneral, Message: success})
	return events, nil
}

func (s *Session) deleteElement(ctx context.Context, i int) ([]Event, error) {
	if _, err := s.ensureSelected(ctx, i); err != nil {
		return nil, err
	}
	removed, err := s.bridge.DeleteElement(ctx, s.confirmer)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, nil
	}
	s.selection = nil
	out := s.render(ctx)
	s.notifier.Notify(ctx, Notification{Level: LevelSuccess, Kind: KindGeneral, Message: ToastElementDeleted})
	return []Event{StateEvent(out), {Type: EventCleared}}, nil
}

func (s *Session) clearSelection() {
	s.selection = nil
	s.bridge.ClearSelection()
	if s.live != nil {
		s.live.Deselect()
	}
}

// Save persists the serialized model under the working name.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx); err != nil {
		s.errors.Handle(ctx, err)
		return err
	}
	return nil
}

func (s *Session) save(ctx context.Context) error {
	update, err := s.update()
	if err != nil {
		return err
	}
	op := logging.StartOperation(s.logger, "save")
	site, err := s.backend.SaveWebsite(ctx, s.websiteID, update)
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	op.End(ctx, "website", s.websiteID)
	s.absorb(site)
	s.logger.Info(ctx, "Website saved", "website", s.websiteID, "bytes", len(update.HTML))
	s.notifier.Notify(ctx, Notification{Level: LevelSuccess, Kind: KindGeneral, Message: ToastSaved})
	return nil
}

// Publish persists the serialized model and marks the website published.
// A missing subscription surfaces as an upgrade notification.
func (s *Session) Publish(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.publish(ctx); err != nil {
		s.errors.Handle(ctx, err)
		return err
	}
	return nil
}

func (s *Session) publish(ctx context.Context) error {
	update, err := s.update()
	if err != nil {
		return err
	}
	op := logging.StartOperation(s.logger, "publish")
	site, err := s.backend.PublishWebsite(ctx, s.websiteID, update)
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	op.End(ctx, "website", s.websiteID)
	s.absorb(site)
	s.published = true
	s.logger.Info(ctx, "Website published", "website", s.websiteID, "slug", s.slug)
	s.notifier.Notify(ctx, Notification{Level: LevelSuccess, Kind: KindGeneral, Message: ToastPublished})
	return nil
}

// SetCustomDomain attaches a custom domain to the website.
func (s *Session) SetCustomDomain(ctx context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setDomain(ctx, domain); err != nil {
		s.errors.Handle(ctx, err)
		return err
	}
	return nil
}

func (s *Session) setDomain(ctx context.Context, domain string) error {
	if err := s.persistable(); err != nil {
		return err
	}
	if err := validation.ValidateDomain(domain); err != nil {
		return weberrors.NewValidationError(weberrors.ErrCodeValidationFailed,
			"Invalid domain format. Example: yourdomain.com").WithContext("domain", domain)
	}
	if _, err := s.backend.SetCustomDomain(ctx, s.websiteID, validation.NormalizeDomain(domain)); err != nil {
		return err
	}
	s.notifier.Notify(ctx, Notification{Level: LevelSuccess, Kind: KindGeneral, Message: ToastDomainSet})
	return nil
}

// VerifyDomain asks the backend whether domain resolves to the website.
func (s *Session) VerifyDomain(ctx context.Context, domain string) (*backend.DomainStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, err := s.verify(ctx, domain)
	if err != nil {
		s.errors.Handle(ctx, err)
		return nil, err
	}
	return status, nil
}

func (s *Session) verifyDomain(ctx context.Context, domain string) error {
	_, err := s.verify(ctx, domain)
	return err
}

func (s *Session) verify(ctx context.Context, domain string) (*backend.DomainStatus, error) {
	if err := s.persistable(); err != nil {
		return nil, err
	}
	status, err := s.backend.VerifyCustomDomain(ctx, s.websiteID, validation.NormalizeDomain(domain))
	if err != nil {
		return nil, err
	}
	n := Notification{Level: LevelSuccess, Kind: KindGeneral, Message: ToastDomainVerified}
	if !status.IsVerified {
		n.Level, n.Message = LevelWarning, ToastDomainUnverified
	}
	s.notifier.Notify(ctx, n)
	return status, nil
}

func (s *Session) persistable() error {
	if s.backend == nil {
		return weberrors.NewConfigError(weberrors.ErrCodeConfigInvalid, "no backend configured")
	}
	if s.websiteID == "" {
		return weberrors.NewPersistenceError("document is not bound to a website", nil)
	}
	return nil
}

func (s *Session) update() (backend.WebsiteUpdate, error) {
	if err := s.persistable(); err != nil {
		return backend.WebsiteUpdate{}, err
	}
	if s.bridge == nil {
		return backend.WebsiteUpdate{}, weberrors.NewNotReadyError(s.frame.State().String())
	}
	markup, err := s.bridge.Serialize()
	if err != nil {
		return backend.WebsiteUpdate{}, weberrors.NewPersistenceError("cannot serialize document", err)
	}
	return backend.WebsiteUpdate{Name: s.name, HTML: markup}, nil
}

func (s *Session) absorb(site *backend.Website) {
	if site == nil {
		return
	}
	if site.Slug != "" {
		s.slug = site.Slug
	}
	if site.IsPublished {
		s.published = true
	}
}

func (s *Session) websiteEvent() Event {
	return Event{Type: EventWebsite, ID: s.websiteID, Name: s.name, Slug: s.slug, Published: s.published}
}

// Overview returns the events a freshly connected browser needs: the render
// state, the website header and the clean markup for the code view.
func (s *Session) Overview() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := []Event{StateEvent(s.outcome), s.websiteEvent()}
	if s.bridge != nil {
		if markup, err := s.bridge.Serialize(); err == nil {
			events = append(events, Event{Type: EventRawSource, HTML: markup})
		}
	}
	return events
}

// StateEvent reports a render outcome to the browser.
func StateEvent(out sandbox.Outcome) Event {
	ev := Event{Type: EventState, State: out.State.String()}
	if out.Err != nil && out.State == sandbox.StateError {
		ev.Error = out.Err.Error()
	}
	return ev
}
