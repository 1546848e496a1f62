package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conneroisu/webgen/internal/backend"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu         sync.Mutex
	sites      map[string]*backend.Website
	subscribed bool
	saves      []backend.WebsiteUpdate
	failSave   error
}

func newFakeBackend(html string) *fakeBackend {
	return &fakeBackend{sites: map[string]*backend.Website{
		"w1": {ID: "w1", Name: "Portfolio", HTML: html, Slug: "portfolio-1"},
	}}
}

func (f *fakeBackend) ListTemplates(context.Context, backend.TemplateFilter) ([]backend.Template, error) {
	return nil, nil
}

func (f *fakeBackend) FetchTemplate(_ context.Context, id string) (*backend.Template, error) {
	return nil, weberrors.NewNotFoundError("template", id)
}

func (f *fakeBackend) CreateWebsite(context.Context, backend.NewWebsite) (*backend.Website, error) {
	return nil, weberrors.NewPersistenceError("not supported", nil)
}

func (f *fakeBackend) GetWebsite(_ context.Context, id string) (*backend.Website, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.sites[id]
	if !ok {
		return nil, weberrors.NewNotFoundError("website", id)
	}
	cp := *w
	return &cp, nil
}

func (f *fakeBackend) SaveWebsite(_ context.Context, id string, u backend.WebsiteUpdate) (*backend.Website, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return nil, f.failSave
	}
	f.saves = append(f.saves, u)
	w := f.sites[id]
	w.Name, w.HTML = u.Name, u.HTML
	cp := *w
	return &cp, nil
}

func (f *fakeBackend) PublishWebsite(ctx context.Context, id string, u backend.WebsiteUpdate) (*backend.Website, error) {
	f.mu.Lock()
	sub := f.subscribed
	f.mu.Unlock()
	if !sub {
		return nil, weberrors.NewSubscriptionRequiredError("Upgrade to publish your website")
	}
	w, err := f.SaveWebsite(ctx, id, u)
	if err != nil {
		return nil, err
	}
	w.IsPublished = true
	return w, nil
}

func (f *fakeBackend) SetCustomDomain(_ context.Context, id, domain string) (*backend.Website, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.subscribed {
		return nil, weberrors.NewSubscriptionRequiredError("")
	}
	f.sites[id].CustomDomain = domain
	cp := *f.sites[id]
	return &cp, nil
}

func (f *fakeBackend) VerifyCustomDomain(_ context.Context, id, domain string) (*backend.DomainStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &backend.DomainStatus{Domain: domain, IsVerified: f.sites[id].CustomDomain == domain}, nil
}

func (f *fakeBackend) GetPublishedSite(_ context.Context, slug string) (*backend.PublishedSite, error) {
	return nil, weberrors.NewNotFoundError("site", slug)
}

func (f *fakeBackend) lastSave() backend.WebsiteUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[len(f.saves)-1]
}

type sessionFixture struct {
	session  *Session
	surface  *sandbox.MemorySurface
	backend  *fakeBackend
	recorder *Recorder
}

func newSessionFixture(t *testing.T, surfaceOpts ...sandbox.MemoryOption) *sessionFixture {
	t.Helper()
	surface := sandbox.NewMemorySurface(surfaceOpts...)
	fb := newFakeBackend(samplePage)
	rec := &Recorder{}
	s, err := NewSession(SessionOptions{
		Backend:  fb,
		Frame:    sandbox.NewFrame("test", surface),
		Renderer: sandbox.NewRenderer(sandbox.Options{MinDelay: -1, Ceiling: 100 * time.Millisecond}),
		Notifier: rec,
	})
	require.NoError(t, err)
	return &sessionFixture{session: s, surface: surface, backend: fb, recorder: rec}
}

func (f *sessionFixture) load(t *testing.T) {
	t.Helper()
	out, err := f.session.Load(context.Background(), "w1")
	require.NoError(t, err)
	require.True(t, out.Ready())
}

func (f *sessionFixture) dispatch(t *testing.T, m Message) []Event {
	t.Helper()
	events, err := f.session.Dispatch(context.Background(), m)
	require.NoError(t, err)
	return events
}

func TestNewSessionNeedsFrame(t *testing.T) {
	_, err := NewSession(SessionOptions{})
	assert.Error(t, err)
}

func TestSessionLoadRendersAnnotatedView(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)

	assert.Equal(t, "Portfolio", f.session.Name())
	assert.Equal(t, "w1", f.session.WebsiteID())
	assert.Equal(t, sandbox.StateReady, f.session.Frame().State())

	written := f.surface.HTML()
	assert.Contains(t, written, AttrEditIndex)
	assert.Contains(t, written, "cdn.tailwindcss.com", "the live view is composed")

	clean, err := f.session.Serialize()
	require.NoError(t, err)
	assert.NotContains(t, clean, "cdn.tailwindcss.com", "composition never reaches the model")
	assert.NotContains(t, clean, AttrEditIndex)
}

func TestSessionLoadMissingWebsite(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.session.Load(context.Background(), "nope")
	assert.True(t, errors.Is(err, weberrors.ErrNotFound))
	last, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, LevelError, last.Level)
}

func TestSessionRejectsInteractionUntilReady(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.session.Dispatch(context.Background(), IndexMessage(MsgSelect, 0))
	assert.True(t, errors.Is(err, weberrors.ErrNotReady))

	_, err = f.session.Dispatch(context.Background(), Message{Type: MsgSave})
	assert.True(t, errors.Is(err, weberrors.ErrNotReady))
}

func TestSessionRenderErrorAllowsRetryOnly(t *testing.T) {
	f := newSessionFixture(t, sandbox.WithLoadError(errors.New("net::ERR_FAILED")))
	out, err := f.session.Load(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, sandbox.StateError, out.State)

	_, err = f.session.Dispatch(context.Background(), IndexMessage(MsgHover, 0))
	assert.True(t, errors.Is(err, weberrors.ErrNotReady))

	events, err := f.session.Dispatch(context.Background(), Message{Type: MsgRetry})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventState, events[0].Type)
	assert.Equal(t, "error", events[0].State)
	assert.Contains(t, events[0].Error, "failed to load")
}

func TestSessionSelectAndEditText(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)

	events := f.dispatch(t, IndexMessage(MsgSelect, 1))
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Snapshot)
	assert.Equal(t, "Hello", events[0].Snapshot.Text)

	events = f.dispatch(t, Message{Type: MsgUpdateText, Value: "Welcome"})
	require.Len(t, events, 2)
	assert.Equal(t, "ready", events[0].State)
	require.NotNil(t, events[1].Snapshot)
	assert.Equal(t, "Welcome", events[1].Snapshot.Text)

	sel, ok := f.session.Selection()
	require.True(t, ok, "property edits keep the selection")
	assert.Equal(t, 1, sel.Index)
	assert.Contains(t, f.surface.HTML(), `data-for-index="1"`, "the re-rendered view shows the toolbar again")

	last, _ := f.recorder.Last()
	assert.Equal(t, ToastTextUpdated, last.Message)
}

func TestSessionEditWithoutSelectionIsTransient(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)
	writes := f.surface.Writes()

	_, err := f.session.Dispatch(context.Background(), Message{Type: MsgUpdateText, Value: "x"})
	assert.True(t, errors.Is(err, weberrors.ErrNoSelection))
	assert.Equal(t, writes, f.surface.Writes(), "nothing re-rendered")
	assert.Equal(t, sandbox.StateReady, f.session.Frame().State())

	last, _ := f.recorder.Last()
	assert.Equal(t, LevelWarning, last.Level)
}

func TestSessionToolbarDelete(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)

	events := f.dispatch(t, IndexMessage(MsgDelete, 3))
	require.Len(t, events, 2)
	assert.Equal(t, EventCleared, events[1].Type)

	_, ok := f.session.Selection()
	assert.False(t, ok)
	assert.Equal(t, sampleEditables-1, f.session.LiveView().Len())

	clean, err := f.session.Serialize()
	require.NoError(t, err)
	assert.NotContains(t, clean, "About")
}

func TestSessionDeclinedDelete(t *testing.T) {
	surface := sandbox.NewMemorySurface()
	s, err := NewSession(SessionOptions{
		Frame:    sandbox.NewFrame("t", surface),
		Renderer: sandbox.NewRenderer(sandbox.Options{MinDelay: -1}),
		Confirmer: ConfirmFunc(func(context.Context, string) (bool, error) {
			return false, nil
		}),
	})
	require.NoError(t, err)
	_, err = s.LoadHTML(context.Background(), "", samplePage)
	require.NoError(t, err)
	assert.Equal(t, "My Website", s.Name())

	events, err := s.Dispatch(context.Background(), IndexMessage(MsgDelete, 3))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, sampleEditables, s.LiveView().Len())
}

func TestSessionToolbarDuplicate(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)

	f.dispatch(t, IndexMessage(MsgDuplicate, 1))
	assert.Equal(t, sampleEditables+1, f.session.LiveView().Len())
	sel, ok := f.session.Selection()
	require.True(t, ok)
	assert.Equal(t, 1, sel.Index)
}

func TestSessionDeselect(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)
	f.dispatch(t, IndexMessage(MsgSelect, 2))

	events := f.dispatch(t, Message{Type: MsgDeselect})
	require.Len(t, events, 1)
	assert.Equal(t, EventCleared, events[0].Type)
	_, ok := f.session.Selection()
	assert.False(t, ok)
}

func TestSessionSaveSerializesCleanMarkup(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)
	f.dispatch(t, IndexMessage(MsgSelect, 4))
	f.dispatch(t, Message{Type: MsgUpdateImage, Value: "https://x/y.png"})
	f.dispatch(t, Message{Type: MsgRename, Name: "New Name"})

	events := f.dispatch(t, Message{Type: MsgSave})
	require.Len(t, events, 1)
	assert.Equal(t, EventWebsite, events[0].Type)
	assert.Equal(t, "New Name", events[0].Name)

	saved := f.backend.lastSave()
	assert.Equal(t, "New Name", saved.Name)
	assert.Contains(t, saved.HTML, `src="https://x/y.png"`)
	for _, artifact := range []string{AttrEditIndex, ClassSelected, ClassToolbar, IDBridgeScript} {
		assert.NotContains(t, saved.HTML, artifact)
	}

	last, _ := f.recorder.Last()
	assert.Equal(t, Notification{Level: LevelSuccess, Kind: KindGeneral, Message: ToastSaved}, last)
}

func TestSessionSaveFailureKeepsEditing(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)
	f.backend.failSave = weberrors.NewPersistenceError("Save failed", nil)

	err := f.session.Save(context.Background())
	assert.True(t, errors.Is(err, weberrors.ErrPersistence))
	assert.Equal(t, sandbox.StateReady, f.session.Frame().State())

	f.dispatch(t, IndexMessage(MsgSelect, 0))
}

func TestSessionPublishNeedsSubscription(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)

	err := f.session.Publish(context.Background())
	require.Error(t, err)
	assert.True(t, weberrors.IsSubscriptionRequired(err))
	last, _ := f.recorder.Last()
	assert.Equal(t, KindUpgrade, last.Kind)

	f.backend.subscribed = true
	events := f.dispatch(t, Message{Type: MsgPublish})
	require.Len(t, events, 1)
	assert.True(t, events[0].Published)
	last, _ = f.recorder.Last()
	assert.Equal(t, ToastPublished, last.Message)
}

func TestSessionCustomDomain(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)
	f.backend.subscribed = true
	ctx := context.Background()

	err := f.session.SetCustomDomain(ctx, "not a domain")
	assert.Error(t, err)
	last, _ := f.recorder.Last()
	assert.Contains(t, last.Message, "Invalid domain format")

	require.NoError(t, f.session.SetCustomDomain(ctx, "Shop.Example.com"))
	status, err := f.session.VerifyDomain(ctx, "shop.example.com")
	require.NoError(t, err)
	assert.True(t, status.IsVerified)
	last, _ = f.recorder.Last()
	assert.Equal(t, ToastDomainVerified, last.Message)
}

func TestSessionAdHocDocumentCannotSave(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.session.LoadHTML(context.Background(), "scratch", "<p>hi</p>")
	require.NoError(t, err)

	err = f.session.Save(context.Background())
	assert.True(t, errors.Is(err, weberrors.ErrPersistence))
}

func TestSessionReloadRaw(t *testing.T) {
	f := newSessionFixture(t)
	f.load(t)
	f.dispatch(t, IndexMessage(MsgSelect, 1))

	events := f.dispatch(t, Message{Type: MsgReloadRaw, HTML: "<html><body><main><p>raw</p></main></body></html>"})
	require.Len(t, events, 2)
	assert.Equal(t, EventCleared, events[1].Type)
	_, ok := f.session.Selection()
	assert.False(t, ok)
	assert.Equal(t, 2, f.session.LiveView().Len())

	_, err := f.session.Dispatch(context.Background(), Message{Type: MsgReloadRaw, HTML: "   "})
	assert.True(t, errors.Is(err, weberrors.ErrEmptyTemplate))
}

func TestSessionSilentSurfaceStillBecomesInteractive(t *testing.T) {
	f := newSessionFixture(t, sandbox.WithSilent())
	out, err := f.session.Load(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, out.TimedOut)
	assert.True(t, out.Ready())

	f.dispatch(t, IndexMessage(MsgSelect, 0))
}

type chanSender struct {
	docs   chan int64
	events chan Event
}

func (c *chanSender) SendDocument(_ context.Context, seq int64, _ string) error {
	c.docs <- seq
	return nil
}

func (c *chanSender) SendEvent(_ context.Context, ev Event) error {
	c.events <- ev
	return nil
}

func TestSessionRemoteSignalsBypassLock(t *testing.T) {
	sender := &chanSender{docs: make(chan int64, 4), events: make(chan Event, 4)}
	confirmer := NewRemoteConfirmer(sender, time.Second)
	s, err := NewSession(SessionOptions{
		Frame:     sandbox.NewFrame("remote", sandbox.NewRemoteSurface(sender)),
		Renderer:  sandbox.NewRenderer(sandbox.Options{MinDelay: -1, Ceiling: 2 * time.Second}),
		Confirmer: confirmer,
	})
	require.NoError(t, err)

	// The browser side: acknowledge documents and approve prompts.
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		for {
			select {
			case <-done:
				return
			case seq := <-sender.docs:
				s.Signal(Message{Type: MsgLoaded, Seq: seq})
			case ev := <-sender.events:
				if ev.Type == EventConfirm {
					_, _ = s.Dispatch(context.Background(), Message{Type: MsgConfirmReply, ID: ev.ID, OK: true})
				}
			}
		}
	}()

	out, err := s.LoadHTML(context.Background(), "remote", samplePage)
	require.NoError(t, err)
	assert.True(t, out.Ready())
	assert.False(t, out.TimedOut)

	events, err := s.Dispatch(context.Background(), IndexMessage(MsgDelete, 1))
	require.NoError(t, err)
	require.NotEmpty(t, events)
	clean, err := s.Serialize()
	require.NoError(t, err)
	assert.False(t, strings.Contains(clean, "Hello"))
}

func TestRemoteConfirmerReplies(t *testing.T) {
	sender := &chanSender{events: make(chan Event, 1)}
	c := NewRemoteConfirmer(sender, 50*time.Millisecond)

	assert.False(t, c.Reply("unknown", true))

	ok, err := c.Confirm(context.Background(), DeletePrompt)
	require.NoError(t, err)
	assert.False(t, ok, "an unanswered prompt is declined")
	ev := <-sender.events
	assert.Equal(t, DeletePrompt, ev.Prompt)
	assert.False(t, c.Reply(ev.ID, true), "expired prompts cannot be answered")
}
