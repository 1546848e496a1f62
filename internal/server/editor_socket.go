package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/conneroisu/webgen/internal/editor"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/logging"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/go-chi/chi/v5"
)

const (
	// Code-view reloads carry whole documents.
	maxEditorMessage = 4 << 20

	// Messages waiting for the session while it works on an earlier one.
	editorQueue = 64
)

// editorConn is the browser end of one editing session. It delivers both
// frame documents and host events.
type editorConn struct {
	conn   *websocket.Conn
	logger logging.Logger
}

// SendEvent implements editor.EventSender.
func (c *editorConn) SendEvent(ctx context.Context, ev editor.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return weberrors.NewInternalError(weberrors.ErrCodeInternal, "encode event", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// SendDocument implements sandbox.DocumentSender.
func (c *editorConn) SendDocument(ctx context.Context, seq int64, doc string) error {
	return c.SendEvent(ctx, editor.Event{Type: editor.EventDocument, Seq: seq, HTML: doc})
}

func (c *editorConn) sendAll(ctx context.Context, events []editor.Event) {
	for _, ev := range events {
		if err := c.SendEvent(ctx, ev); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn(ctx, err, "Failed to send event", "type", ev.Type)
			}
			return
		}
	}
}

// handleEditorSocket runs one editing session per connection. Render
// signals and confirmation replies are routed inline by the read loop;
// everything else is queued for the session worker, which may be blocked
// waiting for exactly those signals.
func (s *Server) handleEditorSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}
	websiteID := chi.URLParam(r, "websiteID")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		s.logger.Warn(r.Context(), err, "Editor socket upgrade failed")
		return
	}
	conn.SetReadLimit(maxEditorMessage)
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.lifetime, cancel)
	defer stop()

	logger := s.logger.With("website", websiteID)
	ec := &editorConn{conn: conn, logger: logger}
	session, err := editor.NewSession(editor.SessionOptions{
		Backend:    s.backend,
		Frame:      sandbox.NewFrame(websiteID, sandbox.NewRemoteSurface(ec)),
		Renderer:   s.renderer,
		Compositor: s.compositor,
		Confirmer:  editor.NewRemoteConfirmer(ec, s.config.Editor.ConfirmTimeout),
		Notifier: editor.NotifierFunc(func(ctx context.Context, n editor.Notification) {
			if err := ec.SendEvent(ctx, editor.Event{Type: editor.EventToast, Notification: &n}); err != nil && ctx.Err() == nil {
				logger.Warn(ctx, err, "Failed to send toast")
			}
		}),
		Logger: logger,
	})
	if err != nil {
		logger.Error(ctx, err, "Failed to start editing session")
		conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	logger.Info(ctx, "Editing session opened", "session", session.ID())

	queue := make(chan editor.Message, editorQueue)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.runSession(ctx, session, ec, websiteID, queue)
	}()

	s.readEditor(ctx, session, ec, queue)
	cancel()
	<-done
	logger.Info(context.Background(), "Editing session closed", "session", session.ID())
}

func (s *Server) readEditor(ctx context.Context, session *editor.Session, ec *editorConn, queue chan<- editor.Message) {
	for {
		_, data, err := ec.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				ec.logger.Debug(ctx, "Editor socket closed", "error", err.Error())
			}
			return
		}

		m, err := editor.DecodeMessage(data)
		if err != nil {
			var se *weberrors.SiteError
			if errors.As(err, &se) {
				n := editor.ErrorNotification(se)
				ec.sendAll(ctx, []editor.Event{{Type: editor.EventToast, Notification: &n}})
			}
			continue
		}

		switch {
		case m.IsRenderSignal():
			session.Signal(m)
			continue
		case m.Type == editor.MsgConfirmReply:
			session.Reply(m)
			continue
		}

		select {
		case queue <- m:
		case <-ctx.Done():
			return
		}
	}
}

// runSession loads the website and then applies queued messages one at a
// time. A changed model is followed by its clean markup for the code view.
func (s *Server) runSession(ctx context.Context, session *editor.Session, ec *editorConn, websiteID string, queue <-chan editor.Message) {
	if _, err := session.Load(ctx, websiteID); err != nil {
		ec.logger.Warn(ctx, err, "Website failed to load")
	}
	ec.sendAll(ctx, session.Overview())

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-queue:
			events, err := session.Dispatch(ctx, m)
			ec.sendAll(ctx, events)
			if err == nil && rendered(events) {
				if markup, err := session.Serialize(); err == nil {
					ec.sendAll(ctx, []editor.Event{{Type: editor.EventRawSource, HTML: markup}})
				}
			}
		}
	}
}

// rendered reports whether events carry a new render, which every model
// change produces.
func rendered(events []editor.Event) bool {
	for _, ev := range events {
		if ev.Type == editor.EventState {
			return true
		}
	}
	return false
}
