package editor

import (
	"context"
	"sync"

	weberrors "github.com/conneroisu/webgen/internal/errors"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification kinds. KindUpgrade asks the host to offer the upgrade flow.
const (
	KindGeneral = "general"
	KindUpgrade = "upgrade"
)

// Notification is a transient message shown to the user.
type Notification struct {
	Level   string `json:"level"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Notifier shows notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}

// toastAdapter turns handled errors into notifications.
type toastAdapter struct {
	notifier Notifier
}

// NotifyError implements weberrors.Notifier.
func (t toastAdapter) NotifyError(ctx context.Context, err *weberrors.SiteError) error {
	t.notifier.Notify(ctx, ErrorNotification(err))
	return nil
}

// ErrorNotification maps an error onto the toast shown for it.
// Subscription errors are distinct so the host can redirect to upgrade.
func ErrorNotification(err *weberrors.SiteError) Notification {
	n := Notification{
		Level:   LevelError,
		Kind:    KindGeneral,
		Message: err.Message,
		Code:    err.Code,
	}
	switch {
	case err.Type == weberrors.ErrorTypeSubscription:
		n.Level, n.Kind = LevelWarning, KindUpgrade
	case err.Code == weberrors.ErrCodeNoSelection, err.Code == weberrors.ErrCodeNotReady:
		n.Level = LevelWarning
	}
	if n.Message == "" {
		n.Message = err.Error()
	}
	return n
}

// Recorder collects notifications. It is safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	r.all = append(r.all, n)
	r.mu.Unlock()
}

// Notifications returns everything recorded so far.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Last returns the latest notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Notification{}, false
	}
	return r.all[len(r.all)-1], true
}
