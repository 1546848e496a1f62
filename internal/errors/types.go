// Package errors defines the structured error taxonomy shared by the
// compositor, the sandboxed renderer, the editor bridge and the backend
// clients. Every error carries a type, a stable code and a recoverability
// flag so that the host can decide between an error panel, a transient
// notification or an upgrade redirect.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeRender       ErrorType = "render"
	ErrorTypeEditor       ErrorType = "editor"
	ErrorTypePersistence  ErrorType = "persistence"
	ErrorTypeSubscription ErrorType = "subscription"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeInternal     ErrorType = "internal"
)

// Error codes.
const (
	ErrCodeEmptyTemplate        = "EMPTY_TEMPLATE"
	ErrCodeInvalidTemplate      = "INVALID_TEMPLATE"
	ErrCodeSandboxAccess        = "SANDBOX_ACCESS"
	ErrCodeRenderTimeout        = "RENDER_TIMEOUT"
	ErrCodeRenderFailed         = "RENDER_FAILED"
	ErrCodeNoSelection          = "NO_SELECTION"
	ErrCodeNotApplicable        = "NOT_APPLICABLE"
	ErrCodeNotReady             = "NOT_READY"
	ErrCodeInvalidMessage       = "INVALID_MESSAGE"
	ErrCodePersistence          = "PERSISTENCE"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeSubscriptionRequired = "SUBSCRIPTION_REQUIRED"
	ErrCodeConfigInvalid        = "CONFIG_INVALID"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeInternal             = "INTERNAL"
	ErrCodeIO                   = "IO"
)

// SiteError is a structured error type with context.
type SiteError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison. Two site errors match when they share
// type and code, so sentinel values like ErrNoSelection work with errors.Is.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SiteError) WithContext(key string, value interface{}) *SiteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *SiteError) WithComponent(component string) *SiteError {
	e.Component = component

	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrEmptyTemplate        = &SiteError{Type: ErrorTypeValidation, Code: ErrCodeEmptyTemplate}
	ErrInvalidTemplate      = &SiteError{Type: ErrorTypeValidation, Code: ErrCodeInvalidTemplate}
	ErrSandboxAccess        = &SiteError{Type: ErrorTypeRender, Code: ErrCodeSandboxAccess}
	ErrRenderTimeout        = &SiteError{Type: ErrorTypeRender, Code: ErrCodeRenderTimeout}
	ErrRenderFailed         = &SiteError{Type: ErrorTypeRender, Code: ErrCodeRenderFailed}
	ErrNoSelection          = &SiteError{Type: ErrorTypeEditor, Code: ErrCodeNoSelection}
	ErrNotApplicable        = &SiteError{Type: ErrorTypeEditor, Code: ErrCodeNotApplicable}
	ErrNotReady             = &SiteError{Type: ErrorTypeEditor, Code: ErrCodeNotReady}
	ErrInvalidMessage       = &SiteError{Type: ErrorTypeValidation, Code: ErrCodeInvalidMessage}
	ErrPersistence          = &SiteError{Type: ErrorTypePersistence, Code: ErrCodePersistence}
	ErrNotFound             = &SiteError{Type: ErrorTypePersistence, Code: ErrCodeNotFound}
	ErrSubscriptionRequired = &SiteError{Type: ErrorTypeSubscription, Code: ErrCodeSubscriptionRequired}
)

// Error creation functions

// NewEmptyTemplateError reports a composition attempt without html.
func NewEmptyTemplateError() *SiteError {
	return &SiteError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeEmptyTemplate,
		Message:     "template HTML is empty",
		Recoverable: true,
	}
}

// NewInvalidTemplateError reports a template payload with no usable shape.
func NewInvalidTemplateError(message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeInvalidTemplate,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewSandboxAccessError reports that the isolated document could not be reached.
func NewSandboxAccessError(message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeRender,
		Code:        ErrCodeSandboxAccess,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewRenderTimeoutError reports a render that never signalled. It is
// recovered by forcing the ready state.
func NewRenderTimeoutError(message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeRender,
		Code:        ErrCodeRenderTimeout,
		Message:     message,
		Recoverable: true,
	}
}

// NewRenderError reports a load failure signalled by the surface.
func NewRenderError(message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeRender,
		Code:        ErrCodeRenderFailed,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewNoSelectionError reports a mutation without a selected element.
func NewNoSelectionError(operation string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeEditor,
		Code:        ErrCodeNoSelection,
		Message:     operation + ": no element selected",
		Recoverable: true,
	}
}

// NewNotApplicableError reports a mutation that does not fit the element type.
func NewNotApplicableError(operation, tag string) *SiteError {
	return (&SiteError{
		Type:        ErrorTypeEditor,
		Code:        ErrCodeNotApplicable,
		Message:     fmt.Sprintf("%s does not apply to <%s>", operation, tag),
		Recoverable: true,
	}).WithContext("tag", tag)
}

// NewNotReadyError reports interaction before the live view is ready.
func NewNotReadyError(state string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeEditor,
		Code:        ErrCodeNotReady,
		Message:     "document is not ready for interaction (state " + state + ")",
		Recoverable: true,
	}
}

// NewInvalidMessageError reports a malformed cross-boundary message.
func NewInvalidMessageError(message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeInvalidMessage,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewPersistenceError reports a failed save, publish or fetch call.
func NewPersistenceError(message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypePersistence,
		Code:        ErrCodePersistence,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewNotFoundError reports a missing website, template or slug.
func NewNotFoundError(kind, id string) *SiteError {
	return (&SiteError{
		Type:        ErrorTypePersistence,
		Code:        ErrCodeNotFound,
		Message:     kind + " not found: " + id,
		Recoverable: true,
	}).WithContext("id", id)
}

// NewSubscriptionRequiredError reports a backend rejection that needs an
// active subscription. The host redirects to the upgrade flow.
func NewSubscriptionRequiredError(message string) *SiteError {
	if message == "" {
		message = "an active subscription is required"
	}
	return &SiteError{
		Type:        ErrorTypeSubscription,
		Code:        ErrCodeSubscriptionRequired,
		Message:     message,
		Recoverable: true,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsSubscriptionRequired reports whether err asks for an upgrade.
func IsSubscriptionRequired(err error) bool {
	return errors.Is(err, ErrSubscriptionRequired)
}

// IsRenderError checks if an error came from composition or rendering.
func IsRenderError(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeRender || se.Code == ErrCodeEmptyTemplate ||
			se.Code == ErrCodeInvalidTemplate
	}

	return false
}

// CodeOf returns the code of the outermost SiteError in err's chain.
func CodeOf(err error) string {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Code
	}

	return ""
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger   Logger
	notifier Notifier
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// Notifier interface for error notifications.
type Notifier interface {
	NotifyError(ctx context.Context, err *SiteError) error
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger, notifier Notifier) *ErrorHandler {
	return &ErrorHandler{
		logger:   logger,
		notifier: notifier,
	}
}

// Handle processes an error with appropriate logging and notifications.
// Recoverable site errors are logged as warnings and surfaced to the user;
// everything else is logged as an error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var se *SiteError
	if errors.As(err, &se) {
		h.handleSiteError(ctx, se)
	} else {
		h.handleGenericError(ctx, err)
	}
}

func (h *ErrorHandler) handleSiteError(ctx context.Context, err *SiteError) {
	if h.logger != nil {
		if err.Recoverable {
			h.logger.Warn(ctx, err, "Recoverable error",
				"type", err.Type,
				"code", err.Code,
				"component", err.Component)
		} else {
			h.logger.Error(ctx, err, "Error occurred",
				"type", err.Type,
				"code", err.Code,
				"component", err.Component)
		}
	}
	if h.notifier != nil {
		_ = h.notifier.NotifyError(ctx, err)
	}
}

func (h *ErrorHandler) handleGenericError(ctx context.Context, err error) {
	if h.logger != nil {
		h.logger.Error(ctx, err, "Unhandled error occurred")
	}
	if h.notifier != nil {
		_ = h.notifier.NotifyError(ctx, NewInternalError(ErrCodeInternal, "unexpected error", err))
	}
}
