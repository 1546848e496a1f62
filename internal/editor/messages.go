package editor

import (
	"bytes"
	"encoding/json"
	"fmt"

	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/sandbox"
)

// MessageType tags a message crossing the sandbox boundary.
type MessageType string

// Toolbar actions raised inside the frame.
const (
	MsgEdit      MessageType = "edit"
	MsgDelete    MessageType = "delete"
	MsgDuplicate MessageType = "duplicate"
)

// Pointer events raised inside the frame.
const (
	MsgHover  MessageType = "hover"
	MsgLeave  MessageType = "leave"
	MsgSelect MessageType = "select"
)

// Render signals reported by the host page.
const (
	MsgLoaded    MessageType = "loaded"
	MsgLoadError MessageType = "load_error"
)

// Host commands from the editor panel.
const (
	MsgUpdateText   MessageType = "update_text"
	MsgUpdateStyle  MessageType = "update_style"
	MsgUpdateImage  MessageType = "update_image"
	MsgUpdateLink   MessageType = "update_link"
	MsgDeselect     MessageType = "deselect"
	MsgSave         MessageType = "save"
	MsgPublish      MessageType = "publish"
	MsgRename       MessageType = "rename"
	MsgReloadRaw    MessageType = "reload_raw"
	MsgSetDomain    MessageType = "set_domain"
	MsgVerifyDomain MessageType = "verify_domain"
	MsgRetry        MessageType = "retry"
	MsgConfirmReply MessageType = "confirm_reply"
)

// Message is the tagged union exchanged with the browser. Which fields are
// meaningful depends on Type; Validate enforces it.
type Message struct {
	Type     MessageType            `json:"type"`
	Source   string                 `json:"source,omitempty"`
	Index    *int                   `json:"index,omitempty"`
	Seq      int64                  `json:"seq,omitempty"`
	Style    *sandbox.ComputedStyle `json:"style,omitempty"`
	Property string                 `json:"property,omitempty"`
	Value    string                 `json:"value,omitempty"`
	HTML     string                 `json:"html,omitempty"`
	Name     string                 `json:"name,omitempty"`
	Domain   string                 `json:"domain,omitempty"`
	Error    string                 `json:"error,omitempty"`
	ID       string                 `json:"id,omitempty"`
	OK       bool                   `json:"ok,omitempty"`
}

// IndexMessage builds a pointer or toolbar message for element i.
func IndexMessage(t MessageType, i int) Message {
	return Message{Type: t, Index: &i}
}

// IsRenderSignal reports messages that complete a render cycle. They are
// handled without waiting for the session.
func (m Message) IsRenderSignal() bool {
	return m.Type == MsgLoaded || m.Type == MsgLoadError
}

// DecodeMessage parses and validates a message. Unknown types, unknown
// fields and missing required fields are rejected.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return Message{}, weberrors.NewInvalidMessageError("malformed message", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks that the fields required by the message type are set.
func (m Message) Validate() error {
	switch m.Type {
	case MsgEdit, MsgDelete, MsgDuplicate, MsgHover, MsgLeave, MsgSelect:
		if m.Index == nil {
			return invalid(m.Type, "index is required")
		}
		if *m.Index < 0 {
			return invalid(m.Type, "index must not be negative")
		}
	case MsgLoaded, MsgLoadError:
		if m.Seq <= 0 {
			return invalid(m.Type, "seq is required")
		}
	case MsgUpdateStyle:
		if m.Property == "" {
			return invalid(m.Type, "property is required")
		}
	case MsgUpdateImage, MsgUpdateLink:
		if m.Value == "" {
			return invalid(m.Type, "value is required")
		}
	case MsgReloadRaw:
		if m.HTML == "" {
			return invalid(m.Type, "html is required")
		}
	case MsgSetDomain, MsgVerifyDomain:
		if m.Domain == "" {
			return invalid(m.Type, "domain is required")
		}
	case MsgConfirmReply:
		if m.ID == "" {
			return invalid(m.Type, "id is required")
		}
	case MsgUpdateText, MsgDeselect, MsgSave, MsgPublish, MsgRename, MsgRetry:
	case "":
		return weberrors.NewInvalidMessageError("message type is required", nil)
	default:
		return weberrors.NewInvalidMessageError(fmt.Sprintf("unknown message type %q", m.Type), nil)
	}
	return nil
}

func invalid(t MessageType, reason string) error {
	return weberrors.NewInvalidMessageError(fmt.Sprintf("%s: %s", t, reason), nil)
}

// EventType tags a message sent from the host to the browser.
type EventType string

const (
	EventDocument  EventType = "document"
	EventState     EventType = "state"
	EventSnapshot  EventType = "snapshot"
	EventEdit      EventType = "edit"
	EventCleared   EventType = "selection_cleared"
	EventToast     EventType = "toast"
	EventConfirm   EventType = "confirm"
	EventWebsite   EventType = "website"
	EventRawSource EventType = "raw_source"
)

// Event is a host-to-browser message.
type Event struct {
	Type         EventType     `json:"type"`
	Seq          int64         `json:"seq,omitempty"`
	HTML         string        `json:"html,omitempty"`
	State        string        `json:"state,omitempty"`
	Error        string        `json:"error,omitempty"`
	Snapshot     *Snapshot     `json:"snapshot,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	ID           string        `json:"id,omitempty"`
	Prompt       string        `json:"prompt,omitempty"`
	Name         string        `json:"name,omitempty"`
	Slug         string        `json:"slug,omitempty"`
	Published    bool          `json:"published,omitempty"`
}
