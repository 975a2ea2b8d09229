// Package gateway defines the messaging-gateway collaborator boundary: the
// outbound calls the core needs (send, thread creation, forwarding,
// reactions) and the typed inbound updates it consumes. Transport framing
// lives behind this interface.
package gateway

import "context"

// Button is a single inline action control.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline buttons attached to an outbound message.
type Keyboard struct {
	Rows [][]Button
}

// Row appends a row of buttons and returns the keyboard for chaining.
func (k *Keyboard) Row(buttons ...Button) *Keyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// AttachmentKind mirrors domain.MessageType for media payloads.
type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
	AttachmentVoice    AttachmentKind = "voice"
	AttachmentAudio    AttachmentKind = "audio"
)

// UpdateKind discriminates inbound updates.
type UpdateKind string

const (
	UpdateText       UpdateKind = "text"
	UpdateAttachment UpdateKind = "attachment"
	UpdateButton     UpdateKind = "button"
	UpdateCommand    UpdateKind = "command"
)

// AttachmentRef is an opaque handle to an uploaded file.
type AttachmentRef struct {
	Kind    AttachmentKind
	FileID  string
	Caption string
}

// Update is one inbound event from the gateway, already classified and
// tagged with sender and chat identity. ThreadID is zero for private chats.
type Update struct {
	Kind        UpdateKind
	UserID      int64
	Username    string
	DisplayName string
	ChatID      int64
	ThreadID    int64
	MessageID   int64
	Text        string
	Attachment  *AttachmentRef

	// Button-press fields.
	CallbackID string
	Data       string

	// Command fields (e.g. /start with a deep-link argument).
	Command    string
	CommandArg string
}

// Gateway is the outbound surface the core requires from the messaging
// transport. Implementations must be safe for concurrent use.
type Gateway interface {
	// SendMessage delivers text (with optional inline keyboard) to a chat.
	// threadID zero targets the chat root.
	SendMessage(ctx context.Context, chatID, threadID int64, text string, kb *Keyboard) (int64, error)
	// SendAttachment delivers a stored file by its opaque handle.
	SendAttachment(ctx context.Context, chatID, threadID int64, att AttachmentRef) error
	// CreateThread opens a named sub-thread under the given channel and
	// returns its id.
	CreateThread(ctx context.Context, chatID int64, name string) (int64, error)
	// ForwardMessage relays an existing message by reference.
	ForwardMessage(ctx context.Context, toChatID, threadID, fromChatID, messageID int64) error
	// React marks a message with an emoji. Failures are non-critical.
	React(ctx context.Context, chatID, messageID int64, emoji string) error
	// AnswerButton acknowledges a button press, optionally with an alert.
	AnswerButton(ctx context.Context, callbackID, text string, alert bool) error
}
