package domain

import "time"

// MessageDirection records which side of the conversation authored a message.
type MessageDirection string

const (
	DirectionClient   MessageDirection = "client"
	DirectionOperator MessageDirection = "operator"
	DirectionSystem   MessageDirection = "system"
)

// MessageType enumerates supported message payload kinds.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypePhoto    MessageType = "photo"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeVoice    MessageType = "voice"
	MessageTypeAudio    MessageType = "audio"
)

// Message is an append-only log entry attached to a ticket. Messages are
// never updated or deleted.
type Message struct {
	ID               int64
	TicketID         int64
	Direction        MessageDirection
	GatewayMessageID int64
	Type             MessageType
	Content          string
	FileID           string
	AuthorUserID     int64
	CreatedAt        time.Time
}
