package domain

// Event types delivered over the realtime transport.
const (
	EventOTRMessageAdd  = "conversation.otr-message-add"
	EventUserConnection = "user.connection"
)

// Connection states used in user.connection events.
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
)

// Event is a single notification from the realtime transport.
type Event struct {
	Type         string         `json:"type"`
	Conversation ConversationID `json:"conversation,omitempty"`
	From         UserID         `json:"from,omitempty"`
	Data         *EventData     `json:"data,omitempty"`
	Connection   *Connection    `json:"connection,omitempty"`
}

// EventData carries the payload of a message event. Text holds the
// transport-encoded ciphertext; an empty Text means the ciphertext is
// missing.
type EventData struct {
	Sender DeviceID `json:"sender"`
	Text   string   `json:"text"`
}

// Connection describes a connection request between two users.
type Connection struct {
	From   UserID `json:"from"`
	To     UserID `json:"to"`
	Status string `json:"status"`
}
