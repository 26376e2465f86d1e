package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ChafterInnovations/Kutter/internal/domain"
)

// inboundFrame is the envelope of every client action.
type inboundFrame struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type newMessagePayload struct {
	Body string `json:"body"`
}

type deleteMessagePayload struct {
	ID int `json:"id"`
}

// newMessageFrame is the broadcast shape of a committed message.
type newMessageFrame struct {
	Action     string    `json:"action"`
	ID         int       `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// deleteFrame is the broadcast shape of a committed delete.
type deleteFrame struct {
	Action    string `json:"action"`
	MessageID int    `json:"message_id"`
}

// errorFrame is sent to a single session only, never broadcast.
type errorFrame struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// encodeEvent serializes a bus event into its wire frame.
func encodeEvent(event domain.OutgoingEvent) ([]byte, error) {
	switch e := event.(type) {
	case domain.NewMessageEvent:
		return json.Marshal(newMessageFrame{
			Action:     "new_message",
			ID:         e.Message.ID,
			AuthorID:   e.Message.AuthorID,
			AuthorName: e.Message.AuthorName,
			Body:       e.Message.Body,
			Timestamp:  e.Message.Timestamp,
		})
	case domain.DeleteEvent:
		return json.Marshal(deleteFrame{
			Action:    "delete",
			MessageID: e.MessageID,
		})
	default:
		return nil, fmt.Errorf("unknown outgoing event type %T", event)
	}
}

// encodeError serializes a per-session error frame.
func encodeError(message string) []byte {
	data, _ := json.Marshal(errorFrame{Status: "error", Message: message})
	return data
}
