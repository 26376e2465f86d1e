package domain

// OutgoingEvent is a committed action fanned out to every live session.
// It is a closed union: NewMessageEvent or DeleteEvent.
type OutgoingEvent interface{ isOutgoingEvent() }

// NewMessageEvent announces a freshly appended message.
type NewMessageEvent struct {
	Message ChatMessage
}

func (NewMessageEvent) isOutgoingEvent() {}

// DeleteEvent announces that a message was removed from the log.
type DeleteEvent struct {
	MessageID int
}

func (DeleteEvent) isOutgoingEvent() {}
