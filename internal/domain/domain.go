// Package domain holds the core types and contracts of the chat backend:
// messages, identities, outgoing events, and the repository interfaces
// implemented by the database layer and consumed by the session layer.
package domain

import (
	"context"
	"time"
)

// ChatMessage is one committed chat message. ID and Timestamp are
// assigned by the store at commit time; AuthorID and AuthorName are
// captured from the authenticated identity of the committing session,
// never from the client payload.
type ChatMessage struct {
	ID         int       `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// Identity is the authenticated caller extracted from the session
// credential at upgrade time. Immutable for the session's lifetime.
type Identity struct {
	AuthorID   string
	AuthorName string
	Expiry     time.Time
}

// MessageStore is the durable log of chat messages. It is the sole
// source of message ids and timestamps.
type MessageStore interface {
	// Append commits a new message and returns the fully populated row.
	// Fails with ErrEmptyBody on blank input and ErrAuthorNotRegistered
	// when authorID has no users row.
	Append(ctx context.Context, authorID, authorName, body string) (*ChatMessage, error)

	// GetByID returns the message or ErrMessageNotFound.
	GetByID(ctx context.Context, id int) (*ChatMessage, error)

	// DeleteByID removes the message and reports whether a row existed.
	DeleteByID(ctx context.Context, id int) (bool, error)

	// ListAll returns every message ordered by timestamp descending.
	ListAll(ctx context.Context) ([]ChatMessage, error)
}

// User is a registered account. The email doubles as the stable author
// identifier carried on messages.
type User struct {
	Email        string
	Username     string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
}

// UserRepository persists accounts for the registration/login surface.
type UserRepository interface {
	Create(ctx context.Context, email, username, passwordHash string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	MarkVerified(ctx context.Context, email string) error
}
