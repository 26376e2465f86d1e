// Package chat runs one session actor per connected client: it owns the
// websocket, dispatches inbound action frames against the message
// store, publishes committed events to the bus, and pumps bus events
// back out to its own client. Sessions never write to each other
// directly; all cross-session delivery goes through the bus.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/ChafterInnovations/Kutter/internal/bus"
	"github.com/ChafterInnovations/Kutter/internal/domain"
	"github.com/ChafterInnovations/Kutter/internal/logging"
	"github.com/ChafterInnovations/Kutter/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	storeTimeout      = 5 * time.Second
	messageBufferSize = 16
)

// Session is the per-connection actor. Created after a successful
// upgrade, destroyed on the first of: client close, send error,
// inbound stream end, or bus lag.
type Session struct {
	identity domain.Identity
	conn     *websocket.Conn
	store    domain.MessageStore
	bus      *bus.Bus
	clock    clockwork.Clock

	sendCh chan []byte
	cancel context.CancelFunc
	log    *slog.Logger
}

// NewSession wraps an upgraded connection. Run must be called to start
// the actor.
func NewSession(conn *websocket.Conn, identity domain.Identity, store domain.MessageStore, b *bus.Bus, clock clockwork.Clock) *Session {
	return &Session{
		identity: identity,
		conn:     conn,
		store:    store,
		bus:      b,
		clock:    clock,
		sendCh:   make(chan []byte, messageBufferSize),
		log:      logging.WithAuthor(identity.AuthorID),
	}
}

// Run drives the session until it closes. It subscribes to the bus,
// starts the writer and the outbound pump, and runs the inbound
// dispatcher on the calling goroutine. Run returns when the session is
// fully torn down.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	// The credential is checked once at upgrade; the session ends when
	// the token would have expired.
	if !s.identity.Expiry.IsZero() {
		expiry := s.clock.AfterFunc(s.identity.Expiry.Sub(s.clock.Now()), cancel)
		defer expiry.Stop()
	}

	sub := s.bus.Subscribe()
	defer sub.Close()

	metrics.ConnectedClients.Inc()
	defer metrics.ConnectedClients.Dec()

	s.configurePongHandler()

	writerDone := make(chan struct{})
	go s.writer(ctx, writerDone)
	go s.pump(ctx, sub)

	// Closing the connection is what unblocks the inbound read loop
	// when the writer or pump decides the session is over.
	go func() {
		<-ctx.Done()
		<-writerDone
		_ = s.conn.Close()
	}()

	s.dispatch(ctx)

	cancel()
	<-writerDone
	_ = s.conn.Close()
	s.log.Info("Session closed")
}

// writer is the only goroutine that touches the connection's write
// side. It drains sendCh, keeps the peer alive with pings, and sends a
// close frame on the way out.
func (s *Session) writer(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.sendCh:
			start := s.clock.Now()
			_ = s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug("Send failed, closing session", "error", err)
				s.cancel()
				return
			}
			metrics.MessageSendDuration.Observe(s.clock.Since(start).Seconds())
		case <-ticker.Chan():
			_ = s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		case <-ctx.Done():
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
			_ = s.conn.WriteMessage(websocket.CloseMessage, closeMsg)
			return
		}
	}
}

// pump forwards bus events to this session's client. A lagged
// subscription is fatal: the client gets one error frame and must
// reconnect and re-fetch history.
func (s *Session) pump(ctx context.Context, sub *bus.Subscription) {
	for {
		event, err := sub.Recv(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrLagged) {
				s.log.Warn("Subscription lagged, disconnecting client")
				s.enqueue(ctx, encodeError("lagged"))
			}
			s.cancel()
			return
		}

		data, err := encodeEvent(event)
		if err != nil {
			s.log.Error("Failed to encode event", "error", err)
			continue
		}
		if !s.enqueue(ctx, data) {
			return
		}
	}
}

// enqueue hands a frame to the writer, giving up when the session is
// shutting down. Reports whether the frame was accepted.
func (s *Session) enqueue(ctx context.Context, data []byte) bool {
	select {
	case s.sendCh <- data:
		return true
	case <-ctx.Done():
		return false
	}
}

// dispatch is the inbound half: it reads client frames and handles
// actions until the stream ends. Malformed frames are dropped without
// closing the session; unknown actions are logged and ignored.
func (s *Session) dispatch(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Unexpected close", "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Action == "" {
			continue
		}

		switch frame.Action {
		case "new_message":
			s.handleNewMessage(ctx, frame.Payload)
		case "delete_message":
			s.handleDeleteMessage(ctx, frame.Payload)
		default:
			s.log.Info("Unknown action ignored", "action", frame.Action)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// handleNewMessage commits the body under the session's authenticated
// identity and broadcasts the stored row. The client payload never
// contributes id, author, or timestamp.
func (s *Session) handleNewMessage(ctx context.Context, payload json.RawMessage) {
	var p newMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	saved, err := s.store.Append(opCtx, s.identity.AuthorID, s.identity.AuthorName, p.Body)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyBody) {
			return
		}
		s.log.Error("Failed to save message", "error", err)
		s.enqueue(ctx, encodeError("Failed to save message"))
		return
	}

	s.bus.Publish(domain.NewMessageEvent{Message: *saved})
}

// handleDeleteMessage authorizes against the stored author, never the
// client payload, then deletes and broadcasts.
func (s *Session) handleDeleteMessage(ctx context.Context, payload json.RawMessage) {
	var p deleteMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	msg, err := s.store.GetByID(opCtx, p.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			s.enqueue(ctx, encodeError("Message not found"))
			return
		}
		s.log.Error("Failed to fetch message", "id", p.ID, "error", err)
		s.enqueue(ctx, encodeError("Failed to delete message"))
		return
	}

	if msg.AuthorID != s.identity.AuthorID {
		s.enqueue(ctx, encodeError("You can only delete your own messages"))
		return
	}

	deleted, err := s.store.DeleteByID(opCtx, p.ID)
	if err != nil {
		s.log.Error("Failed to delete message", "id", p.ID, "error", err)
		s.enqueue(ctx, encodeError("Failed to delete message"))
		return
	}
	if !deleted {
		s.enqueue(ctx, encodeError("Message not found"))
		return
	}

	s.bus.Publish(domain.DeleteEvent{MessageID: p.ID})
}

func (s *Session) configurePongHandler() {
	_ = s.conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
	})
}
