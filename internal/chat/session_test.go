package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChafterInnovations/Kutter/internal/bus"
	"github.com/ChafterInnovations/Kutter/internal/domain"
)

// testChat stands up a bus, an in-memory store, and an HTTP server that
// upgrades connections and runs a session actor per client. The author
// identity comes from query params, standing in for the verified token.
func testChat(t *testing.T) (*memoryStore, *bus.Bus, func(authorID, authorName string) *ws.Conn) {
	t.Helper()

	store := newMemoryStore()
	b := bus.New(bus.DefaultCapacity)
	t.Cleanup(b.Shutdown)

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		identity := domain.Identity{
			AuthorID:   r.URL.Query().Get("author"),
			AuthorName: r.URL.Query().Get("name"),
		}
		session := NewSession(conn, identity, store, b, clockwork.NewRealClock())
		session.Run(r.Context())
	}))
	t.Cleanup(server.Close)

	dial := func(authorID, authorName string) *ws.Conn {
		t.Helper()
		query := neturl.Values{"author": {authorID}, "name": {authorName}}
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?" + query.Encode()
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return store, b, dial
}

// waitForSubscribers polls until the bus has the expected number of
// live subscriptions.
func waitForSubscribers(t *testing.T, b *bus.Bus, expected int) {
	t.Helper()
	for range 1000 {
		if b.SubscriberCount() == expected {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, have %d", expected, b.SubscriberCount())
}

func sendAction(t *testing.T, conn *ws.Conn, action string, payload any) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"action": action, "payload": payload})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))
}

func readFrame(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

// expectSilence asserts that no frame arrives within the window.
func expectSilence(t *testing.T, conn *ws.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}

func TestSession_EchoesOwnMessage(t *testing.T) {
	store, b, dial := testChat(t)
	conn := dial("u1", "User One")
	waitForSubscribers(t, b, 1)

	sendAction(t, conn, "new_message", map[string]any{"body": "hello"})

	frame := readFrame(t, conn)
	assert.Equal(t, "new_message", frame["action"])
	assert.Equal(t, "u1", frame["authorId"])
	assert.Equal(t, "User One", frame["authorName"])
	assert.Equal(t, "hello", frame["body"])
	assert.Equal(t, float64(1), frame["id"])
	assert.NotEmpty(t, frame["timestamp"])

	messages, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Body)
}

func TestSession_IdentityComesFromSessionNotPayload(t *testing.T) {
	_, b, dial := testChat(t)
	conn := dial("u1", "User One")
	waitForSubscribers(t, b, 1)

	// Spoofed fields in the payload must be ignored.
	data, err := json.Marshal(map[string]any{
		"action": "new_message",
		"payload": map[string]any{
			"body":       "spoofed",
			"authorId":   "someone-else",
			"authorName": "Mallory",
			"id":         999,
		},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))

	frame := readFrame(t, conn)
	assert.Equal(t, "u1", frame["authorId"])
	assert.Equal(t, "User One", frame["authorName"])
	assert.Equal(t, float64(1), frame["id"])
}

func TestSession_FanOutPreservesOrder(t *testing.T) {
	_, b, dial := testChat(t)
	conn1 := dial("u1", "User One")
	conn2 := dial("u2", "User Two")
	waitForSubscribers(t, b, 2)

	sendAction(t, conn1, "new_message", map[string]any{"body": "a"})

	frameA1 := readFrame(t, conn1)
	frameA2 := readFrame(t, conn2)
	assert.Equal(t, "a", frameA1["body"])
	assert.Equal(t, "a", frameA2["body"])

	sendAction(t, conn2, "new_message", map[string]any{"body": "b"})

	frameB1 := readFrame(t, conn1)
	frameB2 := readFrame(t, conn2)
	assert.Equal(t, "b", frameB1["body"])
	assert.Equal(t, "b", frameB2["body"])

	// Store-assigned ids are consecutive across sessions.
	assert.Equal(t, frameA1["id"].(float64)+1, frameB1["id"])
	assert.Equal(t, frameA1["id"], frameA2["id"])
	assert.Equal(t, frameB1["id"], frameB2["id"])
}

func TestSession_ForbiddenDelete(t *testing.T) {
	store, b, dial := testChat(t)
	conn1 := dial("u1", "User One")
	conn2 := dial("u2", "User Two")
	waitForSubscribers(t, b, 2)

	sendAction(t, conn1, "new_message", map[string]any{"body": "mine"})
	frame := readFrame(t, conn1)
	_ = readFrame(t, conn2)
	id := int(frame["id"].(float64))

	sendAction(t, conn2, "delete_message", map[string]any{"id": id})

	errFrame := readFrame(t, conn2)
	assert.Equal(t, "error", errFrame["status"])
	assert.Equal(t, "You can only delete your own messages", errFrame["message"])

	// The owner sees nothing; the message survives.
	expectSilence(t, conn1)
	assert.True(t, store.contains(id))
}

func TestSession_AuthorizedDeleteBroadcasts(t *testing.T) {
	store, b, dial := testChat(t)
	conn1 := dial("u1", "User One")
	conn2 := dial("u2", "User Two")
	waitForSubscribers(t, b, 2)

	sendAction(t, conn1, "new_message", map[string]any{"body": "short lived"})
	frame := readFrame(t, conn1)
	_ = readFrame(t, conn2)
	id := int(frame["id"].(float64))

	sendAction(t, conn1, "delete_message", map[string]any{"id": id})

	del1 := readFrame(t, conn1)
	del2 := readFrame(t, conn2)
	for _, del := range []map[string]any{del1, del2} {
		assert.Equal(t, "delete", del["action"])
		assert.Equal(t, float64(id), del["message_id"])
	}
	assert.False(t, store.contains(id))
}

func TestSession_DeleteMissingMessage(t *testing.T) {
	_, b, dial := testChat(t)
	conn := dial("u1", "User One")
	waitForSubscribers(t, b, 1)

	sendAction(t, conn, "delete_message", map[string]any{"id": 42})

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["status"])
	assert.Equal(t, "Message not found", frame["message"])
}

func TestSession_MalformedFramesAreIgnored(t *testing.T) {
	_, b, dial := testChat(t)
	conn := dial("u1", "User One")
	waitForSubscribers(t, b, 1)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"payload":{"body":"no action"}}`)))
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"action":"new_message","payload":"wrong shape"}`)))

	// Session is still alive and functional.
	sendAction(t, conn, "new_message", map[string]any{"body": "still here"})
	frame := readFrame(t, conn)
	assert.Equal(t, "still here", frame["body"])
}

func TestSession_UnknownActionIgnored(t *testing.T) {
	_, b, dial := testChat(t)
	conn := dial("u1", "User One")
	waitForSubscribers(t, b, 1)

	sendAction(t, conn, "typing_indicator", map[string]any{})

	sendAction(t, conn, "new_message", map[string]any{"body": "after unknown"})
	frame := readFrame(t, conn)
	assert.Equal(t, "after unknown", frame["body"])
}

func TestSession_EmptyBodyDropped(t *testing.T) {
	_, b, dial := testChat(t)
	conn := dial("u1", "User One")
	waitForSubscribers(t, b, 1)

	sendAction(t, conn, "new_message", map[string]any{"body": "   "})
	expectSilence(t, conn)
}

func TestSession_StoreFailureIsLocalToSender(t *testing.T) {
	store, b, dial := testChat(t)
	conn1 := dial("u1", "User One")
	conn2 := dial("u2", "User Two")
	waitForSubscribers(t, b, 2)

	store.setFailing(true)
	sendAction(t, conn1, "new_message", map[string]any{"body": "doomed"})

	frame := readFrame(t, conn1)
	assert.Equal(t, "error", frame["status"])
	assert.Equal(t, "Failed to save message", frame["message"])

	// The failure never reaches the other session.
	expectSilence(t, conn2)

	// And the sender's session survives to commit once the store is back.
	store.setFailing(false)
	sendAction(t, conn1, "new_message", map[string]any{"body": "recovered"})
	frame = readFrame(t, conn1)
	assert.Equal(t, "recovered", frame["body"])
}

func TestSession_ClientCloseTearsDownSubscription(t *testing.T) {
	_, b, dial := testChat(t)
	conn := dial("u1", "User One")
	waitForSubscribers(t, b, 1)

	require.NoError(t, conn.Close())
	waitForSubscribers(t, b, 0)
}
