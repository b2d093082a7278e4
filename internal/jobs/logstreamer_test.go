package jobs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogStreamer_Broadcast(t *testing.T) {
	ls := NewLogStreamer()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ls.Subscribe("job-1", conn)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		return len(ls.subscribers["job-1"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ls.Broadcast("job-1", StreamEvent{Type: "line", Index: 0, Line: "hello"})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := client.ReadMessage()
	require.NoError(t, err)

	var event StreamEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "line", event.Type)
	assert.Equal(t, "job-1", event.JobID)
	assert.Equal(t, "hello", event.Line)
	assert.False(t, event.Timestamp.IsZero())
}

func TestLogStreamer_UnsubscribeAndClose(t *testing.T) {
	ls := NewLogStreamer()
	conn := &websocket.Conn{}

	ls.Subscribe("job-1", conn)
	ls.Unsubscribe("job-1", conn)

	ls.mu.Lock()
	assert.Empty(t, ls.subscribers["job-1"])
	ls.mu.Unlock()

	// Broadcast to a job with no subscribers is a no-op.
	ls.Broadcast("job-2", StreamEvent{Type: "line", Line: "x"})
	ls.Close("job-2")
}
