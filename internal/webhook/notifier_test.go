package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolNotifier_DeliversEvent(t *testing.T) {
	received := make(chan NotificationEvent, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev NotificationEvent
		if err := json.Unmarshal(body, &ev); err == nil {
			received <- ev
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewPoolNotifier(4, 2, 2*time.Second)
	go n.Start() //nolint:errcheck
	defer n.Stop()

	n.Notify(server.URL, &NotificationEvent{
		AgentID:       1,
		CustomerPhone: "+14155552671",
		MessageType:   "text",
		Body:          "hello",
	})

	select {
	case ev := <-received:
		assert.Equal(t, int64(1), ev.AgentID)
		assert.Equal(t, "hello", ev.Body)
	case <-time.After(3 * time.Second):
		require.Fail(t, "notification was not delivered")
	}
}

func TestPoolNotifier_DownstreamFailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewPoolNotifier(1, 1, time.Second)
	go n.Start() //nolint:errcheck
	defer n.Stop()

	// Must not panic or block.
	n.Notify(server.URL, &NotificationEvent{AgentID: 1})
	time.Sleep(100 * time.Millisecond)
}
