package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/roulette/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestHubBroadcastReachesSubscriber(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)

	h.Broadcast("spin", map[string]int{"number": 17})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event string         `json:"event"`
		Data  map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, "spin", msg.Event)
	assert.Equal(t, 17, msg.Data["number"])
}

func TestHubDropsDisconnectedSubscriber(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// no subscribers left; must not block or panic
	h.Broadcast("spin", 1)
}

func TestHubBroadcastDoesNotBlockOnSlowSubscriber(t *testing.T) {
	h := NewHub()
	_ = dial(t, h)

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer*4; i++ {
			h.Broadcast("spin", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked")
	}
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)

	h.Close()
	assert.Equal(t, 0, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
