package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SignalBot/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	h := NewHub(nil)
	e := echo.New()
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/signals"
}

func delivery(id string, class models.SignalClass) *models.Delivery {
	return &models.Delivery{
		Candidate: models.Candidate{
			Instrument: models.Instrument{Name: "EUR/USD OTC"},
			Signal:     &models.SignalRecord{ID: id, Direction: models.DirectionCall},
			Timeframe:  "1M",
		},
		Class: class,
	}
}

func TestHub_BroadcastFiltersByClass(t *testing.T) {
	h, url := startHub(t)

	all, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer all.Close()
	long, _, err := websocket.DefaultDialer.Dial(url+"?class=long", nil)
	require.NoError(t, err)
	defer long.Close()

	assert.Eventually(t, func() bool { return h.Clients() == 2 }, time.Second, 10*time.Millisecond)

	h.Broadcast(delivery("s1", models.ClassShort))
	h.Broadcast(delivery("s2", models.ClassLong))

	read := func(c *websocket.Conn) string {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := c.ReadMessage()
		require.NoError(t, err)
		var d models.Delivery
		require.NoError(t, json.Unmarshal(msg, &d))
		return d.Signal.ID
	}
	assert.Equal(t, "s1", read(all))
	assert.Equal(t, "s2", read(all))
	assert.Equal(t, "s2", read(long))
}

func TestHub_UnsubscribeOnClose(t *testing.T) {
	h, url := startHub(t)
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsUnknownClass(t *testing.T) {
	_, url := startHub(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?class=weekly", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHub_BroadcastWithoutSubscribers(t *testing.T) {
	h := NewHub(nil)
	assert.NotPanics(t, func() {
		h.Broadcast(delivery("s1", models.ClassShort))
		h.Broadcast(nil)
	})
}
