package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medsupply/internal/middleware"
	"medsupply/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("ws-secret")

type stockEvent struct {
	ManufacturerID string `json:"manufacturer_id"`
}

func (e stockEvent) Audience() []string { return []string{e.ManufacturerID} }

func newServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, secret) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, actor model.Actor) *websocket.Conn {
	t.Helper()
	token, err := middleware.SignToken(secret, actor, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHub_DeliversOnlyToAudience(t *testing.T) {
	hub, srv := newServer(t)
	mine := uuid.New()
	other := uuid.New()

	conn := dial(t, srv, model.Actor{UserID: uuid.New(), OrganisationID: mine, Role: model.RoleManufacturerAdmin})
	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish("stock.changed", stockEvent{ManufacturerID: other.String()}))
	require.NoError(t, hub.Publish("batch.started", map[string]string{"note": "unscoped"}))
	require.NoError(t, hub.Publish("stock.changed", stockEvent{ManufacturerID: mine.String()}))

	msg := readMessage(t, conn)
	assert.Equal(t, "stock.changed", msg.Event)
	assert.Equal(t, mine.String(), msg.Data.(map[string]any)["manufacturer_id"])
}

func TestHub_AdminSeesEverything(t *testing.T) {
	hub, srv := newServer(t)
	conn := dial(t, srv, model.Actor{UserID: uuid.New(), Role: model.RoleAdmin})
	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish("order.created", map[string]string{"order_number": "ORD2026000001"}))

	msg := readMessage(t, conn)
	assert.Equal(t, "order.created", msg.Event)
}

func TestServeWs_RejectsMissingToken(t *testing.T) {
	_, srv := newServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublish_QueueFull(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	for i := 0; i < queueLength; i++ {
		require.NoError(t, hub.Publish("stock.changed", nil))
	}
	assert.ErrorIs(t, hub.Publish("stock.changed", nil), ErrQueueFull)
}
