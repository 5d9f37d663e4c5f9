package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/internal/pkg/jwt"
	"github.com/qs3c/repoinsight/internal/pkg/ws"
)

const wsSecret = "ws-test-secret"

func wsServer(t *testing.T, hub *ws.Hub, origins []string) *httptest.Server {
	t.Helper()
	router := gin.New()
	router.GET("/ws", NewWebSocketHandler(hub, wsSecret, origins).Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
}

func TestWebSocketHandler_RegistersUser(t *testing.T) {
	hub := ws.NewHub()
	server := wsServer(t, hub, nil)

	token, err := jwt.GenerateToken(42, wsSecret, 1)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, token), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.IsOnline(42) }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return !hub.IsOnline(42) }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_RejectsBadToken(t *testing.T) {
	server := wsServer(t, ws.NewHub(), nil)

	for _, token := range []string{"", "garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, token), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	hub := ws.NewHub()
	server := wsServer(t, hub, []string{"https://app.example.com"})
	token, err := jwt.GenerateToken(1, wsSecret, 1)
	require.NoError(t, err)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, token), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, token), header)
	require.NoError(t, err)
	conn.Close()
}
