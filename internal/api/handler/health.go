package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/repoinsight/internal/pkg/ws"
)

// QueueDepth 队列长度查询
type QueueDepth interface {
	Length(ctx context.Context) (int64, error)
}

type HealthHandler struct {
	hub   *ws.Hub
	queue QueueDepth
}

// NewHealthHandler queue 可以为空
func NewHealthHandler(hub *ws.Hub, queue QueueDepth) *HealthHandler {
	return &HealthHandler{hub: hub, queue: queue}
}

// Handle 健康检查，附带在线连接数和队列积压
func (h *HealthHandler) Handle(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.hub != nil {
		body["ws_connections"] = h.hub.ConnectionCount()
	}
	if h.queue != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		n, err := h.queue.Length(ctx)
		if err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["queue_depth"] = n
	}
	c.JSON(http.StatusOK, body)
}
