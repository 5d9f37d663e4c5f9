package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pkg/queue"
	"github.com/qs3c/repoinsight/internal/pkg/ws"
)

type brokenQueue struct{}

func (brokenQueue) Length(context.Context) (int64, error) {
	return 0, errors.New("connection refused")
}

func serveHealth(t *testing.T, h *HealthHandler) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.Handle)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q := queue.NewQueue(rdb, "health:queue")
	require.NoError(t, q.Push(context.Background(), &queue.JobMessage{Request: model.AnalysisRequest{RepoURL: "https://github.com/a/b"}}))

	code, body := serveHealth(t, NewHealthHandler(ws.NewHub(), q))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["queue_depth"])
	assert.EqualValues(t, 0, body["ws_connections"])
}

func TestHealthHandler_QueueDown(t *testing.T) {
	code, body := serveHealth(t, NewHealthHandler(nil, brokenQueue{}))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
}

func TestHealthHandler_NoQueue(t *testing.T) {
	code, body := serveHealth(t, NewHealthHandler(ws.NewHub(), nil))
	assert.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "queue_depth")
}
