package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/repoinsight/internal/api/middleware"
	"github.com/qs3c/repoinsight/internal/model/dto"
	"github.com/qs3c/repoinsight/internal/pkg/response"
	"github.com/qs3c/repoinsight/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// Create 发起分析；mode=queue 时交给 worker 执行
// POST /api/v1/analyses
func (h *AnalysisHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	var (
		resp *dto.CreateAnalysisResponse
		err  error
	)
	if c.Query("mode") == "queue" {
		resp, err = h.analysisService.Enqueue(c.Request.Context(), userID, middleware.GetTenantID(c), &req)
	} else {
		resp, err = h.analysisService.Create(userID, middleware.GetTenantID(c), &req)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	response.Accepted(c, resp)
}

// CreateBatch 批量发起分析
// POST /api/v1/analyses/batch
func (h *AnalysisHandler) CreateBatch(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.BatchAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.analysisService.CreateBatch(userID, middleware.GetTenantID(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Accepted(c, resp)
}

// List 获取已归档的分析任务
// GET /api/v1/analyses
func (h *AnalysisHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := c.Query("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.analysisService.List(userID, page, pageSize, status)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 获取任务状态与结果
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	detail, err := h.analysisService.Get(userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, detail)
}

// Cancel 取消运行中的任务
// POST /api/v1/analyses/:id/cancel
func (h *AnalysisHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	if err := h.analysisService.Cancel(userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已请求取消", nil)
}

// InvalidateCache 清除仓库分支的缓存结果
// POST /api/v1/cache/invalidate
func (h *AnalysisHandler) InvalidateCache(c *gin.Context) {
	var req dto.InvalidateCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.analysisService.InvalidateCache(c.Request.Context(), &req); err != nil {
		writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "缓存已清除", nil)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRepoURL),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrInvalidRequest):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrAnalysisNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrAnalysisPermission):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrAnalysisFinished):
		response.ConflictError(c, err.Error())
	case errors.Is(err, service.ErrQueueDisabled):
		response.UnavailableError(c, err.Error())
	default:
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}
