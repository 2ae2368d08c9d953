// pkg/api/handlers.go
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"StockRadar/pkg/database"
	"StockRadar/pkg/watch"
)

// Handlers API处理程序
type Handlers struct {
	watchService *watch.Service
	workspaces   *database.WorkspaceDB
	assignments  *database.AssignmentDB
}

// NewHandlers 创建新的API处理程序
func NewHandlers(watchService *watch.Service, workspaces *database.WorkspaceDB, assignments *database.AssignmentDB) *Handlers {
	return &Handlers{
		watchService: watchService,
		workspaces:   workspaces,
		assignments:  assignments,
	}
}

// HealthCheck 健康检查处理程序
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck 就绪检查处理程序
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// WatchRequest watch请求
type WatchRequest struct {
	Ticker    string  `json:"ticker" binding:"required"`
	Threshold float64 `json:"threshold"`
}

// Watch 订阅标的价格提醒
func (h *Handlers) Watch(c *gin.Context) {
	workspaceID := c.Param("workspace_id")

	var req WatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}
	if req.Threshold == 0 {
		req.Threshold = 10.0 // 默认阈值
	}

	result, err := h.watchService.Watch(workspaceID, req.Ticker, req.Threshold)
	if err != nil {
		switch {
		case errors.Is(err, watch.ErrUnknownTicker):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, watch.ErrWatchLimit):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "订阅失败: " + err.Error()})
		}
		return
	}

	status := "created"
	switch result {
	case watch.WatchThresholdUpdated:
		status = "threshold_updated"
	case watch.WatchUnchanged:
		status = "unchanged"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"ticker":    req.Ticker,
		"threshold": req.Threshold,
	})
}

// Unwatch 取消订阅
func (h *Handlers) Unwatch(c *gin.Context) {
	workspaceID := c.Param("workspace_id")
	ticker := c.Param("ticker")

	result, err := h.watchService.Unwatch(workspaceID, ticker)
	if err != nil {
		if errors.Is(err, watch.ErrUnknownTicker) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "取消订阅失败: " + err.Error()})
		return
	}

	if result == watch.UnwatchNotFound {
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found", "ticker": ticker})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed", "ticker": ticker})
}

// UnwatchAll 取消全部订阅
func (h *Handlers) UnwatchAll(c *gin.Context) {
	workspaceID := c.Param("workspace_id")

	tickers, err := h.watchService.UnwatchAll(workspaceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "取消订阅失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "removed",
		"tickers": tickers,
	})
}

// ListWatches 列出全部订阅
func (h *Handlers) ListWatches(c *gin.Context) {
	workspaceID := c.Param("workspace_id")

	subscriptions, err := h.watchService.List(workspaceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询订阅失败: " + err.Error()})
		return
	}

	type watchItem struct {
		Ticker      string  `json:"ticker"`
		Name        string  `json:"name"`
		Threshold   float64 `json:"threshold"`
		Alerted     bool    `json:"alerted"`
		LastAlerted *string `json:"last_alerted"`
	}

	items := make([]watchItem, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		item := watchItem{
			Ticker:    subscription.Instrument.Ticker,
			Name:      subscription.Instrument.Name,
			Threshold: subscription.Threshold,
			Alerted:   subscription.Alerted,
		}
		if subscription.LastAlerted != nil {
			formatted := subscription.LastAlerted.Format("2006-01-02 15:04:05")
			item.LastAlerted = &formatted
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetPlan 查询工作区当前档位分配
func (h *Handlers) GetPlan(c *gin.Context) {
	workspaceID := c.Param("workspace_id")

	workspace, err := h.workspaces.GetByPlatformID(workspaceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "工作区不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询工作区失败: " + err.Error()})
		return
	}

	assignment, err := h.assignments.GetByWorkspace(workspace.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询档位分配失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": assignment})
}
