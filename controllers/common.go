package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Abin2112/Greencycle-sub000/models"
	"github.com/Abin2112/Greencycle-sub000/services"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 统一的错误响应结构（用于swagger文档）
type ErrorResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// actorFromContext 从认证中间件写入的上下文还原调用方身份
func actorFromContext(c *gin.Context) services.Actor {
	actor := services.Actor{}

	if accountID, exists := c.Get("accountID"); exists {
		if id, ok := accountID.(uint); ok {
			actor.AccountID = id
		}
	}
	if role, exists := c.Get("role"); exists {
		if r, ok := role.(string); ok {
			actor.Role = models.Role(r)
		}
	}
	if orgID, exists := c.Get("organizationID"); exists {
		if id, ok := orgID.(uint); ok {
			actor.OrganizationID = &id
		}
	}

	return actor
}

// respondError 把领域错误映射为统一的HTTP响应
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrAlreadyScheduled),
		errors.Is(err, services.ErrCapacityExhausted):
		status = http.StatusConflict
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNoEligibleOrganization):
		status = http.StatusNotFound
	case strings.Contains(err.Error(), "不存在"):
		status = http.StatusNotFound
	case strings.Contains(err.Error(), "无效") || strings.Contains(err.Error(), "必须"):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{
		"code":    status,
		"message": err.Error(),
		"data":    nil,
	})
}
