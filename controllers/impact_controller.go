package controllers

import (
	"net/http"
	"strconv"

	"github.com/Abin2112/Greencycle-sub000/models"
	"github.com/Abin2112/Greencycle-sub000/services"
	"github.com/Abin2112/Greencycle-sub000/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceImpactController 定义环保成果控制器接口
type InterfaceImpactController interface {
	GetMySummary()
	GetAccountSummary()
	PreviewImpact()
}

// ImpactController 处理环保成果相关的请求
type ImpactController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewImpactController 创建一个新的环保成果控制器
func NewImpactController(ctx *gin.Context, container *container.ServiceContainer) *ImpactController {
	return &ImpactController{
		Ctx:       ctx,
		Container: container,
	}
}

// ImpactPreviewRequest 环保成果试算请求
type ImpactPreviewRequest struct {
	Category    string   `json:"category" binding:"required" example:"laptop"`
	Condition   string   `json:"condition" binding:"required" example:"good"`
	WeightKG    *float64 `json:"weight_kg" example:"1.5"`
	Disposition string   `json:"disposition" binding:"required" example:"recycled"` // refurbished, donated, recycled
}

// HandleImpactFunc 返回一个处理环保成果请求的Gin处理函数
func HandleImpactFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewImpactController(ctx, container)

		switch method {
		case "getMySummary":
			controller.GetMySummary()
		case "getAccountSummary":
			controller.GetAccountSummary()
		case "previewImpact":
			controller.PreviewImpact()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// 1. GetMySummary 获取当前账户的累计环保成果
// @Summary 获取我的环保成果
// @Description 获取当前登录账户的累计环保指标、积分与徽章
// @Tags impact
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.ImpactSummary
// @Failure 404 {object} ErrorResponse
// @Router /impact/summary [get]
func (c *ImpactController) GetMySummary() {
	actor := actorFromContext(c.Ctx)
	impactService := c.Container.GetService("impact").(services.InterfaceImpactService)

	summary, err := impactService.GetImpactSummary(actor.AccountID)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    summary,
	})
}

// 2. GetAccountSummary 获取指定账户的累计环保成果（仅运营角色）
// @Summary 获取指定账户环保成果
// @Description 根据账户ID获取累计环保指标、积分与徽章
// @Tags impact
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Success 200 {object} services.ImpactSummary
// @Failure 404 {object} ErrorResponse
// @Router /impact/summary/{id} [get]
func (c *ImpactController) GetAccountSummary() {
	accountID, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的账户ID",
			"data":    nil,
		})
		return
	}

	impactService := c.Container.GetService("impact").(services.InterfaceImpactService)

	summary, err := impactService.GetImpactSummary(uint(accountID))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    summary,
	})
}

// 3. PreviewImpact 环保成果试算
// @Summary 环保成果试算
// @Description 按固定公式试算一次处置能产生的环保指标与积分，不产生任何副作用
// @Tags impact
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param preview body ImpactPreviewRequest true "试算参数"
// @Success 200 {object} services.ImpactMetrics
// @Failure 400 {object} ErrorResponse
// @Router /impact/preview [post]
func (c *ImpactController) PreviewImpact() {
	var req ImpactPreviewRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	impactService := c.Container.GetService("impact").(services.InterfaceImpactService)

	metrics, err := impactService.Calculate(
		models.DeviceCategory(req.Category),
		models.DeviceCondition(req.Condition),
		req.WeightKG,
		models.DeviceStatus(req.Disposition),
	)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    metrics,
	})
}
