package controllers

import (
	"net/http"
	"strconv"

	"github.com/Abin2112/Greencycle-sub000/models"
	"github.com/Abin2112/Greencycle-sub000/services"
	"github.com/Abin2112/Greencycle-sub000/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceOrganizationController 定义机构控制器接口
type InterfaceOrganizationController interface {
	GetOrganizations()
	GetOrganization()
	CreateOrganization()
	UpdateOrganization()
	UpdateVerification()
	UpdateRating()
	ResetCapacities()
	DeleteOrganization()
}

// OrganizationController 处理回收机构相关的请求
type OrganizationController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewOrganizationController 创建一个新的机构控制器
func NewOrganizationController(ctx *gin.Context, container *container.ServiceContainer) *OrganizationController {
	return &OrganizationController{
		Ctx:       ctx,
		Container: container,
	}
}

// OrganizationRequestInput 表示机构创建/更新请求结构
type OrganizationRequestInput struct {
	Name              string  `json:"name" binding:"required" example:"绿源回收站"`
	AccountID         uint    `json:"account_id" example:"2"`
	Latitude          float64 `json:"latitude" binding:"required" example:"31.2304"`
	Longitude         float64 `json:"longitude" binding:"required" example:"121.4737"`
	ServiceRadiusKM   float64 `json:"service_radius_km" example:"25"`
	ServiceCategories string  `json:"service_categories" binding:"required" example:"phone,laptop,battery"`
	MonthlyCapacity   int     `json:"monthly_capacity" binding:"required" example:"50"`
}

// VerificationRequest 认证状态变更请求
type VerificationRequest struct {
	Status string `json:"status" binding:"required" example:"verified"` // unverified, pending, verified, suspended
}

// RatingRequest 评分变更请求
type RatingRequest struct {
	Rating float64 `json:"rating" binding:"required" example:"4.5"`
}

// HandleOrganizationFunc 返回一个处理机构请求的Gin处理函数
func HandleOrganizationFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewOrganizationController(ctx, container)

		switch method {
		case "getOrganizations":
			controller.GetOrganizations()
		case "getOrganization":
			controller.GetOrganization()
		case "createOrganization":
			controller.CreateOrganization()
		case "updateOrganization":
			controller.UpdateOrganization()
		case "updateVerification":
			controller.UpdateVerification()
		case "updateRating":
			controller.UpdateRating()
		case "resetCapacities":
			controller.ResetCapacities()
		case "deleteOrganization":
			controller.DeleteOrganization()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// parseOrganizationID 解析路径中的机构ID
func (c *OrganizationController) parseOrganizationID() (uint, bool) {
	id, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的机构ID",
			"data":    nil,
		})
		return 0, false
	}
	return uint(id), true
}

// 1. GetOrganizations 获取所有机构列表
// @Summary 获取所有机构
// @Description 获取所有回收机构的列表
// @Tags organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Organization
// @Failure 500 {object} ErrorResponse
// @Router /organizations [get]
func (c *OrganizationController) GetOrganizations() {
	orgService := c.Container.GetService("organization").(services.InterfaceOrganizationService)

	orgs, err := orgService.GetAllOrganizations()
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    orgs,
	})
}

// 2. GetOrganization 获取单个机构详情
// @Summary 获取单个机构
// @Description 根据ID获取机构信息
// @Tags organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "机构ID"
// @Success 200 {object} models.Organization
// @Failure 404 {object} ErrorResponse
// @Router /organizations/{id} [get]
func (c *OrganizationController) GetOrganization() {
	id, ok := c.parseOrganizationID()
	if !ok {
		return
	}

	orgService := c.Container.GetService("organization").(services.InterfaceOrganizationService)

	org, err := orgService.GetOrganizationByID(id)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    org,
	})
}

// 3. CreateOrganization 创建新机构（仅运营角色）
// @Summary 创建机构
// @Description 创建一家回收机构，剩余容量初始化为月度容量，初始认证状态为 unverified
// @Tags organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param organization body OrganizationRequestInput true "机构信息"
// @Success 201 {object} models.Organization
// @Failure 400 {object} ErrorResponse
// @Router /organizations [post]
func (c *OrganizationController) CreateOrganization() {
	var req OrganizationRequestInput
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	org := &models.Organization{
		Name:              req.Name,
		AccountID:         req.AccountID,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		ServiceRadiusKM:   req.ServiceRadiusKM,
		ServiceCategories: req.ServiceCategories,
		MonthlyCapacity:   req.MonthlyCapacity,
	}

	orgService := c.Container.GetService("organization").(services.InterfaceOrganizationService)

	if err := orgService.CreateOrganization(org); err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "成功",
		"data":    org,
	})
}

// 4. UpdateOrganization 更新机构信息（仅运营角色）
// @Summary 更新机构信息
// @Description 更新机构基础信息。容量计数器不允许通过本接口修改
// @Tags organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "机构ID"
// @Param organization body OrganizationRequestInput true "机构信息"
// @Success 200 {object} models.Organization
// @Failure 404 {object} ErrorResponse
// @Router /organizations/{id} [put]
func (c *OrganizationController) UpdateOrganization() {
	id, ok := c.parseOrganizationID()
	if !ok {
		return
	}

	var req OrganizationRequestInput
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	updates := map[string]interface{}{
		"name":               req.Name,
		"latitude":           req.Latitude,
		"longitude":          req.Longitude,
		"service_categories": req.ServiceCategories,
		"monthly_capacity":   req.MonthlyCapacity,
	}
	if req.ServiceRadiusKM > 0 {
		updates["service_radius_km"] = req.ServiceRadiusKM
	}

	orgService := c.Container.GetService("organization").(services.InterfaceOrganizationService)

	org, err := orgService.UpdateOrganization(id, updates)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    org,
	})
}

// 5. UpdateVerification 更新机构认证状态（仅运营角色）
// @Summary 更新认证状态
// @Description 更新机构的认证状态，只有 verified 状态的机构可参与匹配
// @Tags organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "机构ID"
// @Param verification body VerificationRequest true "认证状态"
// @Success 200 {object} models.Organization
// @Failure 400 {object} ErrorResponse
// @Router /organizations/{id}/verification [put]
func (c *OrganizationController) UpdateVerification() {
	id, ok := c.parseOrganizationID()
	if !ok {
		return
	}

	var req VerificationRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	orgService := c.Container.GetService("organization").(services.InterfaceOrganizationService)

	org, err := orgService.UpdateVerificationStatus(id, models.VerificationStatus(req.Status))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    org,
	})
}

// 6. UpdateRating 更新机构评分（仅运营角色）
// @Summary 更新机构评分
// @Description 更新机构评分，评分参与匹配排序
// @Tags organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "机构ID"
// @Param rating body RatingRequest true "评分(0-5)"
// @Success 200 {object} models.Organization
// @Failure 400 {object} ErrorResponse
// @Router /organizations/{id}/rating [put]
func (c *OrganizationController) UpdateRating() {
	id, ok := c.parseOrganizationID()
	if !ok {
		return
	}

	var req RatingRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	orgService := c.Container.GetService("organization").(services.InterfaceOrganizationService)

	org, err := orgService.UpdateRating(id, req.Rating)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    org,
	})
}

// 7. ResetCapacities 重置所有机构的剩余容量（仅运营角色，供外部定时任务调用）
// @Summary 重置机构容量
// @Description 将所有机构的剩余容量重置为月度容量，重置周期由配置和外部定时任务决定
// @Tags organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /organizations/capacity/reset [post]
func (c *OrganizationController) ResetCapacities() {
	orgService := c.Container.GetService("organization").(services.InterfaceOrganizationService)

	count, err := orgService.ResetCapacities()
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"reset": count,
		},
	})
}

// 8. DeleteOrganization 删除机构（仅运营角色）
// @Summary 删除机构
// @Description 根据ID删除机构
// @Tags organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "机构ID"
// @Success 200 {object} nil
// @Failure 404 {object} ErrorResponse
// @Router /organizations/{id} [delete]
func (c *OrganizationController) DeleteOrganization() {
	id, ok := c.parseOrganizationID()
	if !ok {
		return
	}

	orgService := c.Container.GetService("organization").(services.InterfaceOrganizationService)

	if err := orgService.DeleteOrganization(id); err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    nil,
	})
}
