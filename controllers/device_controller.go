package controllers

import (
	"net/http"
	"strconv"

	"github.com/Abin2112/Greencycle-sub000/models"
	"github.com/Abin2112/Greencycle-sub000/services"
	"github.com/Abin2112/Greencycle-sub000/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceDeviceController 定义设备控制器接口
type InterfaceDeviceController interface {
	GetDevices()
	GetMyDevices()
	GetDevice()
	CreateDevice()
	AdvanceStatus()
	RequestMatch()
	GetCandidates()
}

// DeviceController 处理设备相关的请求
type DeviceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDeviceController 创建一个新的设备控制器
func NewDeviceController(ctx *gin.Context, container *container.ServiceContainer) *DeviceController {
	return &DeviceController{
		Ctx:       ctx,
		Container: container,
	}
}

// DeviceRequestInput 表示设备创建请求结构
type DeviceRequestInput struct {
	Category  string   `json:"category" binding:"required" example:"laptop"`   // phone, laptop, tablet, desktop, battery, other
	Condition string   `json:"condition" binding:"required" example:"good"`    // excellent, good, fair, poor
	WeightKG  *float64 `json:"weight_kg" example:"1.5"`                        // 可选的设备重量（千克）
}

// AdvanceStatusRequest 设备状态流转请求
type AdvanceStatusRequest struct {
	ExpectedStatus string `json:"expected_status" binding:"required" example:"uploaded"` // 调用方最后观察到的状态
	TargetStatus   string `json:"target_status" binding:"required" example:"awaiting_match"`
}

// HandleDeviceFunc 返回一个处理设备请求的Gin处理函数
func HandleDeviceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDeviceController(ctx, container)

		switch method {
		case "getDevices":
			controller.GetDevices()
		case "getMyDevices":
			controller.GetMyDevices()
		case "getDevice":
			controller.GetDevice()
		case "createDevice":
			controller.CreateDevice()
		case "advanceStatus":
			controller.AdvanceStatus()
		case "requestMatch":
			controller.RequestMatch()
		case "getCandidates":
			controller.GetCandidates()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// 1. GetDevices 分页获取所有设备（仅运营角色）
// @Summary 获取所有设备
// @Description 分页获取所有回收设备的列表
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pageNum query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {array} models.Device
// @Failure 500 {object} ErrorResponse
// @Router /devices [get]
func (c *DeviceController) GetDevices() {
	var query models.PaginationQuery
	if err := c.Ctx.ShouldBindQuery(&query); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的分页参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	devices, pagination, err := deviceService.GetAllDevices(query)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"devices":    devices,
			"pagination": pagination,
		},
	})
}

// 2. GetMyDevices 获取当前提交者名下的设备列表
// @Summary 获取我的设备
// @Description 获取当前登录提交者名下的所有设备
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Device
// @Failure 500 {object} ErrorResponse
// @Router /devices/mine [get]
func (c *DeviceController) GetMyDevices() {
	actor := actorFromContext(c.Ctx)
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	devices, err := deviceService.GetDevicesByOwner(actor.AccountID)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    devices,
	})
}

// 3. GetDevice 获取单个设备详情
// @Summary 获取单个设备
// @Description 根据ID获取设备信息
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Success 200 {object} models.Device
// @Failure 404 {object} ErrorResponse
// @Router /devices/{id} [get]
func (c *DeviceController) GetDevice() {
	deviceID, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的设备ID",
			"data":    nil,
		})
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, err := deviceService.GetDeviceByID(uint(deviceID))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    device,
	})
}

// 4. CreateDevice 提交新的回收设备
// @Summary 提交回收设备
// @Description 提交一台待回收的电子设备，系统生成不可变更的追踪码，初始状态为 uploaded
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param device body DeviceRequestInput true "设备信息：类别(必填)、成色(必填)、重量(可选)"
// @Success 201 {object} models.Device "成功创建的设备信息"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Failure 500 {object} ErrorResponse "服务器内部错误"
// @Router /devices [post]
func (c *DeviceController) CreateDevice() {
	var req DeviceRequestInput
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	actor := actorFromContext(c.Ctx)
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, err := deviceService.CreateDevice(
		actor.AccountID,
		models.DeviceCategory(req.Category),
		models.DeviceCondition(req.Condition),
		req.WeightKG,
	)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "成功",
		"data":    device,
	})
}

// 5. AdvanceStatus 推进设备生命周期状态
// @Summary 推进设备状态
// @Description 按状态机推进设备状态。请求必须携带调用方最后观察到的状态，观察到的状态已过期时返回409
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Param transition body AdvanceStatusRequest true "状态流转：期望当前状态与目标状态"
// @Success 200 {object} models.Device "流转后的设备信息"
// @Failure 403 {object} ErrorResponse "当前角色无权触发该流转"
// @Failure 409 {object} ErrorResponse "状态流转不合法或已过期"
// @Router /devices/{id}/status [post]
func (c *DeviceController) AdvanceStatus() {
	deviceID, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的设备ID",
			"data":    nil,
		})
		return
	}

	var req AdvanceStatusRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	actor := actorFromContext(c.Ctx)
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, err := deviceService.AdvanceStatus(
		uint(deviceID),
		models.DeviceStatus(req.ExpectedStatus),
		models.DeviceStatus(req.TargetStatus),
		actor,
	)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    device,
	})
}

// 6. RequestMatch 为待匹配设备请求匹配回收机构
// @Summary 请求匹配
// @Description 为处于 awaiting_match 状态的设备匹配并预留一家回收机构
// @Tags matching
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Success 200 {object} models.Organization "预留成功的机构"
// @Failure 404 {object} ErrorResponse "没有符合条件的回收机构"
// @Failure 409 {object} ErrorResponse "设备不在待匹配状态"
// @Router /devices/{id}/match [post]
func (c *DeviceController) RequestMatch() {
	deviceID, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的设备ID",
			"data":    nil,
		})
		return
	}

	matchingService := c.Container.GetService("matching").(services.InterfaceMatchingService)

	org, err := matchingService.RequestMatch(uint(deviceID))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"organization_id": org.ID,
			"organization":    org,
		},
	})
}

// 7. GetCandidates 只读查看设备的候选机构列表
// @Summary 查看候选机构
// @Description 按匹配引擎的排序规则查看设备当前的候选机构，不做任何预留
// @Tags matching
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Success 200 {array} services.MatchCandidate
// @Failure 404 {object} ErrorResponse
// @Router /devices/{id}/candidates [get]
func (c *DeviceController) GetCandidates() {
	deviceID, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的设备ID",
			"data":    nil,
		})
		return
	}

	matchingService := c.Container.GetService("matching").(services.InterfaceMatchingService)

	candidates, err := matchingService.PreviewCandidates(uint(deviceID))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    candidates,
	})
}
