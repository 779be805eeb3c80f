package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Abin2112/Greencycle-sub000/services"
	"github.com/Abin2112/Greencycle-sub000/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceAppointmentController 定义预约控制器接口
type InterfaceAppointmentController interface {
	Schedule()
	Confirm()
	Start()
	Reschedule()
	Cancel()
	CancelExpired()
	GetAppointment()
	GetDeviceAppointments()
	GetOrganizationAppointments()
}

// AppointmentController 处理取件预约相关的请求
type AppointmentController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewAppointmentController 创建一个新的预约控制器
func NewAppointmentController(ctx *gin.Context, container *container.ServiceContainer) *AppointmentController {
	return &AppointmentController{
		Ctx:       ctx,
		Container: container,
	}
}

// ScheduleRequest 创建预约请求
type ScheduleRequest struct {
	DeviceID       uint      `json:"device_id" binding:"required" example:"1"`
	OrganizationID uint      `json:"organization_id" binding:"required" example:"1"`
	WindowStart    time.Time `json:"window_start" binding:"required" example:"2025-07-01T09:00:00Z"`
	WindowEnd      time.Time `json:"window_end" binding:"required" example:"2025-07-01T12:00:00Z"`
}

// RescheduleRequest 调整预约时间窗请求
type RescheduleRequest struct {
	WindowStart time.Time `json:"window_start" binding:"required" example:"2025-07-02T09:00:00Z"`
	WindowEnd   time.Time `json:"window_end" binding:"required" example:"2025-07-02T12:00:00Z"`
}

// HandleAppointmentFunc 返回一个处理预约请求的Gin处理函数
func HandleAppointmentFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewAppointmentController(ctx, container)

		switch method {
		case "schedule":
			controller.Schedule()
		case "confirm":
			controller.Confirm()
		case "start":
			controller.Start()
		case "reschedule":
			controller.Reschedule()
		case "cancel":
			controller.Cancel()
		case "cancelExpired":
			controller.CancelExpired()
		case "getAppointment":
			controller.GetAppointment()
		case "getDeviceAppointments":
			controller.GetDeviceAppointments()
		case "getOrganizationAppointments":
			controller.GetOrganizationAppointments()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// parseAppointmentID 解析路径中的预约ID
func (c *AppointmentController) parseAppointmentID() (uint, bool) {
	id, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的预约ID",
			"data":    nil,
		})
		return 0, false
	}
	return uint(id), true
}

// 1. Schedule 创建取件预约
// @Summary 创建取件预约
// @Description 为已匹配的设备创建取件预约，同一设备同时最多一个生效预约
// @Tags appointment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param appointment body ScheduleRequest true "预约信息：设备ID、机构ID、时间窗"
// @Success 201 {object} models.PickupAppointment
// @Failure 409 {object} ErrorResponse "设备已存在生效中的预约"
// @Router /appointments [post]
func (c *AppointmentController) Schedule() {
	var req ScheduleRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	appointmentService := c.Container.GetService("appointment").(services.InterfaceAppointmentService)

	appointment, err := appointmentService.Schedule(req.DeviceID, req.OrganizationID, req.WindowStart, req.WindowEnd, actorFromContext(c.Ctx))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "成功",
		"data":    appointment,
	})
}

// 2. Confirm 机构确认预约
// @Summary 确认预约
// @Description 所属机构确认取件预约，只改预约状态不改设备状态
// @Tags appointment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预约ID"
// @Success 200 {object} models.PickupAppointment
// @Failure 403 {object} ErrorResponse "非预约所属机构"
// @Failure 409 {object} ErrorResponse
// @Router /appointments/{id}/confirm [post]
func (c *AppointmentController) Confirm() {
	id, ok := c.parseAppointmentID()
	if !ok {
		return
	}

	appointmentService := c.Container.GetService("appointment").(services.InterfaceAppointmentService)

	appointment, err := appointmentService.Confirm(id, actorFromContext(c.Ctx))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    appointment,
	})
}

// 3. Start 机构开始上门取件
// @Summary 开始取件
// @Description 所属机构开始上门取件，已确认的预约进入进行中
// @Tags appointment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预约ID"
// @Success 200 {object} models.PickupAppointment
// @Failure 403 {object} ErrorResponse "非预约所属机构"
// @Failure 409 {object} ErrorResponse
// @Router /appointments/{id}/start [post]
func (c *AppointmentController) Start() {
	id, ok := c.parseAppointmentID()
	if !ok {
		return
	}

	appointmentService := c.Container.GetService("appointment").(services.InterfaceAppointmentService)

	appointment, err := appointmentService.Start(id, actorFromContext(c.Ctx))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    appointment,
	})
}

// 4. Reschedule 调整预约时间窗
// @Summary 调整预约时间
// @Description 调整生效中预约的取件时间窗
// @Tags appointment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预约ID"
// @Param window body RescheduleRequest true "新的时间窗"
// @Success 200 {object} models.PickupAppointment
// @Failure 403 {object} ErrorResponse "非预约归属方"
// @Failure 409 {object} ErrorResponse
// @Router /appointments/{id}/reschedule [put]
func (c *AppointmentController) Reschedule() {
	id, ok := c.parseAppointmentID()
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	appointmentService := c.Container.GetService("appointment").(services.InterfaceAppointmentService)

	appointment, err := appointmentService.Reschedule(id, req.WindowStart, req.WindowEnd, actorFromContext(c.Ctx))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    appointment,
	})
}

// 5. Cancel 取消预约
// @Summary 取消预约
// @Description 取消取件预约。取件尚未发生时归还机构容量并把设备退回待匹配；重复取消是无副作用的空操作
// @Tags appointment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预约ID"
// @Success 200 {object} models.PickupAppointment
// @Failure 403 {object} ErrorResponse "非预约归属方"
// @Failure 404 {object} ErrorResponse
// @Router /appointments/{id}/cancel [post]
func (c *AppointmentController) Cancel() {
	id, ok := c.parseAppointmentID()
	if !ok {
		return
	}

	appointmentService := c.Container.GetService("appointment").(services.InterfaceAppointmentService)

	appointment, err := appointmentService.Cancel(id, actorFromContext(c.Ctx))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    appointment,
	})
}

// 6. CancelExpired 清理过期预约（仅运营角色，供外部定时任务调用）
// @Summary 清理过期预约
// @Description 取消所有超过时间窗仍未确认的预约，复用普通取消路径
// @Tags appointment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /appointments/expired/sweep [post]
func (c *AppointmentController) CancelExpired() {
	appointmentService := c.Container.GetService("appointment").(services.InterfaceAppointmentService)

	cancelled, err := appointmentService.CancelExpired()
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"cancelled": cancelled,
		},
	})
}

// 7. GetAppointment 获取预约详情
// @Summary 获取预约详情
// @Description 根据ID获取取件预约
// @Tags appointment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预约ID"
// @Success 200 {object} models.PickupAppointment
// @Failure 404 {object} ErrorResponse
// @Router /appointments/{id} [get]
func (c *AppointmentController) GetAppointment() {
	id, ok := c.parseAppointmentID()
	if !ok {
		return
	}

	appointmentService := c.Container.GetService("appointment").(services.InterfaceAppointmentService)

	appointment, err := appointmentService.GetAppointmentByID(id)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    appointment,
	})
}

// 8. GetDeviceAppointments 获取设备的预约历史
// @Summary 获取设备预约历史
// @Description 获取指定设备的全部取件预约
// @Tags appointment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param deviceId path int true "设备ID"
// @Success 200 {array} models.PickupAppointment
// @Failure 400 {object} ErrorResponse
// @Router /appointments/device/{deviceId} [get]
func (c *AppointmentController) GetDeviceAppointments() {
	deviceID, err := strconv.Atoi(c.Ctx.Param("deviceId"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的设备ID",
			"data":    nil,
		})
		return
	}

	appointmentService := c.Container.GetService("appointment").(services.InterfaceAppointmentService)

	appointments, err := appointmentService.GetAppointmentsByDevice(uint(deviceID))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    appointments,
	})
}

// 9. GetOrganizationAppointments 获取机构的预约列表
// @Summary 获取机构预约列表
// @Description 获取指定机构的全部取件预约
// @Tags appointment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orgId path int true "机构ID"
// @Success 200 {array} models.PickupAppointment
// @Failure 400 {object} ErrorResponse
// @Router /appointments/organization/{orgId} [get]
func (c *AppointmentController) GetOrganizationAppointments() {
	orgID, err := strconv.Atoi(c.Ctx.Param("orgId"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的机构ID",
			"data":    nil,
		})
		return
	}

	appointmentService := c.Container.GetService("appointment").(services.InterfaceAppointmentService)

	appointments, err := appointmentService.GetAppointmentsByOrganization(uint(orgID))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    appointments,
	})
}
