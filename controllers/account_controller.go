package controllers

import (
	"net/http"
	"strconv"

	"github.com/Abin2112/Greencycle-sub000/services"
	"github.com/Abin2112/Greencycle-sub000/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceAccountController 定义账户控制器接口
type InterfaceAccountController interface {
	GetAccounts()
	GetAccount()
	UpdateLocation()
	DeleteAccount()
}

// AccountController 处理账户相关的请求
type AccountController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewAccountController 创建一个新的账户控制器
func NewAccountController(ctx *gin.Context, container *container.ServiceContainer) *AccountController {
	return &AccountController{
		Ctx:       ctx,
		Container: container,
	}
}

// LocationRequest 位置更新请求
type LocationRequest struct {
	Latitude  float64 `json:"latitude" binding:"required" example:"31.2304"`
	Longitude float64 `json:"longitude" binding:"required" example:"121.4737"`
}

// HandleAccountFunc 返回一个处理账户请求的Gin处理函数
func HandleAccountFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewAccountController(ctx, container)

		switch method {
		case "getAccounts":
			controller.GetAccounts()
		case "getAccount":
			controller.GetAccount()
		case "updateLocation":
			controller.UpdateLocation()
		case "deleteAccount":
			controller.DeleteAccount()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// 1. GetAccounts 获取所有账户列表（仅运营角色）
// @Summary 获取所有账户
// @Description 获取所有账户的列表
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Account
// @Failure 500 {object} ErrorResponse
// @Router /accounts [get]
func (c *AccountController) GetAccounts() {
	accountService := c.Container.GetService("account").(services.InterfaceAccountService)

	accounts, err := accountService.GetAllAccounts()
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    accounts,
	})
}

// 2. GetAccount 获取当前账户信息
// @Summary 获取当前账户
// @Description 获取当前登录账户的信息
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /accounts/me [get]
func (c *AccountController) GetAccount() {
	actor := actorFromContext(c.Ctx)
	accountService := c.Container.GetService("account").(services.InterfaceAccountService)

	account, err := accountService.GetAccountByID(actor.AccountID)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    account,
	})
}

// 3. UpdateLocation 更新当前账户的位置
// @Summary 更新账户位置
// @Description 更新当前登录账户的经纬度，位置参与后续的匹配计算
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param location body LocationRequest true "经纬度"
// @Success 200 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Router /accounts/me/location [put]
func (c *AccountController) UpdateLocation() {
	var req LocationRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	actor := actorFromContext(c.Ctx)
	accountService := c.Container.GetService("account").(services.InterfaceAccountService)

	account, err := accountService.UpdateLocation(actor.AccountID, req.Latitude, req.Longitude)
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    account,
	})
}

// 4. DeleteAccount 删除账户（仅运营角色）
// @Summary 删除账户
// @Description 根据ID删除账户
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Success 200 {object} nil
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id} [delete]
func (c *AccountController) DeleteAccount() {
	accountID, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的账户ID",
			"data":    nil,
		})
		return
	}

	accountService := c.Container.GetService("account").(services.InterfaceAccountService)

	if err := accountService.DeleteAccount(uint(accountID)); err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    nil,
	})
}
