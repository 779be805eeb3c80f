package controllers

import (
	"net/http"

	"github.com/Abin2112/Greencycle-sub000/models"
	"github.com/Abin2112/Greencycle-sub000/services"
	"github.com/Abin2112/Greencycle-sub000/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceJWTController 定义认证控制器接口
type InterfaceJWTController interface {
	Login()
	Register()
}

// JWTController 处理认证相关的请求
type JWTController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewJWTController 创建一个新的认证控制器
func NewJWTController(ctx *gin.Context, container *container.ServiceContainer) *JWTController {
	return &JWTController{
		Ctx:       ctx,
		Container: container,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"greenuser"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required" example:"greenuser"`
	Password string `json:"password" binding:"required" example:"secret123"`
	Email    string `json:"email" example:"user@example.com"`
	Phone    string `json:"phone" example:"13800000000"`
	Role     string `json:"role" example:"submitter"` // submitter, organization, operator
}

// HandleJWTFunc 返回一个处理认证请求的Gin处理函数
func HandleJWTFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewJWTController(ctx, container)

		switch method {
		case "login":
			controller.Login()
		case "register":
			controller.Register()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// 1. Login 账户登录
// @Summary 账户登录
// @Description 校验用户名密码并签发JWT令牌，机构账户的令牌中携带机构ID
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "登录凭证"
// @Success 200 {object} map[string]interface{} "包含token与账户信息"
// @Failure 401 {object} ErrorResponse "用户名或密码错误"
// @Router /auth/login [post]
func (c *JWTController) Login() {
	var req LoginRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	accountService := c.Container.GetService("account").(services.InterfaceAccountService)

	account, err := accountService.VerifyCredentials(req.Username, req.Password)
	if err != nil {
		c.Ctx.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	// 机构账户需要在令牌中携带机构ID，供状态机做归属校验
	var organizationID *uint
	if account.Role == models.RoleOrganization {
		orgService := c.Container.GetService("organization").(services.InterfaceOrganizationService)
		if org, err := orgService.GetOrganizationByAccount(account.ID); err == nil {
			organizationID = &org.ID
		}
	}

	jwtService := c.Container.GetService("jwt").(services.InterfaceJWTService)

	token, err := jwtService.GenerateToken(account.ID, string(account.Role), organizationID)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "签发令牌失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"token":   token,
			"account": account,
		},
	})
}

// 2. Register 账户注册
// @Summary 账户注册
// @Description 注册新账户，默认角色为 submitter
// @Tags auth
// @Accept json
// @Produce json
// @Param account body RegisterRequest true "注册信息"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Router /auth/register [post]
func (c *JWTController) Register() {
	var req RegisterRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	// 运营账户不允许自助注册
	if req.Role == string(models.RoleOperator) {
		c.Ctx.JSON(http.StatusForbidden, gin.H{
			"code":    403,
			"message": "运营账户不允许自助注册",
			"data":    nil,
		})
		return
	}

	accountService := c.Container.GetService("account").(services.InterfaceAccountService)

	account, err := accountService.Register(req.Username, req.Password, req.Email, req.Phone, models.Role(req.Role))
	if err != nil {
		respondError(c.Ctx, err)
		return
	}

	c.Ctx.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "成功",
		"data":    account,
	})
}
