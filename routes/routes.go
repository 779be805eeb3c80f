package routes

import (
	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/controllers"
	_ "github.com/Abin2112/Greencycle-sub000/docs"
	"github.com/Abin2112/Greencycle-sub000/middleware"
	"github.com/Abin2112/Greencycle-sub000/services/container"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// 初始化 Gin
	r := gin.Default()

	// 添加 CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
	// 设置正确的Content-Type，确保UTF-8编码
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")
		c.Next()
	})
	// 创建服务容器
	serviceContainer := container.NewServiceContainer(db, cfg)
	// 初始化中间件
	middleware.InitAuthMiddleware(cfg)
	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 注册路由
	registerRoutes(r, serviceContainer)
	return r
}

// registerRoutes 配置所有API路由
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	// API 路由根路径
	api := r.Group("/api")
	// 注册公共路由
	registerPublicRoutes(api, container)
	// 注册需要认证的路由
	registerAuthenticatedRoutes(api, container)
	// 注册运营角色专属路由
	registerOperatorRoutes(api, container)
	// 注册机构角色路由
	registerOrganizationRoutes(api, container)
}

// registerPublicRoutes 注册公共路由
func registerPublicRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 健康检查
	api.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// 认证路由，注册和登录做IP限流防止滥用
	public := api.Group("/")
	public.Use(middleware.RateLimitByIP(5, 10))
	public.POST("/auth/login", controllers.HandleJWTFunc(container, "login"))
	public.POST("/auth/register", controllers.HandleJWTFunc(container, "register"))
}

// registerAuthenticatedRoutes 注册需要认证的路由
func registerAuthenticatedRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 添加认证中间件，任意已登录角色可访问
	auth := api.Group("/")
	auth.Use(middleware.Authentication())

	// 账户路由
	auth.Group("/accounts").GET("/me", controllers.HandleAccountFunc(container, "getAccount"))
	auth.Group("/accounts").PUT("/me/location", controllers.HandleAccountFunc(container, "updateLocation"))

	// 设备路由
	auth.Group("/devices").GET("/mine", controllers.HandleDeviceFunc(container, "getMyDevices"))
	auth.Group("/devices").GET("/:id", controllers.HandleDeviceFunc(container, "getDevice"))
	auth.Group("/devices").POST("", controllers.HandleDeviceFunc(container, "createDevice"))
	auth.Group("/devices").POST("/:id/status", controllers.HandleDeviceFunc(container, "advanceStatus"))
	// 匹配路由
	auth.Group("/devices").POST("/:id/match", controllers.HandleDeviceFunc(container, "requestMatch"))
	auth.Group("/devices").GET("/:id/candidates", controllers.HandleDeviceFunc(container, "getCandidates"))

	// 机构只读路由
	auth.Group("/organizations").GET("", controllers.HandleOrganizationFunc(container, "getOrganizations"))
	auth.Group("/organizations").GET("/:id", controllers.HandleOrganizationFunc(container, "getOrganization"))

	// 预约路由
	auth.Group("/appointments").POST("", controllers.HandleAppointmentFunc(container, "schedule"))
	auth.Group("/appointments").GET("/:id", controllers.HandleAppointmentFunc(container, "getAppointment"))
	auth.Group("/appointments").PUT("/:id/reschedule", controllers.HandleAppointmentFunc(container, "reschedule"))
	auth.Group("/appointments").POST("/:id/cancel", controllers.HandleAppointmentFunc(container, "cancel"))
	auth.Group("/appointments").GET("/device/:deviceId", controllers.HandleAppointmentFunc(container, "getDeviceAppointments"))

	// 环保成果路由
	auth.Group("/impact").GET("/summary", controllers.HandleImpactFunc(container, "getMySummary"))
	auth.Group("/impact").POST("/preview", controllers.HandleImpactFunc(container, "previewImpact"))
}

// registerOperatorRoutes 注册运营角色专属路由
func registerOperatorRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	operator := api.Group("/")
	operator.Use(middleware.AuthenticateOperator())

	// 账户管理路由
	operator.Group("/accounts").GET("", controllers.HandleAccountFunc(container, "getAccounts"))
	operator.Group("/accounts").DELETE("/:id", controllers.HandleAccountFunc(container, "deleteAccount"))

	// 设备管理路由
	operator.Group("/devices").GET("", controllers.HandleDeviceFunc(container, "getDevices"))

	// 机构管理路由
	operator.Group("/organizations").POST("", controllers.HandleOrganizationFunc(container, "createOrganization"))
	operator.Group("/organizations").PUT("/:id", controllers.HandleOrganizationFunc(container, "updateOrganization"))
	operator.Group("/organizations").PUT("/:id/verification", controllers.HandleOrganizationFunc(container, "updateVerification"))
	operator.Group("/organizations").PUT("/:id/rating", controllers.HandleOrganizationFunc(container, "updateRating"))
	operator.Group("/organizations").POST("/capacity/reset", controllers.HandleOrganizationFunc(container, "resetCapacities"))
	operator.Group("/organizations").DELETE("/:id", controllers.HandleOrganizationFunc(container, "deleteOrganization"))

	// 过期预约清理路由，供外部定时任务调用
	operator.Group("/appointments").POST("/expired/sweep", controllers.HandleAppointmentFunc(container, "cancelExpired"))

	// 环保成果管理路由
	operator.Group("/impact").GET("/summary/:id", controllers.HandleImpactFunc(container, "getAccountSummary"))
}

// registerOrganizationRoutes 注册机构角色路由
func registerOrganizationRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	org := api.Group("/")
	org.Use(middleware.AuthenticateOrganization())

	// 机构侧预约路由
	org.Group("/appointments").POST("/:id/confirm", controllers.HandleAppointmentFunc(container, "confirm"))
	org.Group("/appointments").POST("/:id/start", controllers.HandleAppointmentFunc(container, "start"))
	org.Group("/appointments").GET("/organization/:orgId", controllers.HandleAppointmentFunc(container, "getOrganizationAppointments"))
}
