package container

import (
	"sync"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/services"

	"gorm.io/gorm"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config

	// 基础服务
	jwtService   services.InterfaceJWTService
	redisService services.InterfaceRedisService

	// MQTT通知服务
	notificationService services.InterfaceNotificationService

	// 业务服务
	accountService      services.InterfaceAccountService
	organizationService services.InterfaceOrganizationService
	impactService       services.InterfaceImpactService
	deviceService       services.InterfaceDeviceService
	matchingService     services.InterfaceMatchingService
	appointmentService  services.InterfaceAppointmentService

	mu sync.RWMutex
}

// NewServiceContainer 创建新的服务容器
func NewServiceContainer(db *gorm.DB, cfg *config.Config) *ServiceContainer {
	if db == nil {
		panic("数据库连接为空")
	}

	if cfg == nil {
		panic("配置为空")
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
	}
	container.initializeServices()
	return container
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 初始化基础服务
	c.jwtService = services.NewJWTService(c.config)
	c.redisService = services.NewRedisService(c.config)

	// 初始化MQTT通知服务，连接失败时降级为仅记录日志
	c.notificationService = services.NewNotificationService(c.config)
	if err := c.notificationService.Connect(); err != nil {
		config.Warning("MQTT通知服务连接失败，通知将被丢弃: %v", err)
	}

	// 初始化业务服务
	c.accountService = services.NewAccountService(c.db, c.config)
	c.organizationService = services.NewOrganizationService(c.db, c.config)
	c.impactService = services.NewImpactService(c.db, c.config, c.redisService)
	c.deviceService = services.NewDeviceService(c.db, c.config, c.impactService, c.notificationService)
	c.matchingService = services.NewMatchingService(c.db, c.config, c.notificationService)
	c.appointmentService = services.NewAppointmentService(c.db, c.config, c.notificationService)
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "jwt":
		return c.jwtService
	case "redis":
		return c.redisService
	case "notification":
		return c.notificationService
	case "account":
		return c.accountService
	case "organization":
		return c.organizationService
	case "impact":
		return c.impactService
	case "device":
		return c.deviceService
	case "matching":
		return c.matchingService
	case "appointment":
		return c.appointmentService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
