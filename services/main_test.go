package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

// newTestDB 为每个测试创建独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:services_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Organization{},
		&models.Device{},
		&models.PickupAppointment{},
		&models.ImpactRecord{},
		&models.Badge{},
	); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		ImpactCacheTTLMinutes: 10,
	}
}

func createTestAccount(t *testing.T, db *gorm.DB, username string, role models.Role, lat, lon float64) *models.Account {
	t.Helper()

	account := &models.Account{
		Username:  username,
		Password:  "hashed",
		Role:      role,
		Latitude:  lat,
		Longitude: lon,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("创建测试账户失败: %v", err)
	}
	return account
}

func createTestOrganization(t *testing.T, db *gorm.DB, name string, lat, lon, radiusKM float64, categories string, capacity int, rating float64) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name:               name,
		VerificationStatus: models.VerificationStatusVerified,
		Latitude:           lat,
		Longitude:          lon,
		ServiceRadiusKM:    radiusKM,
		ServiceCategories:  categories,
		MonthlyCapacity:    capacity,
		RemainingCapacity:  capacity,
		Rating:             rating,
	}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("创建测试机构失败: %v", err)
	}
	return org
}

func createTestDevice(t *testing.T, db *gorm.DB, ownerID uint, category models.DeviceCategory, condition models.DeviceCondition, status models.DeviceStatus, orgID *uint) *models.Device {
	t.Helper()

	device := &models.Device{
		OwnerID:        ownerID,
		Category:       category,
		Condition:      condition,
		Status:         status,
		TrackingCode:   fmt.Sprintf("GC-TEST%07d", atomic.AddInt64(&testDBCounter, 1)),
		OrganizationID: orgID,
	}
	if err := db.Create(device).Error; err != nil {
		t.Fatalf("创建测试设备失败: %v", err)
	}
	return device
}

func createTestAppointment(t *testing.T, db *gorm.DB, deviceID, orgID uint, status models.AppointmentStatus, windowStart, windowEnd time.Time) *models.PickupAppointment {
	t.Helper()

	appointment := &models.PickupAppointment{
		DeviceID:       deviceID,
		OrganizationID: orgID,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		Status:         status,
	}
	if err := db.Create(appointment).Error; err != nil {
		t.Fatalf("创建测试预约失败: %v", err)
	}
	return appointment
}

func reloadDevice(t *testing.T, db *gorm.DB, id uint) *models.Device {
	t.Helper()

	var device models.Device
	if err := db.First(&device, id).Error; err != nil {
		t.Fatalf("读取设备失败: %v", err)
	}
	return &device
}

func reloadOrganization(t *testing.T, db *gorm.DB, id uint) *models.Organization {
	t.Helper()

	var org models.Organization
	if err := db.First(&org, id).Error; err != nil {
		t.Fatalf("读取机构失败: %v", err)
	}
	return &org
}
