package services

import (
	"errors"
	"fmt"
	"math"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/models"

	"gorm.io/gorm"
)

// ImpactMetrics 一次最终处置产生的环保指标与积分
type ImpactMetrics struct {
	WaterSavedL      float64 `json:"water_saved_l"`
	CO2SavedKG       float64 `json:"co2_saved_kg"`
	ToxicPreventedKG float64 `json:"toxic_prevented_kg"`
	Points           int     `json:"points"`
}

// ImpactSummary 提交者的累计环保成果
type ImpactSummary struct {
	AccountID             uint           `json:"account_id"`
	TotalPoints           int            `json:"total_points"`
	TotalWaterSavedL      float64        `json:"total_water_saved_l"`
	TotalCO2SavedKG       float64        `json:"total_co2_saved_kg"`
	TotalToxicPreventedKG float64        `json:"total_toxic_prevented_kg"`
	CompletedDevices      int64          `json:"completed_devices"`
	Badges                []models.Badge `json:"badges"`
}

// InterfaceImpactService defines the impact and rewards calculator interface
type InterfaceImpactService interface {
	Calculate(category models.DeviceCategory, condition models.DeviceCondition, weightKG *float64, disposition models.DeviceStatus) (ImpactMetrics, error)
	ProcessDeviceImpact(deviceID uint) error
	GetImpactSummary(accountID uint) (*ImpactSummary, error)
}

// ImpactService 提供环保成果计算与积分奖励服务
type ImpactService struct {
	DB           *gorm.DB
	Config       *config.Config
	RedisService InterfaceRedisService
}

// NewImpactService 创建一个新的环保成果服务
func NewImpactService(db *gorm.DB, cfg *config.Config, redisService InterfaceRedisService) InterfaceImpactService {
	return &ImpactService{
		DB:           db,
		Config:       cfg,
		RedisService: redisService,
	}
}

// impactBase 每个设备类别的基准环保指标，按参考重量标定
type impactBase struct {
	WaterL            float64
	CO2KG             float64
	ToxicKG           float64
	ReferenceWeightKG float64
}

// 各类别基准指标表。声明了重量的设备按 重量/参考重量 线性缩放
var impactBaseTable = map[models.DeviceCategory]impactBase{
	models.DeviceCategoryPhone:   {WaterL: 12000, CO2KG: 55, ToxicKG: 0.12, ReferenceWeightKG: 0.2},
	models.DeviceCategoryLaptop:  {WaterL: 19000, CO2KG: 210, ToxicKG: 0.45, ReferenceWeightKG: 1.8},
	models.DeviceCategoryTablet:  {WaterL: 14000, CO2KG: 90, ToxicKG: 0.2, ReferenceWeightKG: 0.5},
	models.DeviceCategoryDesktop: {WaterL: 24000, CO2KG: 350, ToxicKG: 0.9, ReferenceWeightKG: 8},
	models.DeviceCategoryBattery: {WaterL: 800, CO2KG: 6, ToxicKG: 0.3, ReferenceWeightKG: 0.05},
	models.DeviceCategoryOther:   {WaterL: 5000, CO2KG: 40, ToxicKG: 0.15, ReferenceWeightKG: 1},
}

// 成色系数
var conditionMultipliers = map[models.DeviceCondition]float64{
	models.DeviceConditionExcellent: 1.2,
	models.DeviceConditionGood:      1.0,
	models.DeviceConditionFair:      0.8,
	models.DeviceConditionPoor:      0.5,
}

// 处置方式系数
var dispositionMultipliers = map[models.DeviceStatus]float64{
	models.DeviceStatusRefurbished: 1.3,
	models.DeviceStatusDonated:     1.1,
	models.DeviceStatusRecycled:    1.0,
}

// 每千克二氧化碳减排量对应的积分
const pointsPerKGCO2 = 10.0

// badgeRule 徽章授予规则，按顺序评估
type badgeRule struct {
	Metric    string // "points" 或 "co2"
	Threshold float64
	Code      string
	Name      string
}

// 徽章阈值规则表，每个徽章最多授予一次
var badgeRules = []badgeRule{
	{Metric: "points", Threshold: 100, Code: "green_starter", Name: "环保新人"},
	{Metric: "points", Threshold: 500, Code: "green_contributor", Name: "环保达人"},
	{Metric: "points", Threshold: 2000, Code: "green_champion", Name: "环保先锋"},
	{Metric: "co2", Threshold: 100, Code: "carbon_saver", Name: "减碳卫士"},
	{Metric: "co2", Threshold: 1000, Code: "carbon_hero", Name: "减碳英雄"},
}

// 1 Calculate 纯函数：由设备属性与最终处置方式计算环保指标与积分。
// 指标 = 基准值 × 成色系数 × 处置系数 × 重量缩放，保留两位小数；
// 积分 = 二氧化碳减排量 × 固定系数，向下取整
func (s *ImpactService) Calculate(category models.DeviceCategory, condition models.DeviceCondition, weightKG *float64, disposition models.DeviceStatus) (ImpactMetrics, error) {
	base, ok := impactBaseTable[category]
	if !ok {
		return ImpactMetrics{}, errors.New("无效的设备类别")
	}

	conditionFactor, ok := conditionMultipliers[condition]
	if !ok {
		return ImpactMetrics{}, errors.New("无效的设备成色")
	}

	dispositionFactor, ok := dispositionMultipliers[disposition]
	if !ok {
		return ImpactMetrics{}, errors.New("无效的处置方式")
	}

	weightFactor := 1.0
	if weightKG != nil && *weightKG > 0 {
		weightFactor = *weightKG / base.ReferenceWeightKG
	}

	factor := conditionFactor * dispositionFactor * weightFactor
	co2 := round2(base.CO2KG * factor)

	return ImpactMetrics{
		WaterSavedL:      round2(base.WaterL * factor),
		CO2SavedKG:       co2,
		ToxicPreventedKG: round2(base.ToxicKG * factor),
		Points:           int(math.Floor(co2 * pointsPerKGCO2)),
	}, nil
}

// 2 ProcessDeviceImpact 为到达终态的设备落账环保成果。
// 幂等入口：先对设备 impact_processed 做一次原子的比较更新，
// 抢不到标记说明已经处理过，直接返回；整个落账在一个事务内完成，
// 失败时标记随事务回滚，支持安全重试
func (s *ImpactService) ProcessDeviceImpact(deviceID uint) error {
	var ownerID uint

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Device{}).
			Where("id = ? AND impact_processed = ?", deviceID, false).
			Update("impact_processed", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// 标记已置位，重试调用不做任何重算
			return nil
		}

		var device models.Device
		if err := tx.First(&device, deviceID).Error; err != nil {
			return err
		}

		if !device.Status.IsDisposition() {
			return fmt.Errorf("设备 %d 状态 %s 不是有效的最终处置", deviceID, device.Status)
		}

		metrics, err := s.Calculate(device.Category, device.Condition, device.WeightKG, device.Status)
		if err != nil {
			return err
		}

		record := &models.ImpactRecord{
			DeviceID:         device.ID,
			Disposition:      device.Status,
			WaterSavedL:      metrics.WaterSavedL,
			CO2SavedKG:       metrics.CO2SavedKG,
			ToxicPreventedKG: metrics.ToxicPreventedKG,
			Points:           metrics.Points,
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		// 累计值用原子自增，避免读改写
		if err := tx.Model(&models.Account{}).
			Where("id = ?", device.OwnerID).
			Updates(map[string]interface{}{
				"total_points":             gorm.Expr("total_points + ?", metrics.Points),
				"total_water_saved_l":      gorm.Expr("total_water_saved_l + ?", metrics.WaterSavedL),
				"total_co2_saved_kg":       gorm.Expr("total_co2_saved_kg + ?", metrics.CO2SavedKG),
				"total_toxic_prevented_kg": gorm.Expr("total_toxic_prevented_kg + ?", metrics.ToxicPreventedKG),
			}).Error; err != nil {
			return err
		}

		ownerID = device.OwnerID
		return s.evaluateBadges(tx, device.OwnerID)
	})
	if err != nil {
		return err
	}

	// 落账成功后失效缓存
	if ownerID != 0 && s.RedisService != nil {
		if err := s.RedisService.InvalidateImpactSummary(ownerID); err != nil {
			config.Warning("账户 %d 环保成果缓存失效失败: %v", ownerID, err)
		}
	}

	return nil
}

// evaluateBadges 按规则表顺序评估徽章阈值，唯一索引兜底并发下的重复授予
func (s *ImpactService) evaluateBadges(tx *gorm.DB, accountID uint) error {
	var account models.Account
	if err := tx.First(&account, accountID).Error; err != nil {
		return err
	}

	for _, rule := range badgeRules {
		var value float64
		switch rule.Metric {
		case "points":
			value = float64(account.TotalPoints)
		case "co2":
			value = account.TotalCO2SavedKG
		default:
			continue
		}

		if value < rule.Threshold {
			continue
		}

		badge := models.Badge{
			AccountID: accountID,
			Code:      rule.Code,
			Name:      rule.Name,
		}
		if err := tx.Where("account_id = ? AND code = ?", accountID, rule.Code).
			FirstOrCreate(&badge).Error; err != nil {
			return err
		}
	}

	return nil
}

// 3 GetImpactSummary 获取提交者的累计环保成果（带缓存）
func (s *ImpactService) GetImpactSummary(accountID uint) (*ImpactSummary, error) {
	if s.RedisService != nil {
		var cached ImpactSummary
		if err := s.RedisService.GetCachedImpactSummary(accountID, &cached); err == nil {
			return &cached, nil
		}
	}

	var account models.Account
	if err := s.DB.Preload("Badges").First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("账户不存在")
		}
		return nil, err
	}

	var completed int64
	if err := s.DB.Model(&models.ImpactRecord{}).
		Joins("JOIN devices ON devices.id = impact_records.device_id").
		Where("devices.owner_id = ?", accountID).
		Count(&completed).Error; err != nil {
		return nil, err
	}

	summary := &ImpactSummary{
		AccountID:             account.ID,
		TotalPoints:           account.TotalPoints,
		TotalWaterSavedL:      account.TotalWaterSavedL,
		TotalCO2SavedKG:       account.TotalCO2SavedKG,
		TotalToxicPreventedKG: account.TotalToxicPreventedKG,
		CompletedDevices:      completed,
		Badges:                account.Badges,
	}

	if s.RedisService != nil {
		if err := s.RedisService.CacheImpactSummary(accountID, summary); err != nil {
			config.Warning("账户 %d 环保成果缓存写入失败: %v", accountID, err)
		}
	}

	return summary, nil
}

// round2 保留两位小数
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
