package services

import (
	"errors"
	"sort"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/models"
	"github.com/Abin2112/Greencycle-sub000/utils"

	"gorm.io/gorm"
)

// MatchCandidate 匹配引擎排序后的候选机构
type MatchCandidate struct {
	Organization models.Organization `json:"organization"`
	DistanceKM   float64             `json:"distance_km"`
}

// InterfaceMatchingService defines the matching engine interface
type InterfaceMatchingService interface {
	RankCandidates(device *models.Device, lat, lon float64) ([]MatchCandidate, error)
	PreviewCandidates(deviceID uint) ([]MatchCandidate, error)
	RequestMatch(deviceID uint) (*models.Organization, error)
}

// MatchingService 负责把待匹配设备分配给合适的回收机构
type MatchingService struct {
	DB       *gorm.DB
	Config   *config.Config
	Notifier InterfaceNotificationService
}

// NewMatchingService 创建一个新的匹配服务
func NewMatchingService(db *gorm.DB, cfg *config.Config, notifier InterfaceNotificationService) InterfaceMatchingService {
	return &MatchingService{
		DB:       db,
		Config:   cfg,
		Notifier: notifier,
	}
}

// 1 RankCandidates 基于机构快照生成确定性的候选列表，不做任何写操作。
// 过滤条件: 已认证、支持设备类别、剩余容量大于0、提交者在服务半径内。
// 排序: 距离升序，评分降序，建档时间升序兜底
func (s *MatchingService) RankCandidates(device *models.Device, lat, lon float64) ([]MatchCandidate, error) {
	var orgs []models.Organization
	if err := s.DB.
		Where("verification_status = ? AND remaining_capacity > 0", models.VerificationStatusVerified).
		Find(&orgs).Error; err != nil {
		return nil, err
	}

	candidates := make([]MatchCandidate, 0, len(orgs))
	for _, org := range orgs {
		if !org.ServesCategory(device.Category) {
			continue
		}

		distance := utils.HaversineKM(lat, lon, org.Latitude, org.Longitude)
		if distance > org.ServiceRadiusKM {
			continue
		}

		candidates = append(candidates, MatchCandidate{
			Organization: org,
			DistanceKM:   distance,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].DistanceKM != candidates[j].DistanceKM {
			return candidates[i].DistanceKM < candidates[j].DistanceKM
		}
		if candidates[i].Organization.Rating != candidates[j].Organization.Rating {
			return candidates[i].Organization.Rating > candidates[j].Organization.Rating
		}
		return candidates[i].Organization.CreatedAt.Before(candidates[j].Organization.CreatedAt)
	})

	return candidates, nil
}

// 2 PreviewCandidates 只读查看设备当前的候选机构列表
func (s *MatchingService) PreviewCandidates(deviceID uint) ([]MatchCandidate, error) {
	device, owner, err := s.loadDeviceAndOwner(deviceID)
	if err != nil {
		return nil, err
	}

	return s.RankCandidates(device, owner.Latitude, owner.Longitude)
}

// 3 RequestMatch 为待匹配设备预留一家机构。
// 先做纯排序，再按名次逐个尝试原子预留；预留与设备状态流转在同一事务内要么都成功要么都回滚。
// 输掉容量竞争只是换下一名候选，整个列表耗尽才返回 ErrNoEligibleOrganization
func (s *MatchingService) RequestMatch(deviceID uint) (*models.Organization, error) {
	device, owner, err := s.loadDeviceAndOwner(deviceID)
	if err != nil {
		return nil, err
	}

	if device.Status != models.DeviceStatusAwaitingMatch {
		return nil, ErrInvalidTransition
	}

	candidates, err := s.RankCandidates(device, owner.Latitude, owner.Longitude)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		orgID := candidate.Organization.ID

		err := s.DB.Transaction(func(tx *gorm.DB) error {
			if err := reserveOrganizationCapacity(tx, orgID); err != nil {
				return err
			}

			// 设备状态流转与容量预留绑定在同一事务：流转失败则预留回滚
			result := tx.Model(&models.Device{}).
				Where("id = ? AND status = ?", deviceID, models.DeviceStatusAwaitingMatch).
				Updates(map[string]interface{}{
					"status":          models.DeviceStatusMatched,
					"organization_id": orgID,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrInvalidTransition
			}

			return nil
		})

		if err == nil {
			config.Info("设备 %d 已匹配机构 %d（距离 %.2f 千米）", deviceID, orgID, candidate.DistanceKM)

			if s.Notifier != nil {
				if notifyErr := s.Notifier.PublishSystemMessage("device_matched", map[string]interface{}{
					"device_id":       deviceID,
					"organization_id": orgID,
					"distance_km":     candidate.DistanceKM,
				}); notifyErr != nil {
					config.Warning("设备 %d 匹配通知发送失败: %v", deviceID, notifyErr)
				}
			}

			org := candidate.Organization
			org.RemainingCapacity--
			return &org, nil
		}

		// 输掉预留竞争，尝试下一名候选
		if errors.Is(err, ErrCapacityExhausted) {
			continue
		}

		// 设备状态已被并发请求改变，重试没有意义
		return nil, err
	}

	return nil, ErrNoEligibleOrganization
}

// loadDeviceAndOwner 加载设备与其提交者（提交者坐标来自档案协作方）
func (s *MatchingService) loadDeviceAndOwner(deviceID uint) (*models.Device, *models.Account, error) {
	var device models.Device
	if err := s.DB.First(&device, deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.New("设备不存在")
		}
		return nil, nil, err
	}

	var owner models.Account
	if err := s.DB.First(&owner, device.OwnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.New("提交者账户不存在")
		}
		return nil, nil, err
	}

	return &device, &owner, nil
}
