package services

import (
	"errors"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/models"

	"gorm.io/gorm"
)

// InterfaceOrganizationService defines the organization registry service interface
type InterfaceOrganizationService interface {
	GetAllOrganizations() ([]models.Organization, error)
	GetOrganizationByID(id uint) (*models.Organization, error)
	GetOrganizationByAccount(accountID uint) (*models.Organization, error)
	CreateOrganization(org *models.Organization) error
	UpdateOrganization(id uint, updates map[string]interface{}) (*models.Organization, error)
	UpdateVerificationStatus(id uint, status models.VerificationStatus) (*models.Organization, error)
	UpdateRating(id uint, rating float64) (*models.Organization, error)
	ResetCapacities() (int64, error)
	DeleteOrganization(id uint) error
}

// OrganizationService 提供回收机构相关的服务
type OrganizationService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewOrganizationService 创建一个新的机构服务
func NewOrganizationService(db *gorm.DB, cfg *config.Config) InterfaceOrganizationService {
	return &OrganizationService{
		DB:     db,
		Config: cfg,
	}
}

// 1 GetAllOrganizations 获取所有机构列表
func (s *OrganizationService) GetAllOrganizations() ([]models.Organization, error) {
	var orgs []models.Organization
	if err := s.DB.Order("created_at ASC").Find(&orgs).Error; err != nil {
		return nil, err
	}

	return orgs, nil
}

// 2 GetOrganizationByID 根据ID获取机构
func (s *OrganizationService) GetOrganizationByID(id uint) (*models.Organization, error) {
	var org models.Organization
	if err := s.DB.First(&org, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("回收机构不存在")
		}
		return nil, err
	}

	return &org, nil
}

// 3 GetOrganizationByAccount 根据账户ID获取机构
func (s *OrganizationService) GetOrganizationByAccount(accountID uint) (*models.Organization, error) {
	var org models.Organization
	if err := s.DB.Where("account_id = ?", accountID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("回收机构不存在")
		}
		return nil, err
	}

	return &org, nil
}

// 4 CreateOrganization 创建新机构，剩余容量初始化为月度容量
func (s *OrganizationService) CreateOrganization(org *models.Organization) error {
	if org.MonthlyCapacity <= 0 {
		return errors.New("月度回收容量必须大于0")
	}
	if org.ServiceCategories == "" {
		return errors.New("机构必须至少支持一种设备类别")
	}
	if org.ServiceRadiusKM <= 0 {
		org.ServiceRadiusKM = 20
	}
	if org.VerificationStatus == "" {
		org.VerificationStatus = models.VerificationStatusUnverified
	}

	org.RemainingCapacity = org.MonthlyCapacity

	return s.DB.Create(org).Error
}

// 5 UpdateOrganization 更新机构信息。容量计数器不允许通过本接口直接修改
func (s *OrganizationService) UpdateOrganization(id uint, updates map[string]interface{}) (*models.Organization, error) {
	org, err := s.GetOrganizationByID(id)
	if err != nil {
		return nil, err
	}

	// 剩余容量只能由预留/释放和重置操作变更
	delete(updates, "remaining_capacity")

	if err := s.DB.Model(org).Updates(updates).Error; err != nil {
		return nil, err
	}

	return s.GetOrganizationByID(id)
}

// 6 UpdateVerificationStatus 更新机构认证状态（仅运营角色）
func (s *OrganizationService) UpdateVerificationStatus(id uint, status models.VerificationStatus) (*models.Organization, error) {
	if !status.IsValid() {
		return nil, errors.New("无效的认证状态")
	}

	org, err := s.GetOrganizationByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.DB.Model(org).Update("verification_status", status).Error; err != nil {
		return nil, err
	}

	return s.GetOrganizationByID(id)
}

// 7 UpdateRating 更新机构评分
func (s *OrganizationService) UpdateRating(id uint, rating float64) (*models.Organization, error) {
	if rating < 0 || rating > 5 {
		return nil, errors.New("评分必须在0到5之间")
	}

	org, err := s.GetOrganizationByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.DB.Model(org).Update("rating", rating).Error; err != nil {
		return nil, err
	}

	return s.GetOrganizationByID(id)
}

// 8 ResetCapacities 将所有机构的剩余容量重置为月度容量。
// 重置周期由外部定时任务决定，本服务只提供重置动作本身；
// manual 策略下运营按机构单独调整容量，批量重置停用
func (s *OrganizationService) ResetCapacities() (int64, error) {
	if s.Config != nil && s.Config.CapacityResetMode == "manual" {
		return 0, errors.New("容量重置策略必须为 monthly 才能批量重置")
	}

	result := s.DB.Model(&models.Organization{}).
		Where("remaining_capacity <> monthly_capacity").
		Update("remaining_capacity", gorm.Expr("monthly_capacity"))
	if result.Error != nil {
		return 0, result.Error
	}

	config.Info("已重置 %d 家机构的剩余回收容量", result.RowsAffected)
	return result.RowsAffected, nil
}

// 9 DeleteOrganization 删除机构
func (s *OrganizationService) DeleteOrganization(id uint) error {
	org, err := s.GetOrganizationByID(id)
	if err != nil {
		return err
	}

	return s.DB.Delete(org).Error
}

// reserveOrganizationCapacity 预留一个回收名额。
// 单条原子的条件递减，剩余容量已经为0时返回 ErrCapacityExhausted
func reserveOrganizationCapacity(tx *gorm.DB, orgID uint) error {
	result := tx.Model(&models.Organization{}).
		Where("id = ? AND remaining_capacity > 0", orgID).
		Update("remaining_capacity", gorm.Expr("remaining_capacity - 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCapacityExhausted
	}

	return nil
}

// releaseOrganizationCapacity 归还一个回收名额，上限不超过月度容量
func releaseOrganizationCapacity(tx *gorm.DB, orgID uint) error {
	return tx.Model(&models.Organization{}).
		Where("id = ? AND remaining_capacity < monthly_capacity", orgID).
		Update("remaining_capacity", gorm.Expr("remaining_capacity + 1")).Error
}
