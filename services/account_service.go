package services

import (
	"errors"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/models"
	"github.com/Abin2112/Greencycle-sub000/utils"

	"gorm.io/gorm"
)

// InterfaceAccountService defines the account service interface
type InterfaceAccountService interface {
	Register(username, password, email, phone string, role models.Role) (*models.Account, error)
	GetAccountByID(id uint) (*models.Account, error)
	GetAccountByUsername(username string) (*models.Account, error)
	GetAllAccounts() ([]models.Account, error)
	VerifyCredentials(username, password string) (*models.Account, error)
	UpdateLocation(id uint, latitude, longitude float64) (*models.Account, error)
	DeleteAccount(id uint) error
}

// AccountService 提供账户相关的服务
type AccountService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewAccountService 创建一个新的账户服务
func NewAccountService(db *gorm.DB, cfg *config.Config) InterfaceAccountService {
	return &AccountService{
		DB:     db,
		Config: cfg,
	}
}

// 1 Register 注册新账户
func (s *AccountService) Register(username, password, email, phone string, role models.Role) (*models.Account, error) {
	if username == "" || password == "" {
		return nil, errors.New("用户名和密码不能为空")
	}
	if role == "" {
		role = models.RoleSubmitter
	}
	if !role.IsValid() {
		return nil, errors.New("无效的账户角色")
	}

	// 验证用户名唯一性
	var count int64
	if err := s.DB.Model(&models.Account{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("用户名已存在")
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Username: username,
		Password: hashed,
		Email:    email,
		Phone:    phone,
		Role:     role,
	}

	if err := s.DB.Create(account).Error; err != nil {
		return nil, err
	}

	return account, nil
}

// 2 GetAccountByID 根据ID获取账户
func (s *AccountService) GetAccountByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := s.DB.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("账户不存在")
		}
		return nil, err
	}

	return &account, nil
}

// 3 GetAccountByUsername 根据用户名获取账户
func (s *AccountService) GetAccountByUsername(username string) (*models.Account, error) {
	var account models.Account
	if err := s.DB.Where("username = ?", username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("账户不存在")
		}
		return nil, err
	}

	return &account, nil
}

// 4 GetAllAccounts 获取所有账户（仅运营角色）
func (s *AccountService) GetAllAccounts() ([]models.Account, error) {
	var accounts []models.Account
	if err := s.DB.Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}

	return accounts, nil
}

// 5 VerifyCredentials 校验登录凭证
func (s *AccountService) VerifyCredentials(username, password string) (*models.Account, error) {
	account, err := s.GetAccountByUsername(username)
	if err != nil {
		return nil, errors.New("用户名或密码错误")
	}

	if !utils.CheckPassword(password, account.Password) {
		return nil, errors.New("用户名或密码错误")
	}

	return account, nil
}

// 6 UpdateLocation 更新提交者位置（匹配引擎消费）
func (s *AccountService) UpdateLocation(id uint, latitude, longitude float64) (*models.Account, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return nil, errors.New("无效的经纬度")
	}

	account, err := s.GetAccountByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.DB.Model(account).Updates(map[string]interface{}{
		"latitude":  latitude,
		"longitude": longitude,
	}).Error; err != nil {
		return nil, err
	}

	return s.GetAccountByID(id)
}

// 7 DeleteAccount 删除账户
func (s *AccountService) DeleteAccount(id uint) error {
	account, err := s.GetAccountByID(id)
	if err != nil {
		return err
	}

	return s.DB.Delete(account).Error
}
