package services

import (
	"errors"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/models"
	"github.com/Abin2112/Greencycle-sub000/utils"

	"gorm.io/gorm"
)

// Actor 表示触发状态流转的调用方身份，由认证中间件从JWT声明中还原
type Actor struct {
	AccountID      uint
	Role           models.Role
	OrganizationID *uint
}

// InterfaceDeviceService defines the device lifecycle service interface
type InterfaceDeviceService interface {
	CreateDevice(ownerID uint, category models.DeviceCategory, condition models.DeviceCondition, weightKG *float64) (*models.Device, error)
	GetDeviceByID(id uint) (*models.Device, error)
	GetDeviceByTrackingCode(code string) (*models.Device, error)
	GetDevicesByOwner(ownerID uint) ([]models.Device, error)
	GetAllDevices(query models.PaginationQuery) ([]models.Device, models.PaginationResult, error)
	AdvanceStatus(deviceID uint, expected, target models.DeviceStatus, actor Actor) (*models.Device, error)
}

// DeviceService 提供设备生命周期相关的服务
type DeviceService struct {
	DB            *gorm.DB
	Config        *config.Config
	ImpactService InterfaceImpactService
	Notifier      InterfaceNotificationService
}

// NewDeviceService 创建一个新的设备服务
func NewDeviceService(db *gorm.DB, cfg *config.Config, impactService InterfaceImpactService, notifier InterfaceNotificationService) InterfaceDeviceService {
	return &DeviceService{
		DB:            db,
		Config:        cfg,
		ImpactService: impactService,
		Notifier:      notifier,
	}
}

// legalTransitions 设备状态流转邻接表，表中不存在的边一律拒绝
var legalTransitions = map[models.DeviceStatus][]models.DeviceStatus{
	models.DeviceStatusUploaded:      {models.DeviceStatusAwaitingMatch, models.DeviceStatusCancelled},
	models.DeviceStatusAwaitingMatch: {models.DeviceStatusMatched, models.DeviceStatusCancelled},
	models.DeviceStatusMatched:       {models.DeviceStatusPickedUp, models.DeviceStatusCancelled},
	models.DeviceStatusPickedUp:      {models.DeviceStatusReceived},
	models.DeviceStatusReceived:      {models.DeviceStatusProcessing},
	models.DeviceStatusProcessing: {
		models.DeviceStatusRefurbished,
		models.DeviceStatusDonated,
		models.DeviceStatusRecycled,
	},
}

type transitionEdge struct {
	From models.DeviceStatus
	To   models.DeviceStatus
}

// transitionRoles 每条边允许的触发角色。
// awaiting_match → matched 不在表中：该边只能由匹配引擎在预留容量的同一事务内触发
var transitionRoles = map[transitionEdge][]models.Role{
	{models.DeviceStatusUploaded, models.DeviceStatusAwaitingMatch}:     {models.RoleSubmitter, models.RoleOperator},
	{models.DeviceStatusMatched, models.DeviceStatusPickedUp}:           {models.RoleOrganization, models.RoleOperator},
	{models.DeviceStatusPickedUp, models.DeviceStatusReceived}:          {models.RoleOrganization},
	{models.DeviceStatusReceived, models.DeviceStatusProcessing}:        {models.RoleOrganization, models.RoleOperator},
	{models.DeviceStatusProcessing, models.DeviceStatusRefurbished}:     {models.RoleOrganization, models.RoleOperator},
	{models.DeviceStatusProcessing, models.DeviceStatusDonated}:         {models.RoleOrganization, models.RoleOperator},
	{models.DeviceStatusProcessing, models.DeviceStatusRecycled}:        {models.RoleOrganization, models.RoleOperator},
	{models.DeviceStatusUploaded, models.DeviceStatusCancelled}:         {models.RoleSubmitter, models.RoleOperator},
	{models.DeviceStatusAwaitingMatch, models.DeviceStatusCancelled}:    {models.RoleSubmitter, models.RoleOperator},
	{models.DeviceStatusMatched, models.DeviceStatusCancelled}:          {models.RoleSubmitter, models.RoleOperator},
}

// isLegalTransition 判断边是否存在于邻接表中
func isLegalTransition(from, to models.DeviceStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// 1 CreateDevice 创建新的回收设备并生成不可变更的追踪码
func (s *DeviceService) CreateDevice(ownerID uint, category models.DeviceCategory, condition models.DeviceCondition, weightKG *float64) (*models.Device, error) {
	if !category.IsValid() {
		return nil, errors.New("无效的设备类别")
	}
	if !condition.IsValid() {
		return nil, errors.New("无效的设备成色")
	}
	if weightKG != nil && *weightKG <= 0 {
		return nil, errors.New("设备重量必须大于0")
	}

	// 确认提交者存在
	var owner models.Account
	if err := s.DB.First(&owner, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("提交者账户不存在")
		}
		return nil, err
	}

	device := &models.Device{
		OwnerID:      ownerID,
		Category:     category,
		Condition:    condition,
		Status:       models.DeviceStatusUploaded,
		TrackingCode: utils.GenerateTrackingCode(),
		WeightKG:     weightKG,
	}

	if err := s.DB.Create(device).Error; err != nil {
		return nil, err
	}

	return device, nil
}

// 2 GetDeviceByID 根据ID获取设备
func (s *DeviceService) GetDeviceByID(id uint) (*models.Device, error) {
	var device models.Device
	if err := s.DB.Preload("Organization").Preload("ImpactRecord").First(&device, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("设备不存在")
		}
		return nil, err
	}

	return &device, nil
}

// 3 GetDeviceByTrackingCode 根据追踪码获取设备
func (s *DeviceService) GetDeviceByTrackingCode(code string) (*models.Device, error) {
	var device models.Device
	if err := s.DB.Where("tracking_code = ?", code).Preload("Organization").First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("设备不存在")
		}
		return nil, err
	}

	return &device, nil
}

// 4 GetDevicesByOwner 获取提交者名下的设备列表
func (s *DeviceService) GetDevicesByOwner(ownerID uint) ([]models.Device, error) {
	var devices []models.Device
	if err := s.DB.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&devices).Error; err != nil {
		return nil, err
	}

	return devices, nil
}

// 5 GetAllDevices 分页获取所有设备
func (s *DeviceService) GetAllDevices(query models.PaginationQuery) ([]models.Device, models.PaginationResult, error) {
	if query.PageNum <= 0 {
		query.PageNum = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}

	var total int64
	if err := s.DB.Model(&models.Device{}).Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	order := "created_at ASC"
	if query.Desc {
		order = "created_at DESC"
	}

	var devices []models.Device
	if err := s.DB.Order(order).
		Offset((query.PageNum - 1) * query.PageSize).
		Limit(query.PageSize).
		Find(&devices).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	return devices, models.NewPaginationResult(int(total), query.PageNum, query.PageSize), nil
}

// 6 AdvanceStatus 按邻接表推进设备状态。
// 调用方必须带上自己最后观察到的状态，存储层用一次原子的比较更新来拦截过期的并发请求
func (s *DeviceService) AdvanceStatus(deviceID uint, expected, target models.DeviceStatus, actor Actor) (*models.Device, error) {
	if !isLegalTransition(expected, target) {
		return nil, ErrInvalidTransition
	}

	device, err := s.GetDeviceByID(deviceID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeTransition(device, expected, target, actor); err != nil {
		return nil, err
	}

	if target == models.DeviceStatusCancelled {
		err = s.cancelDevice(deviceID, expected)
	} else {
		err = s.compareAndSetStatus(s.DB, deviceID, expected, target)
	}
	if err != nil {
		return nil, err
	}

	// 终态处置触发环保成果计算。计算失败只记录日志等待人工对账，
	// 设备的物理处置结果是权威事实，不能被下游记账失败回滚
	if target.IsDisposition() {
		if err := s.ImpactService.ProcessDeviceImpact(deviceID); err != nil {
			config.Error("设备 %d 环保成果计算失败，待人工对账: %v", deviceID, err)
		}
	}

	updated, err := s.GetDeviceByID(deviceID)
	if err != nil {
		return nil, err
	}

	// 状态变更通知为尽力投递，失败不影响主流程
	if s.Notifier != nil {
		if err := s.Notifier.PublishDeviceStatus(updated, "status_changed"); err != nil {
			config.Warning("设备 %d 状态变更通知发送失败: %v", deviceID, err)
		}
	}

	return updated, nil
}

// authorizeTransition 校验角色是否允许触发该边，以及调用方与设备的归属关系
func (s *DeviceService) authorizeTransition(device *models.Device, expected, target models.DeviceStatus, actor Actor) error {
	allowed, ok := transitionRoles[transitionEdge{expected, target}]
	if !ok {
		// 邻接表中存在但未授权给任何外部角色的边（例如匹配引擎专用边）
		return ErrForbidden
	}

	roleAllowed := false
	for _, role := range allowed {
		if role == actor.Role {
			roleAllowed = true
			break
		}
	}
	if !roleAllowed {
		return ErrForbidden
	}

	// 提交者只能操作自己的设备
	if actor.Role == models.RoleSubmitter && device.OwnerID != actor.AccountID {
		return ErrForbidden
	}

	// 机构只能操作分配给自己的设备
	if actor.Role == models.RoleOrganization {
		if device.OrganizationID == nil || actor.OrganizationID == nil || *device.OrganizationID != *actor.OrganizationID {
			return ErrForbidden
		}
	}

	return nil
}

// compareAndSetStatus 单条原子的比较更新，期望状态不匹配时返回 ErrInvalidTransition
func (s *DeviceService) compareAndSetStatus(tx *gorm.DB, deviceID uint, expected, target models.DeviceStatus) error {
	result := tx.Model(&models.Device{}).
		Where("id = ? AND status = ?", deviceID, expected).
		Update("status", target)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}

	// picked_up 达成后，把生效中的预约标记为已完成
	if target == models.DeviceStatusPickedUp {
		if err := tx.Model(&models.PickupAppointment{}).
			Where("device_id = ? AND status IN ?", deviceID, activeAppointmentStatuses()).
			Updates(map[string]interface{}{"status": models.AppointmentStatusCompleted}).Error; err != nil {
			return err
		}
	}

	return nil
}

// cancelDevice 取消设备回收。已匹配的设备需要在同一事务内归还机构容量并取消未完成的预约。
// 机构ID必须取自事务内锁定的设备行：事务外的快照可能因为并发的
// 预约取消加重新匹配而指向旧机构，归还给旧机构会让新机构的预留永久泄漏
func (s *DeviceService) cancelDevice(deviceID uint, expected models.DeviceStatus) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var device models.Device
		if err := lockForUpdate(tx).First(&device, deviceID).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Device{}).
			Where("id = ? AND status = ?", deviceID, expected).
			Updates(map[string]interface{}{
				"status":          models.DeviceStatusCancelled,
				"organization_id": nil,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		// 取消未完成的预约，并直接标记容量已释放，避免预约取消路径重复归还
		if err := tx.Model(&models.PickupAppointment{}).
			Where("device_id = ? AND status IN ?", deviceID, activeAppointmentStatuses()).
			Updates(map[string]interface{}{
				"status":            models.AppointmentStatusCancelled,
				"capacity_released": true,
			}).Error; err != nil {
			return err
		}

		// 设备取消时状态流转只发生一次，容量也只归还一次
		if device.OrganizationID != nil {
			if err := releaseOrganizationCapacity(tx, *device.OrganizationID); err != nil {
				return err
			}
		}

		return nil
	})
}

// activeAppointmentStatuses 生效中的预约状态集合
func activeAppointmentStatuses() []models.AppointmentStatus {
	return []models.AppointmentStatus{
		models.AppointmentStatusScheduled,
		models.AppointmentStatusConfirmed,
		models.AppointmentStatusInProgress,
	}
}
