package services

import (
	"errors"
	"time"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InterfaceAppointmentService defines the pickup scheduler interface
type InterfaceAppointmentService interface {
	Schedule(deviceID, orgID uint, windowStart, windowEnd time.Time, actor Actor) (*models.PickupAppointment, error)
	Confirm(appointmentID uint, actor Actor) (*models.PickupAppointment, error)
	Start(appointmentID uint, actor Actor) (*models.PickupAppointment, error)
	Reschedule(appointmentID uint, windowStart, windowEnd time.Time, actor Actor) (*models.PickupAppointment, error)
	Cancel(appointmentID uint, actor Actor) (*models.PickupAppointment, error)
	CancelExpired() (int, error)
	GetAppointmentByID(id uint) (*models.PickupAppointment, error)
	GetAppointmentsByDevice(deviceID uint) ([]models.PickupAppointment, error)
	GetAppointmentsByOrganization(orgID uint) ([]models.PickupAppointment, error)
}

// AppointmentService 提供取件预约相关的服务
type AppointmentService struct {
	DB       *gorm.DB
	Config   *config.Config
	Notifier InterfaceNotificationService
}

// NewAppointmentService 创建一个新的预约服务
func NewAppointmentService(db *gorm.DB, cfg *config.Config, notifier InterfaceNotificationService) InterfaceAppointmentService {
	return &AppointmentService{
		DB:       db,
		Config:   cfg,
		Notifier: notifier,
	}
}

// lockForUpdate 行级写锁。sqlite 是单写者，不支持也不需要 FOR UPDATE
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// authorizeActor 校验调用方与预约的归属关系：
// 运营放行，机构必须是预约中的机构，提交者必须是设备所有者
func (s *AppointmentService) authorizeActor(appointment *models.PickupAppointment, actor Actor) error {
	switch actor.Role {
	case models.RoleOperator:
		return nil
	case models.RoleOrganization:
		if actor.OrganizationID != nil && *actor.OrganizationID == appointment.OrganizationID {
			return nil
		}
	case models.RoleSubmitter:
		var device models.Device
		if err := s.DB.First(&device, appointment.DeviceID).Error; err != nil {
			return err
		}
		if device.OwnerID == actor.AccountID {
			return nil
		}
	}
	return ErrForbidden
}

// 1 Schedule 为已匹配的设备创建取件预约。
// 同一设备同时最多一个生效预约；并发创建由设备行锁串行化
func (s *AppointmentService) Schedule(deviceID, orgID uint, windowStart, windowEnd time.Time, actor Actor) (*models.PickupAppointment, error) {
	if !windowEnd.After(windowStart) {
		return nil, errors.New("预约时间窗不合法")
	}

	var appointment *models.PickupAppointment
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// 锁住设备行，保证生效预约的判定与创建之间没有并发窗口
		var device models.Device
		if err := lockForUpdate(tx).First(&device, deviceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("设备不存在")
			}
			return err
		}

		// 提交者只能为自己的设备预约，机构只能为分配给自己的设备预约
		if actor.Role == models.RoleSubmitter && device.OwnerID != actor.AccountID {
			return ErrForbidden
		}
		if actor.Role == models.RoleOrganization {
			if actor.OrganizationID == nil || *actor.OrganizationID != orgID {
				return ErrForbidden
			}
		}

		if device.Status != models.DeviceStatusMatched ||
			device.OrganizationID == nil || *device.OrganizationID != orgID {
			return ErrInvalidTransition
		}

		var activeCount int64
		if err := tx.Model(&models.PickupAppointment{}).
			Where("device_id = ? AND status IN ?", deviceID, activeAppointmentStatuses()).
			Count(&activeCount).Error; err != nil {
			return err
		}
		if activeCount > 0 {
			return ErrAlreadyScheduled
		}

		appointment = &models.PickupAppointment{
			DeviceID:       deviceID,
			OrganizationID: orgID,
			WindowStart:    windowStart,
			WindowEnd:      windowEnd,
			Status:         models.AppointmentStatusScheduled,
		}

		return tx.Create(appointment).Error
	})
	if err != nil {
		return nil, err
	}

	if s.Notifier != nil {
		if err := s.Notifier.PublishAppointmentEvent(appointment, "scheduled"); err != nil {
			config.Warning("预约 %d 创建通知发送失败: %v", appointment.ID, err)
		}
	}

	return appointment, nil
}

// 2 Confirm 机构确认预约。只改预约状态，不改设备状态
func (s *AppointmentService) Confirm(appointmentID uint, actor Actor) (*models.PickupAppointment, error) {
	appointment, err := s.GetAppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}

	// 确认是机构侧动作，提交者不能代为确认
	if actor.Role == models.RoleSubmitter {
		return nil, ErrForbidden
	}
	if err := s.authorizeActor(appointment, actor); err != nil {
		return nil, err
	}

	result := s.DB.Model(&models.PickupAppointment{}).
		Where("id = ? AND status = ?", appointmentID, models.AppointmentStatusScheduled).
		Update("status", models.AppointmentStatusConfirmed)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	return s.GetAppointmentByID(appointmentID)
}

// 3 Start 机构开始上门取件，已确认的预约进入进行中
func (s *AppointmentService) Start(appointmentID uint, actor Actor) (*models.PickupAppointment, error) {
	appointment, err := s.GetAppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}

	// 上门取件是机构侧动作
	if actor.Role == models.RoleSubmitter {
		return nil, ErrForbidden
	}
	if err := s.authorizeActor(appointment, actor); err != nil {
		return nil, err
	}

	result := s.DB.Model(&models.PickupAppointment{}).
		Where("id = ? AND status = ?", appointmentID, models.AppointmentStatusConfirmed).
		Update("status", models.AppointmentStatusInProgress)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	return s.GetAppointmentByID(appointmentID)
}

// 4 Reschedule 调整生效中预约的时间窗
func (s *AppointmentService) Reschedule(appointmentID uint, windowStart, windowEnd time.Time, actor Actor) (*models.PickupAppointment, error) {
	if !windowEnd.After(windowStart) {
		return nil, errors.New("预约时间窗不合法")
	}

	appointment, err := s.GetAppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeActor(appointment, actor); err != nil {
		return nil, err
	}

	result := s.DB.Model(&models.PickupAppointment{}).
		Where("id = ? AND status IN ?", appointmentID, []models.AppointmentStatus{
			models.AppointmentStatusScheduled,
			models.AppointmentStatusConfirmed,
		}).
		Updates(map[string]interface{}{
			"window_start": windowStart,
			"window_end":   windowEnd,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	return s.GetAppointmentByID(appointmentID)
}

// 5 Cancel 取消预约。
// 取件尚未发生时归还机构容量并把设备退回待匹配；
// 状态比较更新保证重复取消是无副作用的空操作
func (s *AppointmentService) Cancel(appointmentID uint, actor Actor) (*models.PickupAppointment, error) {
	appointment, err := s.GetAppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeActor(appointment, actor); err != nil {
		return nil, err
	}

	return s.cancel(appointment)
}

// cancel 执行取消事务，过期清理复用此路径
func (s *AppointmentService) cancel(appointment *models.PickupAppointment) (*models.PickupAppointment, error) {
	appointmentID := appointment.ID

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// 只有仍在生效中的预约才会真正执行取消，输掉这次比较更新说明已被处理过
		result := tx.Model(&models.PickupAppointment{}).
			Where("id = ? AND status IN ?", appointmentID, activeAppointmentStatuses()).
			Update("status", models.AppointmentStatusCancelled)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		// 取件前取消：设备退回待匹配，容量归还一次（capacity_released 兜底幂等）
		deviceResult := tx.Model(&models.Device{}).
			Where("id = ? AND status = ?", appointment.DeviceID, models.DeviceStatusMatched).
			Updates(map[string]interface{}{
				"status":          models.DeviceStatusAwaitingMatch,
				"organization_id": nil,
			})
		if deviceResult.Error != nil {
			return deviceResult.Error
		}
		if deviceResult.RowsAffected == 0 {
			// 设备已进入取件之后的阶段，不回退设备也不归还容量
			return nil
		}

		releaseResult := tx.Model(&models.PickupAppointment{}).
			Where("id = ? AND capacity_released = ?", appointmentID, false).
			Update("capacity_released", true)
		if releaseResult.Error != nil {
			return releaseResult.Error
		}
		if releaseResult.RowsAffected == 0 {
			return nil
		}

		return releaseOrganizationCapacity(tx, appointment.OrganizationID)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.GetAppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}

	if s.Notifier != nil {
		if err := s.Notifier.PublishAppointmentEvent(updated, "cancelled"); err != nil {
			config.Warning("预约 %d 取消通知发送失败: %v", appointmentID, err)
		}
	}

	return updated, nil
}

// 5 CancelExpired 清理超过时间窗仍未确认的预约。
// 复用普通取消路径，外部定时任务无需任何特权逻辑
func (s *AppointmentService) CancelExpired() (int, error) {
	var expired []models.PickupAppointment
	if err := s.DB.
		Where("status = ? AND window_end < ?", models.AppointmentStatusScheduled, models.CurrentTime()).
		Find(&expired).Error; err != nil {
		return 0, err
	}

	cancelled := 0
	for _, appointment := range expired {
		if _, err := s.cancel(&appointment); err != nil {
			config.Warning("过期预约 %d 自动取消失败: %v", appointment.ID, err)
			continue
		}
		cancelled++
	}

	if cancelled > 0 {
		config.Info("已自动取消 %d 个过期预约", cancelled)
	}

	return cancelled, nil
}

// 6 GetAppointmentByID 根据ID获取预约
func (s *AppointmentService) GetAppointmentByID(id uint) (*models.PickupAppointment, error) {
	var appointment models.PickupAppointment
	if err := s.DB.First(&appointment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("预约不存在")
		}
		return nil, err
	}

	return &appointment, nil
}

// 7 GetAppointmentsByDevice 获取设备的预约历史
func (s *AppointmentService) GetAppointmentsByDevice(deviceID uint) ([]models.PickupAppointment, error) {
	var appointments []models.PickupAppointment
	if err := s.DB.Where("device_id = ?", deviceID).Order("created_at DESC").Find(&appointments).Error; err != nil {
		return nil, err
	}

	return appointments, nil
}

// 8 GetAppointmentsByOrganization 获取机构的预约列表
func (s *AppointmentService) GetAppointmentsByOrganization(orgID uint) ([]models.PickupAppointment, error) {
	var appointments []models.PickupAppointment
	if err := s.DB.Where("organization_id = ?", orgID).Order("window_start ASC").Find(&appointments).Error; err != nil {
		return nil, err
	}

	return appointments, nil
}
