package models

import "time"

// AppointmentStatus represents the status of a pickup appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
)

// IsActive 判断预约是否仍在生效中（同一设备同时最多一个生效预约）
func (s AppointmentStatus) IsActive() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusInProgress:
		return true
	}
	return false
}

// PickupAppointment represents a pickup appointment between a device and an organization
type PickupAppointment struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	DeviceID       uint `gorm:"not null;index" json:"device_id"`
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`

	WindowStart time.Time `gorm:"not null" json:"window_start"`
	WindowEnd   time.Time `gorm:"not null" json:"window_end"`

	Status AppointmentStatus `gorm:"type:varchar(20);default:'scheduled';index" json:"status"`

	// 取消预约时是否已归还机构容量，保证容量释放的幂等
	CapacityReleased bool `gorm:"default:false" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Device       *Device       `gorm:"foreignKey:DeviceID" json:"device,omitempty"`
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}
