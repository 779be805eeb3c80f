package models

import (
	"strings"
	"time"
)

// VerificationStatus represents the verification status of a collection organization
type VerificationStatus string

const (
	VerificationStatusUnverified VerificationStatus = "unverified"
	VerificationStatusPending    VerificationStatus = "pending"
	VerificationStatusVerified   VerificationStatus = "verified"
	VerificationStatusSuspended  VerificationStatus = "suspended"
)

// IsValid 检查认证状态是否合法
func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationStatusUnverified, VerificationStatusPending,
		VerificationStatusVerified, VerificationStatusSuspended:
		return true
	}
	return false
}

// Organization represents a collection organization that receives devices
type Organization struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	AccountID uint   `gorm:"index" json:"account_id"`
	Name      string `gorm:"type:varchar(100);not null" json:"name"`

	VerificationStatus VerificationStatus `gorm:"type:varchar(20);default:'unverified';index" json:"verification_status"`

	// 服务点坐标与服务半径（千米）
	Latitude        float64 `gorm:"type:decimal(10,7);not null" json:"latitude"`
	Longitude       float64 `gorm:"type:decimal(10,7);not null" json:"longitude"`
	ServiceRadiusKM float64 `gorm:"type:decimal(8,2);default:20" json:"service_radius_km"`

	// 支持的设备类别，逗号分隔，例如 "phone,laptop,battery"
	ServiceCategories string `gorm:"type:varchar(200);not null" json:"service_categories"`

	// 月度回收容量与剩余容量计数器，剩余容量任何时刻不为负
	MonthlyCapacity   int `gorm:"not null" json:"monthly_capacity"`
	RemainingCapacity int `gorm:"not null" json:"remaining_capacity"`

	Rating float64 `gorm:"type:decimal(3,2);default:0" json:"rating"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Devices      []Device            `gorm:"foreignKey:OrganizationID" json:"devices,omitempty"`
	Appointments []PickupAppointment `gorm:"foreignKey:OrganizationID" json:"appointments,omitempty"`
}

// ServesCategory 判断机构是否支持回收指定类别的设备
func (o *Organization) ServesCategory(category DeviceCategory) bool {
	for _, c := range strings.Split(o.ServiceCategories, ",") {
		if DeviceCategory(strings.TrimSpace(c)) == category {
			return true
		}
	}
	return false
}

// IsMatchable 只有已认证且仍有剩余容量的机构才可参与匹配
func (o *Organization) IsMatchable() bool {
	return o.VerificationStatus == VerificationStatusVerified && o.RemainingCapacity > 0
}
