package models

import "time"

// DeviceStatus represents the lifecycle status of a submitted device
type DeviceStatus string

const (
	DeviceStatusUploaded      DeviceStatus = "uploaded"
	DeviceStatusAwaitingMatch DeviceStatus = "awaiting_match"
	DeviceStatusMatched       DeviceStatus = "matched"
	DeviceStatusPickedUp      DeviceStatus = "picked_up"
	DeviceStatusReceived      DeviceStatus = "received"
	DeviceStatusProcessing    DeviceStatus = "processing"
	DeviceStatusRefurbished   DeviceStatus = "refurbished"
	DeviceStatusDonated       DeviceStatus = "donated"
	DeviceStatusRecycled      DeviceStatus = "recycled"
	DeviceStatusCancelled     DeviceStatus = "cancelled"
)

// IsTerminal 判断状态是否为终态（终态后不再允许任何流转）
func (s DeviceStatus) IsTerminal() bool {
	switch s {
	case DeviceStatusRefurbished, DeviceStatusDonated, DeviceStatusRecycled, DeviceStatusCancelled:
		return true
	}
	return false
}

// IsDisposition 判断状态是否为有环保价值的最终处置方式
func (s DeviceStatus) IsDisposition() bool {
	switch s {
	case DeviceStatusRefurbished, DeviceStatusDonated, DeviceStatusRecycled:
		return true
	}
	return false
}

// DeviceCategory represents the category of a submitted device
type DeviceCategory string

const (
	DeviceCategoryPhone   DeviceCategory = "phone"
	DeviceCategoryLaptop  DeviceCategory = "laptop"
	DeviceCategoryTablet  DeviceCategory = "tablet"
	DeviceCategoryDesktop DeviceCategory = "desktop"
	DeviceCategoryBattery DeviceCategory = "battery"
	DeviceCategoryOther   DeviceCategory = "other"
)

// IsValid 检查设备类别是否合法
func (c DeviceCategory) IsValid() bool {
	switch c {
	case DeviceCategoryPhone, DeviceCategoryLaptop, DeviceCategoryTablet,
		DeviceCategoryDesktop, DeviceCategoryBattery, DeviceCategoryOther:
		return true
	}
	return false
}

// DeviceCondition represents the declared condition of a device
type DeviceCondition string

const (
	DeviceConditionExcellent DeviceCondition = "excellent"
	DeviceConditionGood      DeviceCondition = "good"
	DeviceConditionFair      DeviceCondition = "fair"
	DeviceConditionPoor      DeviceCondition = "poor"
)

// IsValid 检查设备成色是否合法
func (c DeviceCondition) IsValid() bool {
	switch c {
	case DeviceConditionExcellent, DeviceConditionGood, DeviceConditionFair, DeviceConditionPoor:
		return true
	}
	return false
}

// Device represents an electronic device submitted for collection
type Device struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OwnerID   uint            `gorm:"not null;index" json:"owner_id"`
	Category  DeviceCategory  `gorm:"type:varchar(20);not null" json:"category"`
	Condition DeviceCondition `gorm:"type:varchar(20);not null" json:"condition"`
	Status    DeviceStatus    `gorm:"type:varchar(20);default:'uploaded';index" json:"status"`

	// TrackingCode 在创建时生成，之后不可变更
	TrackingCode string `gorm:"type:varchar(20);unique;not null" json:"tracking_code"`

	// 设备重量（千克），可选
	WeightKG *float64 `gorm:"type:decimal(8,3)" json:"weight_kg,omitempty"`

	// 匹配成功后指向预留的回收机构
	OrganizationID *uint `gorm:"index" json:"organization_id,omitempty"`

	// 终态环保成果计算的幂等标记，只会从 false 置为 true 一次
	ImpactProcessed bool `gorm:"default:false" json:"impact_processed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Owner        *Account            `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Organization *Organization       `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Appointments []PickupAppointment `gorm:"foreignKey:DeviceID" json:"appointments,omitempty"`
	ImpactRecord *ImpactRecord       `gorm:"foreignKey:DeviceID" json:"impact_record,omitempty"`
}
