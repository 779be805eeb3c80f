package models

import "time"

// ImpactRecord stores the environmental impact computed for a completed device.
// 每台设备最多只会产生一条记录，由数据库唯一索引兜底
type ImpactRecord struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	DeviceID uint `gorm:"uniqueIndex;not null" json:"device_id"`

	// 最终处置方式: refurbished / donated / recycled
	Disposition DeviceStatus `gorm:"type:varchar(20);not null" json:"disposition"`

	WaterSavedL      float64 `gorm:"type:decimal(12,2);not null" json:"water_saved_l"`
	CO2SavedKG       float64 `gorm:"type:decimal(12,2);not null" json:"co2_saved_kg"`
	ToxicPreventedKG float64 `gorm:"type:decimal(12,2);not null" json:"toxic_prevented_kg"`
	Points           int     `gorm:"not null" json:"points"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Device *Device `gorm:"foreignKey:DeviceID" json:"device,omitempty"`
}

// Badge represents an achievement badge granted to an account.
// 同一账户的同一徽章最多授予一次
type Badge struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	AccountID uint   `gorm:"not null;uniqueIndex:idx_account_badge" json:"account_id"`
	Code      string `gorm:"type:varchar(50);not null;uniqueIndex:idx_account_badge" json:"code"`
	Name      string `gorm:"type:varchar(100);not null" json:"name"`

	CreatedAt time.Time `json:"created_at"`
}
