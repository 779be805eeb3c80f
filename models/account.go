package models

import "time"

// Role represents the role of an account in the collection workflow
type Role string

const (
	RoleSubmitter    Role = "submitter"
	RoleOrganization Role = "organization"
	RoleOperator     Role = "operator"
)

// IsValid 检查角色是否为系统定义的角色
func (r Role) IsValid() bool {
	switch r {
	case RoleSubmitter, RoleOrganization, RoleOperator:
		return true
	}
	return false
}

// Account represents a platform account (submitter, organization or operator)
type Account struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"type:varchar(50);unique;not null" json:"username"`
	Password string `gorm:"type:varchar(100);not null" json:"-"`
	Email    string `gorm:"type:varchar(100)" json:"email"`
	Phone    string `gorm:"type:varchar(20)" json:"phone"`
	Role     Role   `gorm:"type:varchar(20);default:'submitter'" json:"role"`

	// 提交者的位置信息，由档案协作方维护，匹配引擎读取
	Latitude  float64 `gorm:"type:decimal(10,7)" json:"latitude"`
	Longitude float64 `gorm:"type:decimal(10,7)" json:"longitude"`

	// 累计环保成果，仅由环保成果计算器更新
	TotalPoints           int     `gorm:"default:0" json:"total_points"`
	TotalWaterSavedL      float64 `gorm:"default:0" json:"total_water_saved_l"`
	TotalCO2SavedKG       float64 `gorm:"default:0" json:"total_co2_saved_kg"`
	TotalToxicPreventedKG float64 `gorm:"default:0" json:"total_toxic_prevented_kg"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Devices []Device `gorm:"foreignKey:OwnerID" json:"devices,omitempty"`
	Badges  []Badge  `gorm:"foreignKey:AccountID" json:"badges,omitempty"`
}
