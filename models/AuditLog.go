package models

import "gorm.io/gorm"

// AuditLog records moderation actions taken by admins (space approval,
// comment hiding, forced cancellations).
type AuditLog struct {
	gorm.Model
	AdminUserID  uint   `json:"adminUserID" gorm:"index"`
	Action       string `json:"action" gorm:"index"`
	ResourceType string `json:"resourceType"`
	ResourceID   uint   `json:"resourceID"`
	BeforeJSON   string `json:"beforeJSON" gorm:"type:text"`
	AfterJSON    string `json:"afterJSON" gorm:"type:text"`
	IPAddress    string `json:"ipAddress"`
}
