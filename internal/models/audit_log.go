package models

import "gorm.io/datatypes"

// AuditLog records sensitive operations for later review.
type AuditLog struct {
	Base
	UserID       string         `gorm:"not null;index" json:"user_id"`
	Action       string         `gorm:"not null" json:"action"`
	ResourceType string         `gorm:"not null" json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	IPAddress    string         `json:"ip_address"`
	Changes      datatypes.JSON `gorm:"type:jsonb" json:"changes,omitempty"`
}
