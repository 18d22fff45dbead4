package model

import (
	"time"

	"gorm.io/datatypes"
)

// Severity levels for AuditLog.Level.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// AuditLog is an append-only record of a security-relevant action.
// Rows are never updated or deleted. ClientID is nil for system or
// anonymous actions.
type AuditLog struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID    *int64         `gorm:"index:idx_audit_client" json:"cliente_id"`
	Action      string         `gorm:"index:idx_audit_action;size:50;not null" json:"acao"`
	Description string         `gorm:"type:text" json:"descricao,omitempty"`
	IPAddress   string         `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent   string         `gorm:"type:text" json:"-"`
	Level       string         `gorm:"size:20;default:info" json:"nivel"`
	Data        datatypes.JSON `json:"dados,omitempty"`
	CreatedAt   time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"data_hora"`
}
