package model

import (
	"time"

	"gorm.io/datatypes"
)

// IPIdentity maps a client network address to a persistent pseudonymous
// username. One identity per normalized IP; the same IP always resolves
// to the same username. An address shared by many people behind NAT
// collapses into a single identity on purpose.
type IPIdentity struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	IP         string         `gorm:"uniqueIndex;size:45;not null" json:"ip"`
	Username   string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	UserAgent  string         `gorm:"type:text" json:"user_agent,omitempty"`
	SystemInfo datatypes.JSON `json:"system_info,omitempty"`
	Visits     int            `gorm:"default:1" json:"total_visits"`
	FirstSeen  time.Time      `gorm:"autoCreateTime" json:"first_visit"`
	LastSeen   time.Time      `json:"last_seen"`
}
