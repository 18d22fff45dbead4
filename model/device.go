package model

import (
	"time"

	"gorm.io/datatypes"
)

// Device is a registered machine reporting inventory and heartbeats.
// Registration upserts by MAC address first, hostname second.
type Device struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID      *int64         `gorm:"index" json:"cliente_id"`
	Name          string         `gorm:"size:100" json:"nome"`
	Type          string         `gorm:"size:50" json:"tipo"` // desktop, laptop, servidor, mobile
	OS            string         `gorm:"size:50" json:"sistema_operacional"`
	OSVersion     string         `gorm:"size:50" json:"versao_so"`
	Hostname      string         `gorm:"index;size:100" json:"hostname"`
	LocalIP       string         `gorm:"size:45" json:"ip_local"`
	PublicIP      string         `gorm:"size:45" json:"ip_publico"`
	MACAddress    string         `gorm:"index;size:20" json:"mac_address"`
	CPU           string         `gorm:"size:100" json:"processador"`
	TotalMemory   string         `gorm:"size:20" json:"memoria_total"`
	TotalDisk     string         `gorm:"size:20" json:"disco_total"`
	IsVirtual     bool           `gorm:"default:false" json:"is_virtual"`
	VirtualType   string         `gorm:"size:50" json:"virtual_type,omitempty"`
	Active        bool           `gorm:"default:true" json:"ativo"`
	LastHeartbeat *time.Time     `json:"ultimo_heartbeat"`
	RegisteredAt  time.Time      `gorm:"autoCreateTime" json:"data_registro"`
	Extra         datatypes.JSON `json:"info_extra,omitempty"`
}
