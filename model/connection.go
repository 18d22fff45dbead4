package model

import "time"

// Connection is one observed network connection reported by a device
// agent. Rows are ingested in bulk and only ever read back.
type Connection struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID  *int64    `gorm:"index" json:"cliente_id"`
	DeviceID  *int64    `gorm:"index" json:"dispositivo_id"`
	SrcIP     string    `gorm:"size:45" json:"ip_origem"`
	DstIP     string    `gorm:"size:45" json:"ip_destino"`
	SrcPort   int       `json:"porta_origem"`
	DstPort   int       `json:"porta_destino"`
	Protocol  string    `gorm:"size:10" json:"protocolo"` // TCP, UDP
	Status    string    `gorm:"size:20" json:"status"`    // ESTABLISHED, TIME_WAIT, ...
	Process   string    `gorm:"size:100" json:"processo,omitempty"`
	PID       int       `json:"pid,omitempty"`
	BytesSent int64     `gorm:"default:0" json:"bytes_enviados"`
	BytesRecv int64     `gorm:"default:0" json:"bytes_recebidos"`
	SeenAt    time.Time `gorm:"index;autoCreateTime" json:"data_hora"`
}
