package model

import "time"

// Session is a token-authenticated login grant. ClientID is nil for
// anonymous sessions created by the accept-terms flow.
//
// A session is valid while Active is true and ExpiresAt is in the
// future. Expiry is applied lazily on the next validation; a periodic
// sweep deactivates grants nobody presents again.
type Session struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID     *int64     `gorm:"index" json:"cliente_id"`
	Token        string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	IPAddress    string     `gorm:"size:45" json:"ip_address"`
	UserAgent    string     `gorm:"type:text" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"data_inicio"`
	ExpiresAt    time.Time  `json:"data_expiracao"`
	LastActivity time.Time  `json:"ultima_atividade"`
	Active       bool       `gorm:"default:true" json:"ativa"`
}
