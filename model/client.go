package model

import (
	"time"

	"gorm.io/datatypes"
)

// Access levels for Client.AccessLevel.
const (
	LevelAdmin     = "admin"
	LevelModerator = "moderador"
	LevelUser      = "usuario"
)

// Client represents a platform user account.
// PasswordHash empty means the account cannot log in with a password.
type Client struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string         `gorm:"size:100;not null" json:"nome"`
	Email        string         `gorm:"uniqueIndex;size:120;not null" json:"email"`
	PasswordHash string         `gorm:"size:256" json:"-"`
	Phone        string         `gorm:"size:20" json:"telefone,omitempty"`
	Company      string         `gorm:"size:100" json:"empresa,omitempty"`
	Role         string         `gorm:"size:50" json:"cargo,omitempty"`
	City         string         `gorm:"size:50" json:"cidade,omitempty"`
	State        string         `gorm:"size:50" json:"estado,omitempty"`
	Country      string         `gorm:"size:50;default:Brasil" json:"pais,omitempty"`
	Active       bool           `gorm:"default:true" json:"ativo"`
	AccessLevel  string         `gorm:"size:20;default:usuario" json:"nivel_acesso"`
	Notes        string         `gorm:"type:text" json:"observacoes,omitempty"`
	Extra        datatypes.JSON `json:"dados_extras,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"data_cadastro"`
	LastAccess   *time.Time     `json:"ultimo_acesso"`
}

// IsAdmin reports whether the client has the admin access level.
func (c *Client) IsAdmin() bool {
	return c.AccessLevel == LevelAdmin
}
