package model

import "time"

// ChatMessage is one message in a chat room. Deleted messages stay in
// the table and are masked when listed.
type ChatMessage struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID *int64    `gorm:"index" json:"cliente_id"`
	Room     string    `gorm:"index;size:50;default:geral" json:"sala"`
	Username string    `gorm:"size:100" json:"usuario"`
	Content  string    `gorm:"type:text;not null" json:"mensagem"`
	Type     string    `gorm:"size:20;default:texto" json:"tipo"` // texto, imagem, arquivo, sistema
	Edited   bool      `gorm:"default:false" json:"editada"`
	Deleted  bool      `gorm:"default:false" json:"deletada"`
	ReplyTo  *int64    `json:"resposta_para,omitempty"`
	SentAt   time.Time `gorm:"index;autoCreateTime" json:"data_hora"`
}
