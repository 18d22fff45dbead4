package netlog

import (
	"context"
	"fmt"
	"time"

	"github.com/gsequeira/vigiaweb/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service records and queries network connections reported by device
// agents. Rows are write-once; there is no update path.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a connection-log Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// ConnectionInput is one reported connection.
type ConnectionInput struct {
	SrcIP     string `json:"ip_origem"`
	DstIP     string `json:"ip_destino"`
	SrcPort   int    `json:"porta_origem"`
	DstPort   int    `json:"porta_destino"`
	Protocol  string `json:"protocolo"`
	Status    string `json:"status"`
	Process   string `json:"processo"`
	PID       int    `json:"pid"`
	BytesSent int64  `json:"bytes_enviados"`
	BytesRecv int64  `json:"bytes_recebidos"`
}

// RecordBatch inserts the reported connections in one write and
// returns how many rows were stored.
func (svc *Service) RecordBatch(ctx context.Context, conns []ConnectionInput, deviceID, clientID *int64) (int, error) {
	if len(conns) == 0 {
		return 0, nil
	}
	rows := make([]model.Connection, 0, len(conns))
	for _, c := range conns {
		protocol := c.Protocol
		if protocol == "" {
			protocol = "TCP"
		}
		status := c.Status
		if status == "" {
			status = "ESTABLISHED"
		}
		rows = append(rows, model.Connection{
			ClientID:  clientID,
			DeviceID:  deviceID,
			SrcIP:     c.SrcIP,
			DstIP:     c.DstIP,
			SrcPort:   c.SrcPort,
			DstPort:   c.DstPort,
			Protocol:  protocol,
			Status:    status,
			Process:   c.Process,
			PID:       c.PID,
			BytesSent: c.BytesSent,
			BytesRecv: c.BytesRecv,
		})
	}
	if err := svc.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("netlog: record batch: %w", err)
	}
	return len(rows), nil
}

// ListQuery filters and paginates List results.
type ListQuery struct {
	DeviceID int64
	ClientID int64
	From     *time.Time
	To       *time.Time
	Page     int
	PerPage  int
}

// ListResult is one page of connections.
type ListResult struct {
	Connections []model.Connection `json:"conexoes"`
	Total       int64              `json:"total"`
	Pages       int                `json:"paginas"`
	Page        int                `json:"pagina_atual"`
}

// List returns connections newest-first with optional device, client
// and time-range filters.
func (svc *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 || perPage > 500 {
		perPage = 100
	}

	tx := svc.db.WithContext(ctx).Model(&model.Connection{})
	if q.DeviceID != 0 {
		tx = tx.Where("device_id = ?", q.DeviceID)
	}
	if q.ClientID != 0 {
		tx = tx.Where("client_id = ?", q.ClientID)
	}
	if q.From != nil {
		tx = tx.Where("seen_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("seen_at <= ?", *q.To)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var conns []model.Connection
	err := tx.Order("seen_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&conns).Error
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &ListResult{Connections: conns, Total: total, Pages: pages, Page: page}, nil
}

// Count returns the total number of logged connections.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Connection{}).Count(&n).Error
	return n, err
}
