package stats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gsequeira/vigiaweb/server/cache"
	"github.com/gsequeira/vigiaweb/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	snapshotKey = "stats:snapshot"
	snapshotTTL = 10 * time.Second
)

// Summary is the platform-wide counter set served to the monitor.
type Summary struct {
	TotalClients   int64 `json:"total_clientes"`
	ActiveClients  int64 `json:"clientes_ativos"`
	TotalDevices   int64 `json:"total_dispositivos"`
	DevicesOnline  int64 `json:"dispositivos_online"`
	TotalConns     int64 `json:"total_conexoes"`
	MessagesToday  int64 `json:"mensagens_hoje"`
	ActiveSessions int64 `json:"sessoes_ativas"`
}

// Service aggregates platform statistics. Summaries are cached for a
// few seconds to keep dashboard polling off the database.
type Service struct {
	db           *gorm.DB
	cache        cache.Cache
	logger       *zap.Logger
	onlineWindow time.Duration
	activeWindow time.Duration
}

// NewService creates a stats Service.
func NewService(db *gorm.DB, c cache.Cache, logger *zap.Logger, onlineWindow, activeWindow time.Duration) *Service {
	if onlineWindow <= 0 {
		onlineWindow = 5 * time.Minute
	}
	if activeWindow <= 0 {
		activeWindow = 30 * time.Minute
	}
	return &Service{db: db, cache: c, logger: logger, onlineWindow: onlineWindow, activeWindow: activeWindow}
}

// Summarize returns the current counters, served from the cache
// snapshot when one is fresh.
func (svc *Service) Summarize(ctx context.Context) (*Summary, error) {
	if raw, err := svc.cache.Get(ctx, snapshotKey); err == nil {
		var cached Summary
		if json.Unmarshal([]byte(raw), &cached) == nil {
			return &cached, nil
		}
	}

	now := time.Now()
	var s Summary
	counts := []struct {
		dst   *int64
		model interface{}
		where func(*gorm.DB) *gorm.DB
	}{
		{&s.TotalClients, &model.Client{}, nil},
		{&s.ActiveClients, &model.Client{}, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("last_access > ?", now.Add(-svc.activeWindow))
		}},
		{&s.TotalDevices, &model.Device{}, nil},
		{&s.DevicesOnline, &model.Device{}, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("last_heartbeat > ?", now.Add(-svc.onlineWindow))
		}},
		{&s.TotalConns, &model.Connection{}, nil},
		{&s.MessagesToday, &model.ChatMessage{}, func(tx *gorm.DB) *gorm.DB {
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			return tx.Where("sent_at >= ?", midnight)
		}},
		{&s.ActiveSessions, &model.Session{}, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("active = ?", true)
		}},
	}
	for _, c := range counts {
		tx := svc.db.WithContext(ctx).Model(c.model)
		if c.where != nil {
			tx = c.where(tx)
		}
		if err := tx.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	if raw, err := json.Marshal(&s); err == nil {
		if err := svc.cache.Set(ctx, snapshotKey, string(raw), snapshotTTL); err != nil {
			svc.logger.Debug("stats snapshot cache write failed", zap.Error(err))
		}
	}
	return &s, nil
}
