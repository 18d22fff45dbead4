package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gsequeira/vigiaweb/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultMaxRows caps Query results when no smaller limit is given.
const DefaultMaxRows = 500

// Entry holds one audit event to be logged. ClientID is nil for system
// or anonymous actions.
type Entry struct {
	ClientID    *int64
	Action      string
	Description string
	IP          string
	UserAgent   string
	Level       string
	Data        interface{}
}

// Filter narrows Query results. Zero values mean "any".
type Filter struct {
	ClientID int64
	Action   string
	Level    string
}

// Service appends audit entries asynchronously in batches. A failed
// write is logged and dropped; it never propagates to the operation
// that produced the entry.
type Service struct {
	db      *gorm.DB
	ch      chan *model.AuditLog
	stopCh  chan struct{}
	wg      sync.WaitGroup
	logger  *zap.Logger
	maxRows int
}

// New creates a new audit Service and starts its background worker.
// maxRows <= 0 falls back to DefaultMaxRows.
func New(db *gorm.DB, logger *zap.Logger, maxRows int) *Service {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	svc := &Service{
		db:      db,
		ch:      make(chan *model.AuditLog, 1024),
		stopCh:  make(chan struct{}),
		logger:  logger,
		maxRows: maxRows,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues an audit entry for async DB write. It never blocks
// and never returns an error: the audit log is a best-effort side
// channel, not part of the primary transaction.
func (svc *Service) Record(e Entry) {
	level := e.Level
	if level == "" {
		level = model.LevelInfo
	}
	record := &model.AuditLog{
		ClientID:    e.ClientID,
		Action:      e.Action,
		Description: e.Description,
		IPAddress:   e.IP,
		UserAgent:   e.UserAgent,
		Level:       level,
	}
	if e.Data != nil {
		if raw, err := json.Marshal(e.Data); err == nil {
			record.Data = datatypes.JSON(raw)
		}
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", e.Action))
	}
}

// Query returns audit entries newest-first. limit is capped at the
// configured maximum; limit <= 0 means "up to the maximum".
func (svc *Service) Query(ctx context.Context, f Filter, limit int) ([]model.AuditLog, error) {
	if limit <= 0 || limit > svc.maxRows {
		limit = svc.maxRows
	}
	q := svc.db.WithContext(ctx).Model(&model.AuditLog{})
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}
	var entries []model.AuditLog
	err := q.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
