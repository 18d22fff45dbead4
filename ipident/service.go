package ipident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gsequeira/vigiaweb/server/audit"
	"github.com/gsequeira/vigiaweb/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound means no identity exists for the given address.
var ErrNotFound = errors.New("ipident: identity not found")

// createAttempts bounds the generate-name/insert retry loop.
const createAttempts = 5

// Service assigns one persistent pseudonymous identity per client IP.
// The same address always resolves to the same username for as long as
// the mapping exists; addresses shared behind NAT collapse into a
// single identity by design.
type Service struct {
	db     *gorm.DB
	audit  *audit.Service
	logger *zap.Logger
}

// NewService creates an IP identity Service.
func NewService(db *gorm.DB, auditSvc *audit.Service, logger *zap.Logger) *Service {
	return &Service{db: db, audit: auditSvc, logger: logger}
}

// GetOrCreate returns the identity for ip, creating it on first
// contact. Returning visits increment the counter, refresh last-seen
// and merge metadata field by field (last write wins). The unique
// index on the address column serializes concurrent first contacts:
// the loser of the race re-reads the winner's row, so one IP can never
// end up with two identities.
func (svc *Service) GetOrCreate(ctx context.Context, ip, userAgent string, metadata map[string]interface{}) (*model.IPIdentity, bool, error) {
	addr := NormalizeIP(ip)
	if addr == "" {
		return nil, false, fmt.Errorf("ipident: unusable address %q", ip)
	}

	var existing model.IPIdentity
	err := svc.db.WithContext(ctx).Where("ip = ?", addr).First(&existing).Error
	if err == nil {
		return svc.recordVisit(ctx, &existing, userAgent, metadata)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("ipident: lookup: %w", err)
	}

	ident, err := svc.create(ctx, addr, userAgent, metadata)
	if err == nil {
		svc.audit.Record(audit.Entry{
			Action:      "novo_usuario",
			Description: fmt.Sprintf("Identidade %s criada", ident.Username),
			IP:          addr,
			UserAgent:   userAgent,
		})
		return ident, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, err
	}

	// Lost a concurrent first-contact race; the winner's row exists now.
	if err := svc.db.WithContext(ctx).Where("ip = ?", addr).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("ipident: post-race lookup: %w", err)
	}
	return svc.recordVisit(ctx, &existing, userAgent, metadata)
}

// Get returns the identity for ip without touching it.
func (svc *Service) Get(ctx context.Context, ip string) (*model.IPIdentity, error) {
	addr := NormalizeIP(ip)
	var ident model.IPIdentity
	err := svc.db.WithContext(ctx).Where("ip = ?", addr).First(&ident).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ident, nil
}

// List returns identities most recently seen first.
func (svc *Service) List(ctx context.Context, limit int) ([]model.IPIdentity, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var idents []model.IPIdentity
	err := svc.db.WithContext(ctx).Order("last_seen DESC").Limit(limit).Find(&idents).Error
	return idents, err
}

func (svc *Service) create(ctx context.Context, addr, userAgent string, metadata map[string]interface{}) (*model.IPIdentity, error) {
	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		ident := &model.IPIdentity{
			IP:        addr,
			Username:  generateUsername(attempt),
			UserAgent: userAgent,
			Visits:    1,
			LastSeen:  time.Now(),
		}
		if metadata != nil {
			if raw, err := json.Marshal(metadata); err == nil {
				ident.SystemInfo = datatypes.JSON(raw)
			}
		}
		err := svc.db.WithContext(ctx).Create(ident).Error
		if err == nil {
			return ident, nil
		}
		lastErr = err
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("ipident: create: %w", err)
		}
		// Either the username clashed (regenerate and retry) or the IP
		// row appeared concurrently (caller resolves that case).
		var count int64
		svc.db.WithContext(ctx).Model(&model.IPIdentity{}).Where("ip = ?", addr).Count(&count)
		if count > 0 {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("ipident: username space exhausted: %w", lastErr)
}

func (svc *Service) recordVisit(ctx context.Context, ident *model.IPIdentity, userAgent string, metadata map[string]interface{}) (*model.IPIdentity, bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"visits":    gorm.Expr("visits + 1"),
		"last_seen": now,
	}
	if userAgent != "" {
		updates["user_agent"] = userAgent
	}
	if merged := mergeMetadata(ident.SystemInfo, metadata); merged != nil {
		updates["system_info"] = merged
	}
	if err := svc.db.WithContext(ctx).Model(ident).Updates(updates).Error; err != nil {
		return nil, false, fmt.Errorf("ipident: record visit: %w", err)
	}

	ident.Visits++
	ident.LastSeen = now
	if userAgent != "" {
		ident.UserAgent = userAgent
	}
	if merged := mergeMetadata(ident.SystemInfo, metadata); merged != nil {
		ident.SystemInfo = merged
	}
	return ident, false, nil
}

// mergeMetadata overlays incoming fields on the stored blob, last write
// wins per field. Returns nil when there is nothing to change.
func mergeMetadata(stored datatypes.JSON, incoming map[string]interface{}) datatypes.JSON {
	if len(incoming) == 0 {
		return nil
	}
	merged := map[string]interface{}{}
	if len(stored) > 0 {
		_ = json.Unmarshal(stored, &merged)
	}
	for k, v := range incoming {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// NormalizeIP canonicalizes a client address: ports and IPv6 zones are
// stripped and the address is re-rendered in canonical form. Unparsable
// input is kept as-is after trimming, so proxied pseudo-addresses still
// map to a stable key.
func NormalizeIP(ip string) string {
	s := strings.TrimSpace(ip)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	if parsed := net.ParseIP(s); parsed != nil {
		return parsed.String()
	}
	return s
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
