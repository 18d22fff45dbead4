package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gsequeira/vigiaweb/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// tokenBytes gives 256 bits of entropy per token.
const tokenBytes = 32

// DefaultTTL is used when a caller passes a negative TTL.
const DefaultTTL = 24 * time.Hour

var (
	// ErrInvalid means the token is unknown, revoked or expired.
	ErrInvalid = errors.New("session: invalid or expired")
	// ErrTokenCollision means a freshly generated token already exists.
	// With 256 bits of entropy this indicates a broken random source,
	// not bad luck; treat it as a fatal configuration error.
	ErrTokenCollision = errors.New("session: token collision")
)

// Service is the session registry. Sessions live in the database only;
// nothing is held in process memory, so grants survive a restart.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a session Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Create issues a new session. clientID nil makes an anonymous session
// (accept-terms flow). ttl == 0 creates an already-expired session;
// ttl < 0 falls back to DefaultTTL.
func (svc *Service) Create(ctx context.Context, clientID *int64, ip, userAgent string, ttl time.Duration) (*model.Session, error) {
	if ttl < 0 {
		ttl = DefaultTTL
	}
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("session: generate token: %w", err)
	}

	now := time.Now()
	sess := &model.Session{
		ClientID:     clientID,
		Token:        token,
		IPAddress:    ip,
		UserAgent:    userAgent,
		ExpiresAt:    now.Add(ttl),
		LastActivity: now,
		Active:       true,
	}
	if err := svc.db.WithContext(ctx).Create(sess).Error; err != nil {
		if isUniqueViolation(err) {
			svc.logger.Error("session token collision", zap.Error(err))
			return nil, ErrTokenCollision
		}
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return sess, nil
}

// Validate looks up an active session by token. An expired session is
// deactivated on this observation (lazy expiry) and reported invalid;
// the flip happens at most once even under concurrent validations. A
// valid session gets its last activity refreshed.
func (svc *Service) Validate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrInvalid
	}

	var sess model.Session
	err := svc.db.WithContext(ctx).
		Where("token = ? AND active = ?", token, true).
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalid
		}
		return nil, fmt.Errorf("session: validate: %w", err)
	}

	now := time.Now()
	if sess.ExpiresAt.Before(now) {
		// Conditional update: only one concurrent validation flips the
		// flag; the rest see active=false already.
		svc.db.WithContext(ctx).Model(&model.Session{}).
			Where("id = ? AND active = ?", sess.ID, true).
			Update("active", false)
		return nil, ErrInvalid
	}

	if err := svc.db.WithContext(ctx).Model(&sess).Update("last_activity", now).Error; err != nil {
		svc.logger.Warn("session touch failed", zap.Int64("session_id", sess.ID), zap.Error(err))
	}
	sess.LastActivity = now
	return &sess, nil
}

// Revoke deactivates the session with the given token. Revoking an
// unknown or already-revoked token is not an error; the returned bool
// reports whether the token existed.
func (svc *Service) Revoke(ctx context.Context, token string) (bool, error) {
	var count int64
	if err := svc.db.WithContext(ctx).Model(&model.Session{}).
		Where("token = ?", token).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("session: revoke: %w", err)
	}
	if count == 0 {
		return false, nil
	}
	err := svc.db.WithContext(ctx).Model(&model.Session{}).
		Where("token = ?", token).
		Update("active", false).Error
	if err != nil {
		return false, fmt.Errorf("session: revoke: %w", err)
	}
	return true, nil
}

// RevokeAllForClient deactivates every session owned by the client.
func (svc *Service) RevokeAllForClient(ctx context.Context, clientID int64) error {
	return svc.db.WithContext(ctx).Model(&model.Session{}).
		Where("client_id = ?", clientID).
		Update("active", false).Error
}

// SweepExpired deactivates sessions whose expiry passed but were never
// revalidated. Expiry is lazy on the validation path; the sweep keeps
// the active count honest for sessions nobody presents again.
func (svc *Service) SweepExpired(ctx context.Context) (int64, error) {
	res := svc.db.WithContext(ctx).Model(&model.Session{}).
		Where("active = ? AND expires_at < ?", true, time.Now()).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("session: sweep: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ActiveCount returns the number of sessions currently marked active.
// Lazily-expired sessions that were never revalidated still count; the
// figure is a monitoring statistic, not a security boundary.
func (svc *Service) ActiveCount(ctx context.Context) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Session{}).
		Where("active = ?", true).
		Count(&n).Error
	return n, err
}

// newToken returns a URL-safe random token with tokenBytes of entropy.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
