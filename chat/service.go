package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gsequeira/vigiaweb/server/cache"
	"github.com/gsequeira/vigiaweb/server/config"
	"github.com/gsequeira/vigiaweb/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrEmptyMessage means the message had no content after trimming.
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrTooLong means the message exceeds the configured limit.
	ErrTooLong = errors.New("chat: message too long")
	// ErrNotFound means no message matches the given ID.
	ErrNotFound = errors.New("chat: message not found")
)

const deletedPlaceholder = "[Mensagem removida]"

// Service persists chat messages and fans them out live. The database
// is the source of truth; the cache keeps a hot per-room history list
// and the pub/sub channel feeds the SSE stream.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	pubsub cache.PubSub
	cfg    config.ChatConfig
	logger *zap.Logger
}

// NewService creates a chat Service.
func NewService(db *gorm.DB, c cache.Cache, ps cache.PubSub, cfg config.ChatConfig, logger *zap.Logger) *Service {
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = "geral"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.MaxMsgLen <= 0 {
		cfg.MaxMsgLen = 2000
	}
	return &Service{db: db, cache: c, pubsub: ps, cfg: cfg, logger: logger}
}

// RoomChannel returns the pub/sub channel name for a room.
func RoomChannel(room string) string {
	return "chat:" + room
}

func presenceKey(room string) string {
	return "chat:presenca:" + room
}

// Join marks a username as present in a room. Presence is best-effort
// cache state; a failed write only degrades the occupancy listing.
func (svc *Service) Join(ctx context.Context, room, username string) {
	if username == "" {
		return
	}
	if room == "" {
		room = svc.cfg.DefaultRoom
	}
	if err := svc.cache.SAdd(ctx, presenceKey(room), username); err != nil {
		svc.logger.Warn("chat join failed", zap.String("room", room), zap.Error(err))
	}
}

// Leave removes a username from a room's presence set.
func (svc *Service) Leave(ctx context.Context, room, username string) {
	if username == "" {
		return
	}
	if room == "" {
		room = svc.cfg.DefaultRoom
	}
	if err := svc.cache.SRem(ctx, presenceKey(room), username); err != nil {
		svc.logger.Warn("chat leave failed", zap.String("room", room), zap.Error(err))
	}
}

// Present returns the usernames currently streaming a room.
func (svc *Service) Present(ctx context.Context, room string) ([]string, error) {
	if room == "" {
		room = svc.cfg.DefaultRoom
	}
	return svc.cache.SMembers(ctx, presenceKey(room))
}

// Post stores a message and publishes it to the room's live channel.
func (svc *Service) Post(ctx context.Context, room, username, content, msgType string, clientID *int64) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(content)) > svc.cfg.MaxMsgLen {
		return nil, ErrTooLong
	}
	if room == "" {
		room = svc.cfg.DefaultRoom
	}
	if msgType == "" {
		msgType = "texto"
	}

	msg := &model.ChatMessage{
		ClientID: clientID,
		Room:     room,
		Username: username,
		Content:  content,
		Type:     msgType,
		SentAt:   time.Now(),
	}
	if err := svc.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("chat: post: %w", err)
	}

	// Live fan-out and hot history are best-effort; readers always have
	// the DB to fall back on.
	if raw, err := json.Marshal(msg); err == nil {
		payload := string(raw)
		channel := RoomChannel(room)
		if err := svc.pubsub.Publish(ctx, channel, payload); err != nil {
			svc.logger.Warn("chat publish failed", zap.String("room", room), zap.Error(err))
		}
		_ = svc.cache.LPush(ctx, channel, payload)
		_ = svc.cache.LTrim(ctx, channel, 0, int64(svc.cfg.HistoryLimit)-1)
	}
	return msg, nil
}

// History returns up to limit messages for a room, oldest first.
// Deleted messages are masked, not omitted.
func (svc *Service) History(ctx context.Context, room string, limit int, before *time.Time) ([]model.ChatMessage, error) {
	if room == "" {
		room = svc.cfg.DefaultRoom
	}
	if limit <= 0 || limit > svc.cfg.HistoryLimit {
		limit = svc.cfg.HistoryLimit
	}

	tx := svc.db.WithContext(ctx).Where("room = ?", room)
	if before != nil {
		tx = tx.Where("sent_at < ?", *before)
	}

	var msgs []model.ChatMessage
	if err := tx.Order("sent_at DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat: history: %w", err)
	}

	// Reverse to oldest-first and mask deleted content.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	for i := range msgs {
		if msgs[i].Deleted {
			msgs[i].Content = deletedPlaceholder
		}
	}
	return msgs, nil
}

// Delete soft-deletes a message; listings mask its content from then
// on. The room's hot history is dropped so it reloads from the DB.
func (svc *Service) Delete(ctx context.Context, id int64) error {
	var msg model.ChatMessage
	if err := svc.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := svc.db.WithContext(ctx).Model(&msg).Update("deleted", true).Error; err != nil {
		return fmt.Errorf("chat: delete: %w", err)
	}
	_ = svc.cache.Del(ctx, RoomChannel(msg.Room))
	return nil
}

// MessagesToday counts messages sent since local midnight.
func (svc *Service) MessagesToday(ctx context.Context) (int64, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where("sent_at >= ?", midnight).
		Count(&n).Error
	return n, err
}
