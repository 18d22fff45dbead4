package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gsequeira/vigiaweb/server/audit"
	"github.com/gsequeira/vigiaweb/server/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound means no client matches the given identifier.
	ErrNotFound = errors.New("account: client not found")
	// ErrDuplicateEmail means the email is already registered.
	ErrDuplicateEmail = errors.New("account: email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong
	// password; callers must not be able to tell them apart.
	ErrInvalidCredentials = errors.New("account: invalid credentials")
)

// dummyHash is compared against when the account does not exist or has
// no password, so both failure paths cost one bcrypt verification.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("vigiaweb-dummy"), bcrypt.MinCost)

// Service manages client accounts and password authentication.
type Service struct {
	db         *gorm.DB
	audit      *audit.Service
	logger     *zap.Logger
	bcryptCost int
}

// NewService creates an account Service. cost <= 0 uses bcrypt's default.
func NewService(db *gorm.DB, auditSvc *audit.Service, logger *zap.Logger, cost int) *Service {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{db: db, audit: auditSvc, logger: logger, bcryptCost: cost}
}

// CreateInput carries the fields accepted when registering a client.
// Password empty means the account cannot authenticate until one is set.
type CreateInput struct {
	Name        string
	Email       string
	Password    string
	Phone       string
	Company     string
	Role        string
	City        string
	State       string
	Country     string
	AccessLevel string
	Notes       string
	Extra       map[string]interface{}
}

// Create registers a new client. Emails are stored lowercase and must
// be unique; a duplicate returns ErrDuplicateEmail.
func (svc *Service) Create(ctx context.Context, in CreateInput, ip string) (*model.Client, error) {
	level := in.AccessLevel
	if level == "" {
		level = model.LevelUser
	}
	country := in.Country
	if country == "" {
		country = "Brasil"
	}
	client := &model.Client{
		Name:        in.Name,
		Email:       normalizeEmail(in.Email),
		Phone:       in.Phone,
		Company:     in.Company,
		Role:        in.Role,
		City:        in.City,
		State:       in.State,
		Country:     country,
		Active:      true,
		AccessLevel: level,
		Notes:       in.Notes,
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), svc.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("account: hash password: %w", err)
		}
		client.PasswordHash = string(hash)
	}
	if in.Extra != nil {
		if raw, err := json.Marshal(in.Extra); err == nil {
			client.Extra = datatypes.JSON(raw)
		}
	}

	if err := svc.db.WithContext(ctx).Create(client).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("account: create: %w", err)
	}

	svc.audit.Record(audit.Entry{
		ClientID:    &client.ID,
		Action:      "cliente_criado",
		Description: fmt.Sprintf("Cliente %s criado", client.Name),
		IP:          ip,
	})
	return client, nil
}

// Get returns a client by ID.
func (svc *Service) Get(ctx context.Context, id int64) (*model.Client, error) {
	var client model.Client
	if err := svc.db.WithContext(ctx).First(&client, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &client, nil
}

// GetByEmail returns a client by email, case-insensitively.
func (svc *Service) GetByEmail(ctx context.Context, email string) (*model.Client, error) {
	var client model.Client
	err := svc.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &client, nil
}

// ListQuery filters and paginates List results.
type ListQuery struct {
	Active  *bool
	Search  string
	Page    int
	PerPage int
}

// ListResult is one page of clients.
type ListResult struct {
	Clients []model.Client `json:"clientes"`
	Total   int64          `json:"total"`
	Pages   int            `json:"paginas"`
	Page    int            `json:"pagina_atual"`
}

// List returns clients newest-first with optional active filter and
// name/email/company/phone search.
func (svc *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	tx := svc.db.WithContext(ctx).Model(&model.Client{})
	if q.Active != nil {
		tx = tx.Where("active = ?", *q.Active)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		tx = tx.Where(
			"LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ? OR phone LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var clients []model.Client
	err := tx.Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&clients).Error
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &ListResult{Clients: clients, Total: total, Pages: pages, Page: page}, nil
}

// UpdateInput carries optional field updates; nil pointers are left
// untouched.
type UpdateInput struct {
	Name        *string
	Phone       *string
	Company     *string
	Role        *string
	City        *string
	State       *string
	Country     *string
	AccessLevel *string
	Notes       *string
	Active      *bool
	Password    *string
	Extra       map[string]interface{}
}

// Update applies a partial update to a client.
func (svc *Service) Update(ctx context.Context, id int64, in UpdateInput, ip string) (*model.Client, error) {
	client, err := svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	setStr := func(col string, v *string) {
		if v != nil {
			updates[col] = *v
		}
	}
	setStr("name", in.Name)
	setStr("phone", in.Phone)
	setStr("company", in.Company)
	setStr("role", in.Role)
	setStr("city", in.City)
	setStr("state", in.State)
	setStr("country", in.Country)
	setStr("access_level", in.AccessLevel)
	setStr("notes", in.Notes)
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), svc.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("account: hash password: %w", err)
		}
		updates["password_hash"] = string(hash)
	}
	if in.Extra != nil {
		if raw, err := json.Marshal(in.Extra); err == nil {
			updates["extra"] = datatypes.JSON(raw)
		}
	}

	if len(updates) > 0 {
		if err := svc.db.WithContext(ctx).Model(client).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("account: update: %w", err)
		}
	}

	svc.audit.Record(audit.Entry{
		ClientID:    &client.ID,
		Action:      "cliente_atualizado",
		Description: fmt.Sprintf("Cliente %s atualizado", client.Name),
		IP:          ip,
	})
	return client, nil
}

// SetPassword replaces the client's password hash. The plaintext is
// never stored or logged.
func (svc *Service) SetPassword(ctx context.Context, id int64, raw string) error {
	client, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), svc.bcryptCost)
	if err != nil {
		return fmt.Errorf("account: hash password: %w", err)
	}
	return svc.db.WithContext(ctx).Model(client).Update("password_hash", string(hash)).Error
}

// VerifyPassword reports whether raw matches the client's stored hash.
// A client with no hash set always fails.
func (svc *Service) VerifyPassword(client *model.Client, raw string) bool {
	if client == nil || client.PasswordHash == "" {
		// Burn a comparison anyway so the miss costs the same.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(raw))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(client.PasswordHash), []byte(raw)) == nil
}

// Authenticate verifies email+password against active clients. The
// error never reveals whether the email exists. On success the client's
// last access is touched and a login audit entry is recorded.
func (svc *Service) Authenticate(ctx context.Context, email, password, ip string) (*model.Client, error) {
	var client model.Client
	err := svc.db.WithContext(ctx).
		Where("email = ? AND active = ?", normalizeEmail(email), true).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			svc.VerifyPassword(nil, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("account: authenticate: %w", err)
	}

	if !svc.VerifyPassword(&client, password) {
		svc.audit.Record(audit.Entry{
			ClientID:    &client.ID,
			Action:      "login_falhou",
			Description: "Tentativa de login com senha incorreta",
			IP:          ip,
			Level:       model.LevelWarning,
		})
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	client.LastAccess = &now
	if err := svc.db.WithContext(ctx).Model(&client).Update("last_access", now).Error; err != nil {
		svc.logger.Warn("touch last_access failed", zap.Int64("client_id", client.ID), zap.Error(err))
	}

	svc.audit.Record(audit.Entry{
		ClientID:    &client.ID,
		Action:      "login",
		Description: "Login realizado com sucesso",
		IP:          ip,
	})
	return &client, nil
}

// TouchLastAccess refreshes the client's last access timestamp.
func (svc *Service) TouchLastAccess(ctx context.Context, id int64) error {
	return svc.db.WithContext(ctx).Model(&model.Client{}).
		Where("id = ?", id).
		Update("last_access", time.Now()).Error
}

// Deactivate soft-deletes a client. All of its sessions are revoked so
// the account immediately fails authentication and validation.
func (svc *Service) Deactivate(ctx context.Context, id int64, ip string) error {
	client, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(client).Update("active", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Session{}).
			Where("client_id = ?", id).
			Update("active", false).Error; err != nil {
			return err
		}
		svc.audit.Record(audit.Entry{
			ClientID:    &id,
			Action:      "cliente_desativado",
			Description: fmt.Sprintf("Cliente %s desativado", client.Name),
			IP:          ip,
		})
		return nil
	})
}

// Delete removes a client permanently. Devices, connections, chat
// messages and sessions owned by the client are removed with it; audit
// entries keep their client reference and stay untouched.
func (svc *Service) Delete(ctx context.Context, id int64, ip string) error {
	client, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	name := client.Name
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&model.Session{}, &model.Connection{}, &model.Device{}, &model.ChatMessage{},
		} {
			if err := tx.Where("client_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(client).Error
	})
	if err != nil {
		return fmt.Errorf("account: delete: %w", err)
	}

	svc.audit.Record(audit.Entry{
		Action:      "cliente_deletado",
		Description: fmt.Sprintf("Cliente %s deletado permanentemente", name),
		IP:          ip,
		Level:       model.LevelWarning,
	})
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
