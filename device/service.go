package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gsequeira/vigiaweb/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound means no device matches the given ID.
var ErrNotFound = errors.New("device: not found")

// Service manages the device inventory and heartbeats.
type Service struct {
	db           *gorm.DB
	logger       *zap.Logger
	onlineWindow time.Duration
}

// NewService creates a device Service. window is how recent a heartbeat
// must be for a device to count as online.
func NewService(db *gorm.DB, logger *zap.Logger, window time.Duration) *Service {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Service{db: db, logger: logger, onlineWindow: window}
}

// RegisterInput is the system profile a device agent reports.
type RegisterInput struct {
	Name        string                 `json:"nome"`
	Type        string                 `json:"tipo"`
	OS          string                 `json:"sistema_operacional"`
	OSVersion   string                 `json:"versao_so"`
	Hostname    string                 `json:"hostname"`
	LocalIP     string                 `json:"ip_local"`
	PublicIP    string                 `json:"ip_publico"`
	MACAddress  string                 `json:"mac_address"`
	CPU         string                 `json:"processador"`
	TotalMemory string                 `json:"memoria_total"`
	TotalDisk   string                 `json:"disco_total"`
	IsVirtual   bool                   `json:"is_virtual"`
	VirtualType string                 `json:"virtual_type"`
	Extra       map[string]interface{} `json:"info_extra"`
}

// Register upserts a device: matched by MAC address first, hostname
// second, created otherwise. Re-registration refreshes the heartbeat
// and addresses. publicIP overrides the reported public address when
// the server saw the request come from somewhere else.
func (svc *Service) Register(ctx context.Context, in RegisterInput, clientID *int64, publicIP string) (*model.Device, bool, error) {
	if publicIP == "" {
		publicIP = in.PublicIP
	}

	var existing model.Device
	found := false
	if in.MACAddress != "" {
		if err := svc.db.WithContext(ctx).Where("mac_address = ?", in.MACAddress).First(&existing).Error; err == nil {
			found = true
		}
	}
	if !found && in.Hostname != "" {
		if err := svc.db.WithContext(ctx).Where("hostname = ?", in.Hostname).First(&existing).Error; err == nil {
			found = true
		}
	}

	now := time.Now()
	if found {
		updates := map[string]interface{}{
			"last_heartbeat": now,
			"local_ip":       in.LocalIP,
			"public_ip":      publicIP,
		}
		if clientID != nil {
			updates["client_id"] = *clientID
		}
		if err := svc.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, false, fmt.Errorf("device: update: %w", err)
		}
		existing.LastHeartbeat = &now
		existing.LocalIP = in.LocalIP
		existing.PublicIP = publicIP
		return &existing, false, nil
	}

	name := in.Name
	if name == "" {
		name = in.Hostname
	}
	devType := in.Type
	if devType == "" {
		devType = "desktop"
	}
	dev := &model.Device{
		ClientID:      clientID,
		Name:          name,
		Type:          devType,
		OS:            in.OS,
		OSVersion:     in.OSVersion,
		Hostname:      in.Hostname,
		LocalIP:       in.LocalIP,
		PublicIP:      publicIP,
		MACAddress:    in.MACAddress,
		CPU:           in.CPU,
		TotalMemory:   in.TotalMemory,
		TotalDisk:     in.TotalDisk,
		IsVirtual:     in.IsVirtual,
		VirtualType:   in.VirtualType,
		Active:        true,
		LastHeartbeat: &now,
	}
	if in.Extra != nil {
		if raw, err := json.Marshal(in.Extra); err == nil {
			dev.Extra = datatypes.JSON(raw)
		}
	}
	if err := svc.db.WithContext(ctx).Create(dev).Error; err != nil {
		return nil, false, fmt.Errorf("device: create: %w", err)
	}
	svc.logger.Info("device registered",
		zap.Int64("device_id", dev.ID),
		zap.String("hostname", dev.Hostname))
	return dev, true, nil
}

// Get returns a device by ID.
func (svc *Service) Get(ctx context.Context, id int64) (*model.Device, error) {
	var dev model.Device
	if err := svc.db.WithContext(ctx).First(&dev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &dev, nil
}

// Heartbeat refreshes a device's last heartbeat timestamp.
func (svc *Service) Heartbeat(ctx context.Context, id int64) error {
	res := svc.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ?", id).
		Update("last_heartbeat", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQuery filters and paginates List results.
type ListQuery struct {
	ClientID int64
	Active   *bool
	Page     int
	PerPage  int
}

// ListedDevice is a device plus its computed online flag.
type ListedDevice struct {
	model.Device
	Online bool `json:"online"`
}

// ListResult is one page of devices.
type ListResult struct {
	Devices []ListedDevice `json:"dispositivos"`
	Total   int64          `json:"total"`
	Pages   int            `json:"paginas"`
	Page    int            `json:"pagina_atual"`
}

// List returns devices ordered by most recent heartbeat, each with an
// online flag computed against the configured window.
func (svc *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	tx := svc.db.WithContext(ctx).Model(&model.Device{})
	if q.ClientID != 0 {
		tx = tx.Where("client_id = ?", q.ClientID)
	}
	if q.Active != nil {
		tx = tx.Where("active = ?", *q.Active)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var devices []model.Device
	err := tx.Order("last_heartbeat DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&devices).Error
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-svc.onlineWindow)
	listed := make([]ListedDevice, 0, len(devices))
	for _, d := range devices {
		listed = append(listed, ListedDevice{
			Device: d,
			Online: d.LastHeartbeat != nil && d.LastHeartbeat.After(cutoff),
		})
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &ListResult{Devices: listed, Total: total, Pages: pages, Page: page}, nil
}

// OnlineCount returns how many devices have a recent heartbeat.
func (svc *Service) OnlineCount(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-svc.onlineWindow)
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Device{}).
		Where("last_heartbeat > ?", cutoff).
		Count(&n).Error
	return n, err
}
