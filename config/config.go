package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Session  SessionConfig  `mapstructure:"session"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Mode            string        `mapstructure:"mode"` // sqlite | mysql | postgres
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MySQLDSN        string        `mapstructure:"mysql_dsn"`
	PostgresDSN     string        `mapstructure:"postgres_dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	BcryptCost     int     `mapstructure:"bcrypt_cost"`
	// AgentAPIKey authorizes device agents posting inventory and
	// connection data. Empty disables those endpoints.
	AgentAPIKey string `mapstructure:"agent_api_key"`
}

type SessionConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	CookieSameSite string        `mapstructure:"cookie_same_site"` // lax | strict | none
}

type MonitorConfig struct {
	// OnlineWindow is how recent a heartbeat must be for a device to
	// count as online.
	OnlineWindow time.Duration `mapstructure:"online_window"`
	// ActiveWindow is the recent-access window for the "active clients"
	// statistic.
	ActiveWindow time.Duration `mapstructure:"active_window"`
	AuditMaxRows int           `mapstructure:"audit_max_rows"`
}

type ChatConfig struct {
	DefaultRoom  string `mapstructure:"default_room"`
	HistoryLimit int    `mapstructure:"history_limit"`
	MaxMsgLen    int    `mapstructure:"max_msg_len"`
}

type AdminConfig struct {
	// Bootstrap account seeded at startup when it does not exist yet.
	Email    string `mapstructure:"email"`
	Name     string `mapstructure:"name"`
	Password string `mapstructure:"password"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/clientes.db")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("session.cookie_same_site", "lax")
	v.SetDefault("monitor.online_window", "5m")
	v.SetDefault("monitor.active_window", "30m")
	v.SetDefault("monitor.audit_max_rows", 500)
	v.SetDefault("chat.default_room", "geral")
	v.SetDefault("chat.history_limit", 100)
	v.SetDefault("chat.max_msg_len", 2000)
	v.SetDefault("admin.email", "admin@sistema.local")
	v.SetDefault("admin.name", "Administrador")
	v.SetDefault("admin.password", "admin123")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
