package db

import (
	"fmt"

	"github.com/gsequeira/vigiaweb/server/config"
	dbmysql "github.com/gsequeira/vigiaweb/server/db/mysql"
	dbpostgres "github.com/gsequeira/vigiaweb/server/db/postgres"
	dbsqlite "github.com/gsequeira/vigiaweb/server/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite       = "sqlite"
	ModeSQLiteMemory = "sqlite_memory"
	ModeMySQL        = "mysql"
	ModePostgres     = "postgres"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeSQLiteMemory:
		return dbsqlite.OpenMemory()
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
	case ModePostgres:
		return dbpostgres.Open(cfg.PostgresDSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
