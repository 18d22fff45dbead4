package sqlite

import (
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memSeq int64

// Open creates a GORM *DB backed by a SQLite file.
func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// OpenMemory creates a private in-memory SQLite database. Each call gets
// its own database (distinct shared-cache name), so parallel tests stay
// isolated while GORM's pooled connections all see the same data.
func OpenMemory() (*gorm.DB, error) {
	n := atomic.AddInt64(&memSeq, 1)
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", n)
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	// A shared-cache memory DB vanishes when its last connection closes;
	// pin a single connection for the DB's lifetime. One connection also
	// sidesteps SQLITE_BUSY under concurrent writers.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	return db, nil
}
