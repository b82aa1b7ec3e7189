package config

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB membuka koneksi gorm sesuai DB_DRIVER.
func InitDB(s Settings) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch s.DBDriver {
	case DriverMySQL:
		dialector = mysql.Open(s.DBDSN)
	case DriverSQLite:
		dialector = sqlite.Open(s.DBDSN)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", s.DBDriver)
	}

	logLevel := logger.Warn
	if s.LogLevel == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if s.DBDriver == DriverSQLite {
		// sqlite hanya satu writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}
