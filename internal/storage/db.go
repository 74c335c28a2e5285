package storage

import (
	"fmt"
	"time"

	"courier/internal/config"
	"courier/internal/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	// DB is the global database connection
	DB *gorm.DB
)

// Initialize sets up the database connection based on configuration
func Initialize(cfg *config.Config) error {
	dialector, err := openDialector(cfg)
	if err != nil {
		return err
	}

	// transient startup failures (database still coming up) are retried
	err = WithRetry(3, time.Second, func() error {
		var openErr error
		DB, openErr = gorm.Open(dialector, &gorm.Config{
			Logger: NewGormLogger(cfg.Logger.Level),
		})
		return openErr
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB to configure connection pool
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Infof("Database connection established successfully")
	return nil
}

func openDialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.Database.Driver {
	case "mysql", "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.DBName,
			cfg.Database.Charset,
		)
		logger.Infof("Connecting to database: %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
		return mysql.Open(dsn), nil
	case "sqlite":
		logger.Infof("Opening sqlite database: %s", cfg.Database.Path)
		return sqlite.Open(cfg.Database.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}

// Transactional runs fn inside a transaction. Every write fn performed is
// rolled back when fn returns an error and committed otherwise.
func Transactional(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(fn)
}
