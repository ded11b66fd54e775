package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/podforge/digest-api/internal/models"
)

type DB struct {
	*gorm.DB
}

// Initialize opens the SQLite store. The pipeline runs many episode
// goroutines against one file, so the DSN enables WAL and a busy timeout
// unless the caller already supplied query parameters (in-memory test DSNs
// do).
func Initialize(dbPath string, verbose bool) (*DB, error) {
	// Ensure the database directory exists
	if !strings.HasPrefix(dbPath, "file:") {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)
	}

	// Configure GORM logger
	logLevel := logger.Error
	if verbose {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}

	// SQLite tolerates one writer; keep the pool small and long-lived.
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	return sqlDB.Close()
}

// HealthCheck verifies the database connection is working
func (db *DB) HealthCheck() error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Migrate applies the schema for the full model set. AutoMigrate adds the
// mode-suffixed transcript/summary columns with NULL defaults when opening
// a pre-mode database; existing unsuffixed data stays where full-mode
// reads find it.
func (db *DB) Migrate() error {
	all := []any{
		&models.Episode{},
		&models.DownloadHistory{},
		&models.Failure{},
		&models.Run{},
		&models.AudioCacheEntry{},
	}
	if err := db.DB.AutoMigrate(all...); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	log.Printf("[INFO] Successfully migrated %d model(s)", len(all))
	return nil
}
