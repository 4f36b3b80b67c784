package db

import (
	"errors"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrCreateDatabase  = errors.New("cannot create a database")
	ErrMigrationFailed = errors.New("failed to migrate")
)

// Open connects to the SQLite database at dsn and brings the schema up to date
func Open(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		slog.Error("db: Cannot open GORM database", "error", err, "dsn", dsn)

		return nil, ErrCreateDatabase
	}

	// SQLite allows one writer, so a single connection avoids "database is locked"
	sqlDB, err := conn.DB()
	if err != nil {
		slog.Error("db: Cannot access connection pool", "error", err)

		return nil, ErrCreateDatabase
	}
	sqlDB.SetMaxOpenConns(1)

	// SQLite only honours ON DELETE CASCADE with this pragma on
	if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		slog.Warn("db: Cannot enable foreign keys", "error", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}

	return conn, nil
}

func Migrate(conn *gorm.DB) error {
	slog.Info("db: Going to start database migrations")

	err := conn.AutoMigrate(&OwnerConfig{})
	if err != nil {
		slog.Error("db: OwnerConfig migration failed", "error", err)

		return ErrMigrationFailed
	}

	err = conn.AutoMigrate(&Reviewer{})
	if err != nil {
		slog.Error("db: Reviewer migration failed", "error", err)

		return ErrMigrationFailed
	}

	err = conn.AutoMigrate(&GroupLink{})
	if err != nil {
		slog.Error("db: GroupLink migration failed", "error", err)

		return ErrMigrationFailed
	}

	return nil
}
