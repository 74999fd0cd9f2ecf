package database

import (
	"database/sql"
	"fmt"

	"deals-system/internal/config"
	"deals-system/internal/logger"

	_ "github.com/lib/pq"
)

// DB wraps the SQL connection pool.
type DB struct {
	*sql.DB
}

// Connect opens a PostgreSQL connection and verifies it with a ping.
func Connect(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL")

	return &DB{DB: sqlDB}, nil
}

// Health pings the database.
func (db *DB) Health() error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	return db.Ping()
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}
