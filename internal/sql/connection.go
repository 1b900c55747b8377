package sql

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConnector is an interface for database connections.
type DBConnector interface {
	Connect(ctx context.Context) (*gorm.DB, error)
}

// SQLiteConnector implements DBConnector for the local run-history file.
type SQLiteConnector struct {
	dbPath string
}

// NewSQLiteConnector creates a connector for the SQLite file at dbPath.
func NewSQLiteConnector(dbPath string) *SQLiteConnector {
	return &SQLiteConnector{dbPath: dbPath}
}

// Connect connects to the SQLite database.
func (c *SQLiteConnector) Connect(_ context.Context) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(c.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}
	return database, nil
}
