package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase opens a connection based on the URI scheme (postgres for
// deployments, a sqlite file path otherwise) and applies pending migrations.
func NewDatabase(uri string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://") {
		dialector = postgres.Open(uri)
	} else {
		dialector = sqlite.Open(uri)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
