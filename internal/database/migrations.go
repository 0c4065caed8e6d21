package database

import (
	"log"
	"log/slog"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(
					&User{}, &UserFace{}, &EventImage{}, &BackgroundTask{},
				)
			},
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// This is run by the migrator if no previous migration is detected. It
		// allows it to bypass running all the migrations sequentially and just create
		// the latest database state.

		log.Println("clean database detected, running full schema initialization")

		switch db.Dialector.Name() {
		case "sqlite", "sqlite3":
			// Sqlite does not enable foreign key constraints by default, so we need to enable them manually.
			if err := txn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				slog.Error("error enabling foreign keys for SQLite", "error", err)
			}
		case "postgres":
			// Embedding columns require the pgvector extension.
			if err := txn.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
				slog.Error("error creating pgvector extension", "error", err)
				return err
			}
		}

		return db.AutoMigrate(
			&User{}, &UserFace{}, &EventImage{}, &BackgroundTask{},
		)
	})

	return migrator
}
