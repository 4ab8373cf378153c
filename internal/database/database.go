package database

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/jhjj/staychat/internal/models"
)

type Database struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewDatabase(db *gorm.DB, logger *zap.SugaredLogger) *Database {
	return &Database{db: db, logger: logger}
}

// Connect открывает пул к Postgres и накатывает схему
func Connect(dsn string, logger *zap.SugaredLogger) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Room{}, &models.Message{}); err != nil {
		return nil, err
	}

	return &Database{db: db, logger: logger}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
