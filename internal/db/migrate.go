package db

import (
	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"gorm.io/gorm"
)

// Models lists every table this service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.KYCSession{},
		&model.IdentityDocument{},
		&model.KYCStatusEvent{},
		&model.WebhookReceipt{},
	}
}

// Migrate runs database migrations
func Migrate() error {
	return MigrateDB(DB)
}

// MigrateDB migrates conn. Used by Migrate, the test database and the
// integration tests.
func MigrateDB(conn *gorm.DB) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := conn.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}
