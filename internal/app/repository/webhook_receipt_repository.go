package repository

import (
	"context"
	"time"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"gorm.io/gorm"
)

type WebhookReceiptRepository interface {
	WithTx(tx *gorm.DB) WebhookReceiptRepository
	FindByIdempotencyKey(ctx context.Context, key string) (*model.WebhookReceipt, error)
	Create(ctx context.Context, receipt *model.WebhookReceipt) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type webhookReceiptRepository struct {
	db *gorm.DB
}

func NewWebhookReceiptRepository(db *gorm.DB) WebhookReceiptRepository {
	return &webhookReceiptRepository{db: db}
}

func (r *webhookReceiptRepository) WithTx(tx *gorm.DB) WebhookReceiptRepository {
	return &webhookReceiptRepository{db: tx}
}

func (r *webhookReceiptRepository) FindByIdempotencyKey(ctx context.Context, key string) (*model.WebhookReceipt, error) {
	var receipt model.WebhookReceipt
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&receipt).Error; err != nil {
		logFindError("Failed to find webhook receipt", err, map[string]interface{}{"idempotency_key": key})
		return nil, err
	}
	return &receipt, nil
}

// Create inserts the receipt. A concurrent delivery of the same key fails the
// unique index; callers re-read the stored receipt in that case.
func (r *webhookReceiptRepository) Create(ctx context.Context, receipt *model.WebhookReceipt) error {
	if err := r.db.WithContext(ctx).Create(receipt).Error; err != nil {
		logger.Warn("Failed to store webhook receipt", map[string]interface{}{
			"idempotency_key": receipt.IdempotencyKey,
			"error":           err.Error(),
		})
		return err
	}
	return nil
}

func (r *webhookReceiptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.WebhookReceipt{})
	if result.Error != nil {
		logger.Error("Failed to prune webhook receipts", result.Error, map[string]interface{}{
			"cutoff": cutoff,
		})
		return 0, result.Error
	}

	logger.Info("Pruned webhook receipts", map[string]interface{}{
		"cutoff":  cutoff,
		"deleted": result.RowsAffected,
	})
	return result.RowsAffected, nil
}
