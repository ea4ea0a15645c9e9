package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

const pruneTimeout = 2 * time.Minute

// ReceiptPruner deletes webhook receipts older than the retention window.
// Receipts are only needed while a provider may still redeliver.
type ReceiptPruner struct {
	cron      *cron.Cron
	receipts  repository.WebhookReceiptRepository
	spec      string
	retention time.Duration
	now       func() time.Time
}

func NewReceiptPruner(receipts repository.WebhookReceiptRepository, spec string, retention time.Duration) *ReceiptPruner {
	return &ReceiptPruner{
		cron:      cron.New(),
		receipts:  receipts,
		spec:      spec,
		retention: retention,
		now:       time.Now,
	}
}

// Start registers the prune job on the configured cron spec.
func (p *ReceiptPruner) Start() error {
	_, err := p.cron.AddFunc(p.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()

		if _, err := p.RunOnce(ctx); err != nil {
			logger.Error("Scheduled webhook receipt prune failed", err)
		}
	})
	if err != nil {
		logger.Error("Failed to add cron job for webhook receipt prune", err, map[string]interface{}{
			"spec": p.spec,
		})
		return err
	}

	p.cron.Start()
	logger.Info("Webhook receipt pruner started", map[string]interface{}{
		"spec":      p.spec,
		"retention": p.retention.String(),
	})
	return nil
}

// RunOnce deletes receipts created before now minus the retention window.
func (p *ReceiptPruner) RunOnce(ctx context.Context) (int64, error) {
	return p.receipts.DeleteOlderThan(ctx, p.now().Add(-p.retention))
}

// Stop waits for a running prune to finish.
func (p *ReceiptPruner) Stop() {
	logger.Info("Stopping webhook receipt pruner...", nil)
	<-p.cron.Stop().Done()
	logger.Info("Webhook receipt pruner stopped", nil)
}
