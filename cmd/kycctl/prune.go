package main

import (
	"fmt"
	"time"

	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	"github.com/ikkim/gigmarket-backend/internal/scheduler"
	"github.com/spf13/cobra"
)

func pruneWebhooksCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune-webhooks",
		Short: "Delete webhook receipts past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := env.cfg.Webhook.ReceiptRetention
			if cmd.Flags().Changed("retention") {
				retention, _ = cmd.Flags().GetDuration("retention")
			}
			if retention <= 0 {
				return fmt.Errorf("retention must be positive, got %s", retention)
			}

			pruner := scheduler.NewReceiptPruner(
				repository.NewWebhookReceiptRepository(env.db),
				env.cfg.Scheduler.ReceiptPruneSpec,
				retention,
			)
			deleted, err := pruner.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(env.out, "Deleted %d webhook receipt(s) older than %s\n", deleted, retention)
			return nil
		},
	}

	cmd.Flags().Duration("retention", 30*24*time.Hour, "Keep receipts newer than this (default from KYC_WEBHOOK_RECEIPT_RETENTION)")

	return cmd
}
