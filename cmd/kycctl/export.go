package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func exportCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the review queue to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("out")
			if path == "" {
				path = fmt.Sprintf("kyc-review-queue-%s.xlsx", time.Now().Format("20060102-150405"))
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			if err := env.reviewService().ExportReviewQueue(cmd.Context(), queueFilter(cmd), f); err != nil {
				f.Close()
				os.Remove(path)
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			fmt.Fprintf(env.out, "Exported review queue to %s\n", path)
			return nil
		},
	}

	addQueueFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "Output file (default kyc-review-queue-<timestamp>.xlsx)")

	return cmd
}
