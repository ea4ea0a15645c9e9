package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ikkim/gigmarket-backend/config"
	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/ikkim/gigmarket-backend/internal/db"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var Version = "dev"

// cliEnv carries the connections shared by every subcommand. Tests inject db.
type cliEnv struct {
	cfg *config.Config
	db  *gorm.DB
	out io.Writer
}

func main() {
	env := &cliEnv{out: os.Stdout}
	if err := newRootCmd(env).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(env *cliEnv) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kycctl",
		Short:         "Operator tooling for GigMarket identity verification",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.connect()
		},
	}

	rootCmd.AddCommand(queueCmd(env))
	rootCmd.AddCommand(exportCmd(env))
	rootCmd.AddCommand(pruneWebhooksCmd(env))
	rootCmd.AddCommand(auditCmd(env))

	return rootCmd
}

func (e *cliEnv) connect() error {
	if e.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		e.cfg = cfg
	}
	if e.db != nil {
		return nil
	}

	logger.Initialize(logger.Config{
		Level:  "warn",
		Format: "console",
		Output: os.Stderr,
	})
	if err := db.Initialize(&e.cfg.Database); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	e.db = db.GetDB()
	return nil
}

func (e *cliEnv) reviewService() service.KYCReviewService {
	return service.NewKYCReviewService(repository.NewKYCRepository(e.db), repository.NewUserRepository(e.db), nil)
}

// queueFilter reads the shared --status/--limit flags. An unset limit keeps
// the service default.
func queueFilter(cmd *cobra.Command) service.ReviewQueueFilter {
	status, _ := cmd.Flags().GetString("status")
	filter := service.ReviewQueueFilter{Status: status}
	if cmd.Flags().Changed("limit") {
		limit, _ := cmd.Flags().GetInt("limit")
		filter.Limit = &limit
	}
	return filter
}

func addQueueFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("status", "s", "", "Session status filter (ALL or a session status; default SUBMITTED and MANUAL_REVIEW)")
	cmd.Flags().IntP("limit", "n", service.DefaultReviewQueueLimit, "Maximum sessions (1-100)")
}
