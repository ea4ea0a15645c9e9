package main

import (
	"context"
	"fmt"

	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/spf13/cobra"
)

type auditFinding struct {
	SessionID string
	Stored    string
	Replayed  string
	Problem   string
}

type auditReport struct {
	Checked  int
	Findings []auditFinding
}

func auditCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Replay every session's event log and compare it with the stored status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pageSize, _ := cmd.Flags().GetInt("page-size")
			if pageSize < 1 {
				return fmt.Errorf("page-size must be positive")
			}

			report, err := auditSessions(cmd.Context(), repository.NewKYCRepository(env.db), pageSize)
			if err != nil {
				return err
			}

			for _, f := range report.Findings {
				fmt.Fprintf(env.out, "%s stored=%s replayed=%s %s\n", f.SessionID, f.Stored, f.Replayed, f.Problem)
			}
			fmt.Fprintf(env.out, "Checked %d session(s), %d inconsistent\n", report.Checked, len(report.Findings))
			if len(report.Findings) > 0 {
				return fmt.Errorf("audit found %d inconsistent session(s)", len(report.Findings))
			}
			return nil
		},
	}

	cmd.Flags().Int("page-size", 200, "Sessions loaded per page")

	return cmd
}

func auditSessions(ctx context.Context, repo repository.KYCRepository, pageSize int) (*auditReport, error) {
	report := &auditReport{}
	afterID := ""
	for {
		sessions, err := repo.ListSessionsAfter(ctx, afterID, pageSize)
		if err != nil {
			return nil, err
		}
		for _, session := range sessions {
			report.Checked++
			events, err := repo.ListEvents(ctx, session.ID)
			if err != nil {
				return nil, err
			}

			replayed, err := service.ReplayStatus(events)
			switch {
			case err != nil:
				report.Findings = append(report.Findings, auditFinding{
					SessionID: session.ID,
					Stored:    string(session.Status),
					Replayed:  "-",
					Problem:   err.Error(),
				})
			case replayed != session.Status:
				report.Findings = append(report.Findings, auditFinding{
					SessionID: session.ID,
					Stored:    string(session.Status),
					Replayed:  string(replayed),
					Problem:   "status does not match event log",
				})
			}
		}
		if len(sessions) < pageSize {
			return report, nil
		}
		afterID = sessions[len(sessions)-1].ID
	}
}
