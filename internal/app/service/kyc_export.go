package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	apperrors "github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/xuri/excelize/v2"
)

const reviewQueueSheet = "ReviewQueue"

var reviewQueueHeaders = []string{
	"Session ID", "User ID", "User Email", "Status", "Provider",
	"Documents", "Flags", "Submitted At", "Created At", "Last Event",
}

// ExportReviewQueue writes the same items ListReviewQueue returns as an XLSX workbook.
func (s *kycReviewService) ExportReviewQueue(ctx context.Context, filter ReviewQueueFilter, w io.Writer) error {
	result, err := s.ListReviewQueue(ctx, filter)
	if err != nil {
		return err
	}

	f, err := BuildReviewQueueWorkbook(result.Items)
	if err != nil {
		return apperrors.Internal(err)
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// BuildReviewQueueWorkbook renders items into a single-sheet workbook.
func BuildReviewQueueWorkbook(items []ReviewQueueItem) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", reviewQueueSheet); err != nil {
		f.Close()
		return nil, err
	}

	for i, header := range reviewQueueHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reviewQueueSheet, cell, header); err != nil {
			f.Close()
			return nil, err
		}
	}

	for i, item := range items {
		row := i + 2
		values := []interface{}{
			item.Session.ID,
			item.Session.UserID,
			userEmail(item.User),
			string(item.Session.Status),
			item.Session.Provider,
			len(item.Documents),
			joinFlags(item.Flags),
			formatOptionalTime(item.Session.SubmittedAt),
			item.Session.CreatedAt.UTC().Format(time.RFC3339),
			lastEventSummary(item.Events),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(reviewQueueSheet, cell, value); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	return f, nil
}

func userEmail(user *model.User) string {
	if user == nil {
		return ""
	}
	return user.Email
}

func joinFlags(flags []RiskFlag) string {
	parts := make([]string, len(flags))
	for i, flag := range flags {
		parts[i] = string(flag)
	}
	return strings.Join(parts, ",")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func lastEventSummary(events []model.KYCStatusEvent) string {
	if len(events) == 0 {
		return ""
	}
	last := events[len(events)-1]
	from := "-"
	if last.FromStatus != nil {
		from = string(*last.FromStatus)
	}
	return fmt.Sprintf("%s -> %s by %s:%s", from, last.ToStatus, last.ActorType, last.ActorID)
}
