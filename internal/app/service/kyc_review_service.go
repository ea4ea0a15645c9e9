package service

import (
	"context"
	"io"
	"strings"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	apperrors "github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/internal/metrics"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReviewQueueLimit = 25
	MaxReviewQueueLimit     = 100
	highDocumentCount       = 5

	// ReviewQueueAllStatuses disables the status filter.
	ReviewQueueAllStatuses = "ALL"
)

// RiskFlag is an informational hint shown to reviewers. Flags never block a decision.
type RiskFlag string

const (
	FlagNoDocuments               RiskFlag = "NO_DOCUMENTS"
	FlagHighDocumentCount         RiskFlag = "HIGH_DOCUMENT_COUNT"
	FlagMissingObjectKey          RiskFlag = "MISSING_OBJECT_KEY"
	FlagDuplicateObjectKey        RiskFlag = "DUPLICATE_OBJECT_KEY"
	FlagInconsistentSessionStatus RiskFlag = "INCONSISTENT_SESSION_STATUS"
)

var defaultReviewStatuses = []model.KYCStatus{model.KYCStatusSubmitted, model.KYCStatusManualReview}

type ReviewQueueFilter struct {
	Status string // empty: SUBMITTED and MANUAL_REVIEW
	Limit  *int   // nil: DefaultReviewQueueLimit
}

type ReviewQueueItem struct {
	Session   *model.KYCSession        `json:"session"`
	User      *model.User              `json:"user"`
	Documents []model.IdentityDocument `json:"documents"`
	Events    []model.KYCStatusEvent   `json:"events"`
	Flags     []RiskFlag               `json:"flags"`
}

type ReviewQueueResult struct {
	Count int               `json:"count"`
	Items []ReviewQueueItem `json:"items"`
}

type KYCReviewService interface {
	ListReviewQueue(ctx context.Context, filter ReviewQueueFilter) (*ReviewQueueResult, error)
	ExportReviewQueue(ctx context.Context, filter ReviewQueueFilter, w io.Writer) error
}

type kycReviewService struct {
	kycRepo  repository.KYCRepository
	userRepo repository.UserRepository
	metrics  *metrics.Metrics
}

func NewKYCReviewService(kycRepo repository.KYCRepository, userRepo repository.UserRepository, m *metrics.Metrics) KYCReviewService {
	return &kycReviewService{
		kycRepo:  kycRepo,
		userRepo: userRepo,
		metrics:  m,
	}
}

// ParseReviewQueueFilter validates the status filter and limit.
func ParseReviewQueueFilter(filter ReviewQueueFilter) ([]model.KYCStatus, int, error) {
	limit := DefaultReviewQueueLimit
	if filter.Limit != nil {
		limit = *filter.Limit
		if limit < 1 || limit > MaxReviewQueueLimit {
			return nil, 0, apperrors.InvalidInput(apperrors.InvalidLimit, "limit must be between 1 and 100")
		}
	}

	status := strings.ToUpper(strings.TrimSpace(filter.Status))
	switch {
	case status == "":
		return defaultReviewStatuses, limit, nil
	case status == ReviewQueueAllStatuses:
		return nil, limit, nil
	case model.KYCStatus(status).IsValid():
		return []model.KYCStatus{model.KYCStatus(status)}, limit, nil
	default:
		return nil, 0, apperrors.InvalidInput(apperrors.InvalidStatusFilter, "status must be ALL or a known session status")
	}
}

func (s *kycReviewService) ListReviewQueue(ctx context.Context, filter ReviewQueueFilter) (*ReviewQueueResult, error) {
	statuses, limit, err := ParseReviewQueueFilter(filter)
	if err != nil {
		return nil, err
	}

	sessions, err := s.kycRepo.ListSessionsByStatus(ctx, statuses, limit)
	if err != nil {
		return nil, apperrors.ParseError(err)
	}

	sessionIDs := make([]string, 0, len(sessions))
	userIDs := make([]string, 0, len(sessions))
	seenUsers := make(map[string]struct{}, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
		if _, ok := seenUsers[session.UserID]; !ok {
			seenUsers[session.UserID] = struct{}{}
			userIDs = append(userIDs, session.UserID)
		}
	}

	var (
		docs   []model.IdentityDocument
		events []model.KYCStatusEvent
		users  []model.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.kycRepo.ListDocumentsBySessionIDs(gctx, sessionIDs)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.kycRepo.ListEventsBySessionIDs(gctx, sessionIDs)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.userRepo.FindByIDs(gctx, userIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("Failed to load review queue details", err, map[string]interface{}{
			"session_count": len(sessions),
		})
		return nil, apperrors.ParseError(err)
	}

	docsBySession := make(map[string][]model.IdentityDocument, len(sessions))
	for _, doc := range docs {
		docsBySession[doc.KYCSessionID] = append(docsBySession[doc.KYCSessionID], doc)
	}
	eventsBySession := make(map[string][]model.KYCStatusEvent, len(sessions))
	for _, event := range events {
		eventsBySession[event.KYCSessionID] = append(eventsBySession[event.KYCSessionID], event)
	}
	usersByID := make(map[string]*model.User, len(users))
	for i := range users {
		usersByID[users[i].ID] = &users[i]
	}

	items := make([]ReviewQueueItem, 0, len(sessions))
	for i := range sessions {
		session := &sessions[i]
		sessionDocs := docsBySession[session.ID]
		if sessionDocs == nil {
			sessionDocs = []model.IdentityDocument{}
		}
		sessionEvents := eventsBySession[session.ID]
		if sessionEvents == nil {
			sessionEvents = []model.KYCStatusEvent{}
		}
		items = append(items, ReviewQueueItem{
			Session:   session,
			User:      usersByID[session.UserID],
			Documents: sessionDocs,
			Events:    sessionEvents,
			Flags:     ComputeRiskFlags(session, sessionDocs),
		})
	}

	s.metrics.ObserveReviewQueue(len(items))
	return &ReviewQueueResult{Count: len(items), Items: items}, nil
}

// ComputeRiskFlags derives the reviewer hints for one session.
func ComputeRiskFlags(session *model.KYCSession, docs []model.IdentityDocument) []RiskFlag {
	flags := []RiskFlag{}

	if len(docs) == 0 {
		flags = append(flags, FlagNoDocuments)
	}
	if len(docs) > highDocumentCount {
		flags = append(flags, FlagHighDocumentCount)
	}

	missingKey := false
	duplicateKey := false
	seenKeys := make(map[string]struct{}, len(docs))
	for i := range docs {
		key, ok := docs[i].ObjectKey()
		if !ok {
			missingKey = true
			continue
		}
		if _, dup := seenKeys[key]; dup {
			duplicateKey = true
		}
		seenKeys[key] = struct{}{}
	}
	if missingKey {
		flags = append(flags, FlagMissingObjectKey)
	}
	if duplicateKey {
		flags = append(flags, FlagDuplicateObjectKey)
	}

	if session.Status == model.KYCStatusCreated && len(docs) > 0 {
		flags = append(flags, FlagInconsistentSessionStatus)
	}
	return flags
}
