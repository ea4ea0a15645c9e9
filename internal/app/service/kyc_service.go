package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	apperrors "github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/internal/metrics"
	"github.com/ikkim/gigmarket-backend/internal/storage"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/ikkim/gigmarket-backend/internal/app/service")

const maxProviderLength = 64

var (
	ErrUnauthenticated      = apperrors.New(apperrors.KindUnauthorized, apperrors.AuthUnauthorized, "authenticated user is required")
	ErrKYCSessionNotFound   = apperrors.New(apperrors.KindNotFound, apperrors.KYCSessionNotFound, "kyc session not found")
	ErrKYCSessionLocked     = apperrors.New(apperrors.KindLocked, apperrors.KYCSessionLocked, "kyc session is already decided and cannot be changed")
	ErrKYCSessionIncomplete = apperrors.New(apperrors.KindIncomplete, apperrors.KYCSessionIncomplete, "kyc session does not have the required documents")
	ErrKYCInvalidTransition = apperrors.New(apperrors.KindConflict, apperrors.KYCInvalidTransition, "kyc status transition is not allowed")
	ErrDuplicateDocument    = apperrors.New(apperrors.KindConflict, apperrors.DuplicateDocument, "a document with this checksum already exists in the session")
	ErrInvalidProvider      = apperrors.InvalidInput(apperrors.InvalidProvider, "provider must be at most 64 characters")
	ErrInvalidDecision      = apperrors.InvalidInput(apperrors.InvalidDecision, "decision must be MANUAL_REVIEW, VERIFIED or REJECTED")
	ErrReviewerRequired     = apperrors.InvalidInput(apperrors.ValidationInvalidInput, "reviewer is required")
)

// StatusNotifier is told about every committed status change.
type StatusNotifier interface {
	NotifyKYCStatus(userID string, session *model.KYCSession)
}

// SessionResult pairs a session with its external status.
type SessionResult struct {
	Status  ExternalKYCStatus `json:"status"`
	Session *model.KYCSession `json:"session"`
}

type HistoryResult struct {
	Session *model.KYCSession      `json:"session"`
	Events  []model.KYCStatusEvent `json:"events"`
}

type ReviewInput struct {
	SessionID  string
	Decision   model.KYCStatus
	ReviewedBy string
	Reason     string
}

type KYCService interface {
	StartSession(ctx context.Context, userID, provider string) (*SessionResult, error)
	GetStatus(ctx context.Context, userID string) (*SessionResult, error)
	SubmitSession(ctx context.Context, userID, sessionID string) (*SessionResult, error)
	ReviewSession(ctx context.Context, input ReviewInput) (*SessionResult, error)
	GetHistory(ctx context.Context, userID, sessionID string) (*HistoryResult, error)
	CreateUploadURL(ctx context.Context, input UploadURLInput) (*UploadURLResult, error)
	UploadDocument(ctx context.Context, input UploadDocumentInput) (*UploadDocumentResult, error)
}

type kycService struct {
	db       *gorm.DB
	kycRepo  repository.KYCRepository
	storage  storage.ObjectStorage
	policy   KYCPolicy
	notifier StatusNotifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewKYCService wires the session state machine and document intake.
// notifier and m may be nil.
func NewKYCService(
	db *gorm.DB,
	kycRepo repository.KYCRepository,
	objectStorage storage.ObjectStorage,
	policy KYCPolicy,
	notifier StatusNotifier,
	m *metrics.Metrics,
) KYCService {
	return newKYCService(db, kycRepo, objectStorage, policy, notifier, m)
}

func newKYCService(
	db *gorm.DB,
	kycRepo repository.KYCRepository,
	objectStorage storage.ObjectStorage,
	policy KYCPolicy,
	notifier StatusNotifier,
	m *metrics.Metrics,
) *kycService {
	return &kycService{
		db:       db,
		kycRepo:  kycRepo,
		storage:  objectStorage,
		policy:   policy,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

func (s *kycService) StartSession(ctx context.Context, userID, provider string) (*SessionResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	normalizedProvider, err := normalizeProvider(provider)
	if err != nil {
		return nil, err
	}

	session := newSession(userID, normalizedProvider)
	if err := s.commitSession(ctx, session); err != nil {
		return nil, err
	}
	return &SessionResult{Status: ToExternalStatus(session.Status), Session: session}, nil
}

// newSession builds an unsaved CREATED session with its id assigned, so
// object keys can be derived before anything is written.
func newSession(userID, provider string) *model.KYCSession {
	return &model.KYCSession{
		ID:       uuid.NewString(),
		UserID:   userID,
		Status:   model.KYCStatusCreated,
		Provider: provider,
	}
}

// commitSession writes session and its creation event in one transaction,
// then announces it.
func (s *kycService) commitSession(ctx context.Context, session *model.KYCSession) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.startSessionTx(ctx, s.kycRepo.WithTx(tx), session)
	})
	if err != nil {
		logger.Error("Failed to start kyc session", err, map[string]interface{}{
			"user_id": session.UserID,
		})
		return apperrors.ParseError(err)
	}

	s.metrics.IncTransition(string(model.KYCStatusCreated), string(model.ActorUser))
	s.notify(session)

	logger.Info("KYC session started", map[string]interface{}{
		"user_id":    session.UserID,
		"session_id": session.ID,
		"provider":   session.Provider,
	})
	return nil
}

func (s *kycService) startSessionTx(ctx context.Context, repo repository.KYCRepository, session *model.KYCSession) error {
	if err := repo.CreateSession(ctx, session); err != nil {
		return err
	}
	event := &model.KYCStatusEvent{
		KYCSessionID: session.ID,
		ToStatus:     model.KYCStatusCreated,
		ActorType:    model.ActorUser,
		ActorID:      session.UserID,
	}
	return repo.AppendEvent(ctx, event)
}

func (s *kycService) GetStatus(ctx context.Context, userID string) (*SessionResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.kycRepo.FindLatestSessionByUser(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return &SessionResult{Status: ExternalStatusNotStarted}, nil
		}
		return nil, apperrors.ParseError(err)
	}
	return &SessionResult{Status: ToExternalStatus(session.Status), Session: session}, nil
}

func (s *kycService) SubmitSession(ctx context.Context, userID, sessionID string) (*SessionResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperrors.InvalidInput(apperrors.InvalidSessionID, "session id is required")
	}

	var (
		session *model.KYCSession
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.kycRepo.WithTx(tx)
		locked, err := s.lockSession(ctx, repo, sessionID)
		if err != nil {
			return err
		}
		if locked.UserID != userID {
			return ErrKYCSessionNotFound
		}
		session = locked
		changed, err = s.submitLocked(ctx, repo, session, model.ActorUser, userID, nil)
		return err
	})
	if err != nil {
		logger.Warn("KYC session submit failed", map[string]interface{}{
			"user_id":    userID,
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, apperrors.ParseError(err)
	}

	if changed {
		s.metrics.IncTransition(string(model.KYCStatusSubmitted), string(model.ActorUser))
		s.notify(session)
	}
	return &SessionResult{Status: ToExternalStatus(session.Status), Session: session}, nil
}

// submitLocked moves a locked session to SUBMITTED. A session already in
// SUBMITTED is left untouched and reported as unchanged.
func (s *kycService) submitLocked(ctx context.Context, repo repository.KYCRepository, session *model.KYCSession, actor model.ActorType, actorID string, reason *string) (bool, error) {
	switch {
	case session.Status == model.KYCStatusSubmitted:
		return false, nil
	case session.Status.IsTerminal():
		return false, ErrKYCSessionLocked
	case session.Status != model.KYCStatusCreated:
		return false, ErrKYCInvalidTransition
	}

	count, err := repo.CountDocuments(ctx, session.ID)
	if err != nil {
		return false, err
	}
	if count < int64(s.policy.MinDocuments) {
		return false, ErrKYCSessionIncomplete
	}

	if err := s.transitionLocked(ctx, repo, session, model.KYCStatusSubmitted, actor, actorID, reason); err != nil {
		return false, err
	}
	return true, nil
}

func (s *kycService) ReviewSession(ctx context.Context, input ReviewInput) (*SessionResult, error) {
	ctx, span := tracer.Start(ctx, "kyc.ReviewSession", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("kyc.session_id", input.SessionID),
		attribute.String("kyc.decision", string(input.Decision)),
	)

	reviewedBy := strings.TrimSpace(input.ReviewedBy)
	if reviewedBy == "" {
		return nil, ErrReviewerRequired
	}
	decision := model.KYCStatus(strings.ToUpper(strings.TrimSpace(string(input.Decision))))
	if !IsReviewDecision(decision) {
		return nil, ErrInvalidDecision
	}

	var (
		session *model.KYCSession
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		session, changed, txErr = s.reviewTx(ctx, s.kycRepo.WithTx(tx), input.SessionID, decision, model.ActorAdmin, reviewedBy, reviewedBy, optionalString(input.Reason))
		return txErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("KYC review failed", map[string]interface{}{
			"session_id":  input.SessionID,
			"decision":    decision,
			"reviewed_by": reviewedBy,
			"error":       err.Error(),
		})
		return nil, apperrors.ParseError(err)
	}

	if changed {
		s.metrics.IncTransition(string(decision), string(model.ActorAdmin))
		s.notify(session)
	}

	logger.Info("KYC session reviewed", map[string]interface{}{
		"session_id":  session.ID,
		"decision":    decision,
		"reviewed_by": reviewedBy,
		"changed":     changed,
	})
	return &SessionResult{Status: ToExternalStatus(session.Status), Session: session}, nil
}

// reviewTx applies a review decision inside an open transaction. A decision
// matching the current status is a no-op: the reviewer stamp and event are
// written only together with a status change.
func (s *kycService) reviewTx(
	ctx context.Context,
	repo repository.KYCRepository,
	sessionID string,
	decision model.KYCStatus,
	actor model.ActorType,
	actorID, reviewedBy string,
	reason *string,
) (*model.KYCSession, bool, error) {
	session, err := s.lockSession(ctx, repo, sessionID)
	if err != nil {
		return nil, false, err
	}

	if session.Status == decision {
		return session, false, nil
	}
	if session.Status.IsTerminal() {
		return nil, false, ErrKYCSessionLocked
	}
	if !CanTransition(session.Status, decision) {
		return nil, false, ErrKYCInvalidTransition
	}

	now := s.now()
	session.ReviewedBy = &reviewedBy
	session.ReviewedAt = &now
	if err := s.transitionLocked(ctx, repo, session, decision, actor, actorID, reason); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

func (s *kycService) GetHistory(ctx context.Context, userID, sessionID string) (*HistoryResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.resolveOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	events, err := s.kycRepo.ListEvents(ctx, session.ID)
	if err != nil {
		return nil, apperrors.ParseError(err)
	}
	return &HistoryResult{Session: session, Events: events}, nil
}

// resolveOwnedSession returns the session by id when given, else the user's
// latest. Sessions owned by someone else are reported as not found.
func (s *kycService) resolveOwnedSession(ctx context.Context, userID, sessionID string) (*model.KYCSession, error) {
	var (
		session *model.KYCSession
		err     error
	)
	if strings.TrimSpace(sessionID) == "" {
		session, err = s.kycRepo.FindLatestSessionByUser(ctx, userID)
	} else {
		session, err = s.kycRepo.FindSessionByID(ctx, sessionID)
	}
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrKYCSessionNotFound
		}
		return nil, apperrors.ParseError(err)
	}
	if session.UserID != userID {
		return nil, ErrKYCSessionNotFound
	}
	return session, nil
}

func (s *kycService) lockSession(ctx context.Context, repo repository.KYCRepository, sessionID string) (*model.KYCSession, error) {
	session, err := repo.FindSessionByIDForUpdate(ctx, sessionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrKYCSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// transitionLocked writes the new status and its event. The caller holds the
// row lock and has already checked the edge.
func (s *kycService) transitionLocked(
	ctx context.Context,
	repo repository.KYCRepository,
	session *model.KYCSession,
	to model.KYCStatus,
	actor model.ActorType,
	actorID string,
	reason *string,
) error {
	from := session.Status
	session.Status = to
	if to == model.KYCStatusSubmitted {
		now := s.now()
		session.SubmittedAt = &now
	}
	if err := repo.UpdateSession(ctx, session); err != nil {
		return err
	}
	return repo.AppendEvent(ctx, &model.KYCStatusEvent{
		KYCSessionID: session.ID,
		FromStatus:   &from,
		ToStatus:     to,
		ActorType:    actor,
		ActorID:      actorID,
		Reason:       reason,
	})
}

func (s *kycService) notify(session *model.KYCSession) {
	if s.notifier == nil || session == nil {
		return
	}
	s.notifier.NotifyKYCStatus(session.UserID, session)
}

func normalizeProvider(provider string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		return model.DefaultKYCProvider, nil
	}
	if len(p) > maxProviderLength {
		return "", ErrInvalidProvider
	}
	return p, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
