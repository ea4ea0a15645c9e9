package repository

import (
	"context"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	apperrors "github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KYCRepository persists sessions, documents and status events. Status and
// event writes for one transition must go through the same WithTx handle.
type KYCRepository interface {
	WithTx(tx *gorm.DB) KYCRepository

	CreateSession(ctx context.Context, session *model.KYCSession) error
	FindSessionByID(ctx context.Context, id string) (*model.KYCSession, error)
	FindSessionByIDForUpdate(ctx context.Context, id string) (*model.KYCSession, error)
	FindLatestSessionByUser(ctx context.Context, userID string) (*model.KYCSession, error)
	UpdateSession(ctx context.Context, session *model.KYCSession) error
	ListSessionsByStatus(ctx context.Context, statuses []model.KYCStatus, limit int) ([]model.KYCSession, error)
	ListSessionsAfter(ctx context.Context, afterID string, limit int) ([]model.KYCSession, error)

	CreateDocument(ctx context.Context, doc *model.IdentityDocument) error
	CountDocuments(ctx context.Context, sessionID string) (int64, error)
	DocumentChecksumExists(ctx context.Context, sessionID, checksum string) (bool, error)
	ListDocumentsBySessionIDs(ctx context.Context, sessionIDs []string) ([]model.IdentityDocument, error)

	AppendEvent(ctx context.Context, event *model.KYCStatusEvent) error
	ListEvents(ctx context.Context, sessionID string) ([]model.KYCStatusEvent, error)
	ListEventsBySessionIDs(ctx context.Context, sessionIDs []string) ([]model.KYCStatusEvent, error)
}

type kycRepository struct {
	db *gorm.DB
}

func NewKYCRepository(db *gorm.DB) KYCRepository {
	return &kycRepository{db: db}
}

func (r *kycRepository) WithTx(tx *gorm.DB) KYCRepository {
	return &kycRepository{db: tx}
}

func (r *kycRepository) CreateSession(ctx context.Context, session *model.KYCSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		logger.Error("Failed to create kyc session in database", err, map[string]interface{}{
			"user_id": session.UserID,
		})
		return err
	}

	logger.Debug("KYC session created in database", map[string]interface{}{
		"session_id": session.ID,
		"user_id":    session.UserID,
	})
	return nil
}

func (r *kycRepository) FindSessionByID(ctx context.Context, id string) (*model.KYCSession, error) {
	var session model.KYCSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		logFindError("Failed to find kyc session by ID", err, map[string]interface{}{"session_id": id})
		return nil, err
	}
	return &session, nil
}

// FindSessionByIDForUpdate reads the session with a row lock held until the
// surrounding transaction ends.
func (r *kycRepository) FindSessionByIDForUpdate(ctx context.Context, id string) (*model.KYCSession, error) {
	var session model.KYCSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		logFindError("Failed to lock kyc session", err, map[string]interface{}{"session_id": id})
		return nil, err
	}
	return &session, nil
}

// FindLatestSessionByUser returns the user's current session: the newest by
// creation time.
func (r *kycRepository) FindLatestSessionByUser(ctx context.Context, userID string) (*model.KYCSession, error) {
	var session model.KYCSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		First(&session).Error
	if err != nil {
		logFindError("Failed to find latest kyc session", err, map[string]interface{}{"user_id": userID})
		return nil, err
	}
	return &session, nil
}

func (r *kycRepository) UpdateSession(ctx context.Context, session *model.KYCSession) error {
	err := r.db.WithContext(ctx).
		Model(session).
		Select("status", "submitted_at", "reviewed_by", "reviewed_at", "updated_at").
		Updates(session).Error
	if err != nil {
		logger.Error("Failed to update kyc session in database", err, map[string]interface{}{
			"session_id": session.ID,
			"status":     session.Status,
		})
		return err
	}
	return nil
}

// ListSessionsByStatus returns the oldest sessions first so the queue is
// worked in arrival order. An empty statuses slice matches every status.
func (r *kycRepository) ListSessionsByStatus(ctx context.Context, statuses []model.KYCStatus, limit int) ([]model.KYCSession, error) {
	query := r.db.WithContext(ctx).Model(&model.KYCSession{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var sessions []model.KYCSession
	if err := query.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&sessions).Error; err != nil {
		logger.Error("Failed to list kyc sessions by status", err, map[string]interface{}{
			"statuses": statuses,
			"limit":    limit,
		})
		return nil, err
	}
	return sessions, nil
}

// ListSessionsAfter pages through every session ordered by id.
func (r *kycRepository) ListSessionsAfter(ctx context.Context, afterID string, limit int) ([]model.KYCSession, error) {
	var sessions []model.KYCSession
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		logger.Error("Failed to page kyc sessions", err, map[string]interface{}{"after_id": afterID})
		return nil, err
	}
	return sessions, nil
}

func (r *kycRepository) CreateDocument(ctx context.Context, doc *model.IdentityDocument) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		if apperrors.IsUniqueViolation(err) {
			logger.Warn("Identity document checksum already stored", map[string]interface{}{
				"session_id": doc.KYCSessionID,
			})
			return err
		}
		logger.Error("Failed to create identity document in database", err, map[string]interface{}{
			"session_id": doc.KYCSessionID,
		})
		return err
	}

	logger.Debug("Identity document created in database", map[string]interface{}{
		"document_id": doc.ID,
		"session_id":  doc.KYCSessionID,
	})
	return nil
}

func (r *kycRepository) CountDocuments(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.IdentityDocument{}).
		Where("kyc_session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		logger.Error("Failed to count identity documents", err, map[string]interface{}{"session_id": sessionID})
		return 0, err
	}
	return count, nil
}

func (r *kycRepository) DocumentChecksumExists(ctx context.Context, sessionID, checksum string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.IdentityDocument{}).
		Where("kyc_session_id = ? AND checksum_sha256 = ?", sessionID, checksum).
		Limit(1).
		Count(&count).Error
	if err != nil {
		logger.Error("Failed to check identity document checksum", err, map[string]interface{}{"session_id": sessionID})
		return false, err
	}
	return count > 0, nil
}

func (r *kycRepository) ListDocumentsBySessionIDs(ctx context.Context, sessionIDs []string) ([]model.IdentityDocument, error) {
	if len(sessionIDs) == 0 {
		return []model.IdentityDocument{}, nil
	}

	var docs []model.IdentityDocument
	err := r.db.WithContext(ctx).
		Where("kyc_session_id IN ?", sessionIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&docs).Error
	if err != nil {
		logger.Error("Failed to list identity documents", err, map[string]interface{}{"session_count": len(sessionIDs)})
		return nil, err
	}
	return docs, nil
}

func (r *kycRepository) AppendEvent(ctx context.Context, event *model.KYCStatusEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		logger.Error("Failed to append kyc status event", err, map[string]interface{}{
			"session_id": event.KYCSessionID,
			"to_status":  event.ToStatus,
		})
		return err
	}
	return nil
}

// ListEvents returns a session's events in the order they were written.
func (r *kycRepository) ListEvents(ctx context.Context, sessionID string) ([]model.KYCStatusEvent, error) {
	var events []model.KYCStatusEvent
	if err := r.db.WithContext(ctx).Where("kyc_session_id = ?", sessionID).Order("id ASC").Find(&events).Error; err != nil {
		logger.Error("Failed to list kyc status events", err, map[string]interface{}{"session_id": sessionID})
		return nil, err
	}
	return events, nil
}

func (r *kycRepository) ListEventsBySessionIDs(ctx context.Context, sessionIDs []string) ([]model.KYCStatusEvent, error) {
	if len(sessionIDs) == 0 {
		return []model.KYCStatusEvent{}, nil
	}

	var events []model.KYCStatusEvent
	if err := r.db.WithContext(ctx).Where("kyc_session_id IN ?", sessionIDs).Order("id ASC").Find(&events).Error; err != nil {
		logger.Error("Failed to list kyc status events", err, map[string]interface{}{"session_count": len(sessionIDs)})
		return nil, err
	}
	return events, nil
}

// logFindError keeps not-found lookups out of the error log; callers decide
// whether a missing row is a failure.
func logFindError(msg string, err error, fields map[string]interface{}) {
	if apperrors.IsNotFound(err) {
		logger.Debug(msg, fields)
		return
	}
	logger.Error(msg, err, fields)
}
