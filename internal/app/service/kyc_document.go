package service

import (
	"context"
	"strings"
	"time"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	apperrors "github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/internal/storage"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxMetadataEntries = 50
	autoSubmitReason   = "document_uploaded"
)

type UploadURLInput struct {
	UserID         string
	SessionID      string
	DocumentType   string `validate:"required,doctype" errcode:"invalid_document_type"`
	FileName       string `validate:"required,max=255,filename" errcode:"invalid_file_name"`
	ContentType    string `validate:"required" errcode:"invalid_content_type"`
	ContentLength  int64  `validate:"gt=0" errcode:"invalid_content_length"`
	ChecksumSHA256 string `validate:"required,sha256hex" errcode:"invalid_checksum"`
}

// UploadCredentials tell the client how to PUT the blob directly to storage.
type UploadCredentials struct {
	ObjectKey string            `json:"objectKey"`
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type UploadURLResult struct {
	Status  ExternalKYCStatus `json:"status"`
	Session *model.KYCSession `json:"session"`
	Upload  UploadCredentials `json:"upload"`
}

type UploadDocumentInput struct {
	UserID         string
	SessionID      string
	DocumentType   string                 `validate:"required,doctype" errcode:"invalid_document_type"`
	ObjectKey      string                 `validate:"required,max=512,objectkey" errcode:"invalid_object_key"`
	ChecksumSHA256 string                 `validate:"required,sha256hex" errcode:"invalid_checksum"`
	Metadata       map[string]interface{} `validate:"max=50" errcode:"invalid_metadata"`
}

type UploadDocumentResult struct {
	Status   ExternalKYCStatus       `json:"status"`
	Session  *model.KYCSession       `json:"session"`
	Document *model.IdentityDocument `json:"document"`
}

// CreateUploadURL validates the declared file and issues upload credentials
// scoped to kyc/{user}/{session}/. A user without any session gets one
// started first.
func (s *kycService) CreateUploadURL(ctx context.Context, input UploadURLInput) (*UploadURLResult, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, ErrUnauthenticated
	}

	input.DocumentType = normalizeDocumentType(input.DocumentType)
	input.ContentType = normalizeContentType(input.ContentType)
	input.ChecksumSHA256 = strings.ToLower(strings.TrimSpace(input.ChecksumSHA256))
	input.FileName = strings.TrimSpace(input.FileName)

	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if !s.policy.AllowsDocumentType(input.DocumentType) {
		return nil, apperrors.InvalidInput(apperrors.InvalidDocumentType, "document type is not accepted")
	}
	if !s.policy.AllowsContentType(input.ContentType) {
		return nil, apperrors.InvalidInput(apperrors.InvalidContentType, "content type is not accepted")
	}
	if input.ContentLength > s.policy.MaxUploadBytes {
		return nil, apperrors.InvalidInput(apperrors.InvalidContentLength, "file exceeds the maximum upload size")
	}

	session, pending, err := s.sessionForUpload(ctx, input.UserID, input.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, ErrKYCSessionLocked
	}

	key := s.storage.BuildObjectKey(input.UserID, session.ID, input.DocumentType, input.FileName)
	presigned, err := s.storage.CreateUploadURL(ctx, storage.UploadRequest{
		Key:            key,
		ContentType:    input.ContentType,
		ContentLength:  input.ContentLength,
		ChecksumSHA256: input.ChecksumSHA256,
		Expires:        s.policy.PresignExpiry,
	})
	if err != nil {
		logger.Error("Failed to create kyc upload URL", err, map[string]interface{}{
			"user_id":    input.UserID,
			"session_id": session.ID,
		})
		return nil, apperrors.Wrap(apperrors.KindInternal, apperrors.StorageUploadURLFailed, "failed to create upload URL", err)
	}
	if pending {
		if err := s.commitSession(ctx, session); err != nil {
			return nil, err
		}
	}

	s.metrics.IncUploadURLIssued()
	logger.Info("KYC upload URL issued", map[string]interface{}{
		"user_id":       input.UserID,
		"session_id":    session.ID,
		"document_type": input.DocumentType,
		"object_key":    key,
	})

	return &UploadURLResult{
		Status:  ToExternalStatus(session.Status),
		Session: session,
		Upload: UploadCredentials{
			ObjectKey: key,
			UploadURL: presigned.URL,
			Method:    presigned.Method,
			Headers:   presigned.Headers,
			ExpiresAt: presigned.ExpiresAt,
		},
	}, nil
}

// sessionForUpload resolves the target session. A user without any session
// and no id given gets an unsaved one; pending reports that the caller must
// commit it once the upload credentials are issued.
func (s *kycService) sessionForUpload(ctx context.Context, userID, sessionID string) (session *model.KYCSession, pending bool, err error) {
	session, err = s.resolveOwnedSession(ctx, userID, sessionID)
	if err == nil || strings.TrimSpace(sessionID) != "" || !apperrors.HasCode(err, apperrors.KYCSessionNotFound) {
		return session, false, err
	}
	return newSession(userID, model.DefaultKYCProvider), true, nil
}

// UploadDocument registers a blob the client has uploaded. The key must sit
// under the caller's session prefix and the checksum must be new to the
// session; both the existence check and the unique index report
// duplicate_document.
func (s *kycService) UploadDocument(ctx context.Context, input UploadDocumentInput) (*UploadDocumentResult, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, ErrUnauthenticated
	}

	input.DocumentType = normalizeDocumentType(input.DocumentType)
	input.ChecksumSHA256 = strings.ToLower(strings.TrimSpace(input.ChecksumSHA256))
	input.ObjectKey = strings.TrimSpace(input.ObjectKey)

	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if !s.policy.AllowsDocumentType(input.DocumentType) {
		return nil, apperrors.InvalidInput(apperrors.InvalidDocumentType, "document type is not accepted")
	}

	target, err := s.resolveOwnedSession(ctx, input.UserID, input.SessionID)
	if err != nil {
		return nil, err
	}
	if !storage.OwnsObjectKey(input.ObjectKey, input.UserID, target.ID) {
		return nil, apperrors.InvalidInput(apperrors.InvalidObjectKey, "object key does not belong to this session")
	}

	metadata := datatypes.JSONMap{}
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata[model.MetadataObjectKey] = input.ObjectKey

	doc := &model.IdentityDocument{
		KYCSessionID:   target.ID,
		DocumentType:   input.DocumentType,
		FileURL:        s.storage.ToFileURL(input.ObjectKey),
		ChecksumSHA256: input.ChecksumSHA256,
		MetadataJSON:   metadata,
	}

	var (
		session  *model.KYCSession
		advanced bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		session, advanced, txErr = s.registerDocumentTx(ctx, s.kycRepo.WithTx(tx), target.ID, input.UserID, doc)
		return txErr
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.DuplicateDocument) {
			logger.Warn("Duplicate kyc document rejected", map[string]interface{}{
				"user_id":    input.UserID,
				"session_id": target.ID,
			})
			return nil, ErrDuplicateDocument
		}
		logger.Warn("KYC document registration failed", map[string]interface{}{
			"user_id":    input.UserID,
			"session_id": target.ID,
			"error":      err.Error(),
		})
		return nil, apperrors.ParseError(err)
	}

	s.metrics.IncDocumentStored()
	if advanced {
		s.metrics.IncTransition(string(model.KYCStatusSubmitted), string(model.ActorUser))
		s.notify(session)
	}

	logger.Info("KYC document registered", map[string]interface{}{
		"user_id":       input.UserID,
		"session_id":    session.ID,
		"document_id":   doc.ID,
		"document_type": doc.DocumentType,
		"advanced":      advanced,
	})
	return &UploadDocumentResult{
		Status:   ToExternalStatus(session.Status),
		Session:  session,
		Document: doc,
	}, nil
}

func (s *kycService) registerDocumentTx(
	ctx context.Context,
	repo repository.KYCRepository,
	sessionID, userID string,
	doc *model.IdentityDocument,
) (*model.KYCSession, bool, error) {
	session, err := s.lockSession(ctx, repo, sessionID)
	if err != nil {
		return nil, false, err
	}
	if session.Status.IsTerminal() {
		return nil, false, ErrKYCSessionLocked
	}

	exists, err := repo.DocumentChecksumExists(ctx, session.ID, doc.ChecksumSHA256)
	if err != nil {
		return nil, false, err
	}
	if exists {
		s.metrics.IncDuplicate("check")
		return nil, false, ErrDuplicateDocument
	}

	if err := repo.CreateDocument(ctx, doc); err != nil {
		if apperrors.IsUniqueViolation(err) {
			s.metrics.IncDuplicate("constraint")
			return nil, false, ErrDuplicateDocument
		}
		return nil, false, err
	}

	if session.Status != model.KYCStatusCreated || !s.policy.AutoSubmitOnFirstDocument {
		return session, false, nil
	}

	count, err := repo.CountDocuments(ctx, session.ID)
	if err != nil {
		return nil, false, err
	}
	if count < int64(s.policy.MinDocuments) {
		return session, false, nil
	}

	reason := autoSubmitReason
	if err := s.transitionLocked(ctx, repo, session, model.KYCStatusSubmitted, model.ActorUser, userID, &reason); err != nil {
		return nil, false, err
	}
	return session, true, nil
}
