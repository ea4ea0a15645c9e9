package errors

import (
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// Unique index names that carry domain meaning.
const (
	DocumentChecksumIndex   = "idx_identity_documents_session_checksum"
	WebhookReceiptKeyIndex  = "idx_kyc_webhook_receipts_idempotency_key"
	webhookReceiptKeyColumn = "kyc_webhook_receipts.idempotency_key"
	documentChecksumColumn  = "identity_documents.checksum_sha256"
)

// IsNotFound reports whether err is a missing-row error from the store.
func IsNotFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// whichever driver produced it.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint")
}

// violatedConstraint returns the constraint (postgres) or column list (sqlite)
// named by a unique violation.
func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return strings.ToLower(err.Error())
}

// ParseError translates a storage error into an AppError. Unique violations on
// the document checksum index become duplicate_document, matching what the
// application-level existence check returns.
func ParseError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}

	if IsNotFound(err) {
		return Wrap(KindNotFound, ResourceNotFound, "requested resource was not found", err)
	}

	if IsUniqueViolation(err) {
		constraint := violatedConstraint(err)
		switch {
		case strings.Contains(constraint, DocumentChecksumIndex), strings.Contains(constraint, documentChecksumColumn):
			return Wrap(KindConflict, DuplicateDocument, "a document with this checksum already exists in the session", err)
		case strings.Contains(constraint, WebhookReceiptKeyIndex), strings.Contains(constraint, webhookReceiptKeyColumn):
			return Wrap(KindConflict, IdempotencyKeyReused, "idempotency key has already been used", err)
		default:
			return Wrap(KindConflict, ResourceConflict, "resource already exists", err)
		}
	}

	return Wrap(KindInternal, InternalDatabaseError, "internal server error", err)
}
