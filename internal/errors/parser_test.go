package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestParseError_UniqueViolations(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "Postgres checksum index",
			err:      &pgconn.PgError{Code: "23505", ConstraintName: DocumentChecksumIndex},
			wantCode: DuplicateDocument,
		},
		{
			name:     "SQLite checksum columns",
			err:      stderrors.New("UNIQUE constraint failed: identity_documents.kyc_session_id, identity_documents.checksum_sha256"),
			wantCode: DuplicateDocument,
		},
		{
			name:     "Wrapped postgres receipt key",
			err:      fmt.Errorf("insert receipt: %w", &pgconn.PgError{Code: "23505", ConstraintName: WebhookReceiptKeyIndex}),
			wantCode: IdempotencyKeyReused,
		},
		{
			name:     "Unknown unique index",
			err:      gorm.ErrDuplicatedKey,
			wantCode: ResourceConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsUniqueViolation(tt.err))
			appErr := ParseError(tt.err)
			assert.Equal(t, KindConflict, appErr.Kind)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestParseError_Other(t *testing.T) {
	assert.Nil(t, ParseError(nil))

	notFound := ParseError(fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound))
	assert.Equal(t, KindNotFound, notFound.Kind)

	other := &pgconn.PgError{Code: "23503"}
	assert.False(t, IsUniqueViolation(other))
	assert.Equal(t, KindInternal, ParseError(other).Kind)

	locked := New(KindLocked, KYCSessionLocked, "locked")
	assert.Same(t, locked, ParseError(fmt.Errorf("wrapped: %w", locked)))
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	sentinel := New(KindConflict, DuplicateDocument, "duplicate")
	wrapped := Wrap(KindConflict, DuplicateDocument, "duplicate", stderrors.New("driver detail"))

	assert.ErrorIs(t, wrapped, sentinel)
	assert.True(t, HasCode(fmt.Errorf("outer: %w", wrapped), DuplicateDocument))
	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindInvalidInput))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(KindUnauthorized))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindConflict))
	assert.Equal(t, http.StatusLocked, HTTPStatus(KindLocked))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(KindIncomplete))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInternal))
}
