package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/db"
	apperrors "github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupKYCTest(t *testing.T) (*gorm.DB, KYCRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	return testDB, NewKYCRepository(testDB)
}

func createTestSession(t *testing.T, repo KYCRepository, userID string, status model.KYCStatus, createdAt time.Time) *model.KYCSession {
	session := &model.KYCSession{
		UserID:    userID,
		Status:    status,
		Provider:  model.DefaultKYCProvider,
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.CreateSession(context.Background(), session))
	return session
}

func testDocument(sessionID, checksum, key string) *model.IdentityDocument {
	return &model.IdentityDocument{
		KYCSessionID:   sessionID,
		DocumentType:   "PASSPORT",
		FileURL:        "s3://bucket/" + key,
		ChecksumSHA256: checksum,
		MetadataJSON:   datatypes.JSONMap{model.MetadataObjectKey: key},
	}
}

func TestKYCRepository_CreateAndFindSession(t *testing.T) {
	_, repo := setupKYCTest(t)
	ctx := context.Background()

	session := createTestSession(t, repo, "user-1", model.KYCStatusCreated, time.Now())
	assert.Len(t, session.ID, 36)

	found, err := repo.FindSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", found.UserID)
	assert.Equal(t, model.KYCStatusCreated, found.Status)
	assert.Equal(t, "manual", found.Provider)

	locked, err := repo.FindSessionByIDForUpdate(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, locked.ID)

	_, err = repo.FindSessionByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestKYCRepository_FindLatestSessionByUser(t *testing.T) {
	_, repo := setupKYCTest(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	createTestSession(t, repo, "user-1", model.KYCStatusRejected, base)
	latest := createTestSession(t, repo, "user-1", model.KYCStatusCreated, base.Add(time.Minute))
	createTestSession(t, repo, "user-2", model.KYCStatusCreated, base.Add(2*time.Minute))

	found, err := repo.FindLatestSessionByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, latest.ID, found.ID)

	_, err = repo.FindLatestSessionByUser(ctx, "nobody")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestKYCRepository_UpdateSession(t *testing.T) {
	_, repo := setupKYCTest(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "user-1", model.KYCStatusSubmitted, time.Now())

	now := time.Now()
	reviewer := "admin-1"
	session.Status = model.KYCStatusVerified
	session.ReviewedBy = &reviewer
	session.ReviewedAt = &now
	require.NoError(t, repo.UpdateSession(ctx, session))

	found, err := repo.FindSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusVerified, found.Status)
	require.NotNil(t, found.ReviewedBy)
	assert.Equal(t, "admin-1", *found.ReviewedBy)
	assert.NotNil(t, found.ReviewedAt)
}

func TestKYCRepository_DocumentChecksumUniquePerSession(t *testing.T) {
	_, repo := setupKYCTest(t)
	ctx := context.Background()
	checksum := strings.Repeat("a", 64)

	s1 := createTestSession(t, repo, "user-1", model.KYCStatusCreated, time.Now())
	s2 := createTestSession(t, repo, "user-2", model.KYCStatusCreated, time.Now())

	require.NoError(t, repo.CreateDocument(ctx, testDocument(s1.ID, checksum, "kyc/user-1/"+s1.ID+"/a.pdf")))

	exists, err := repo.DocumentChecksumExists(ctx, s1.ID, checksum)
	require.NoError(t, err)
	assert.True(t, exists)

	// Same checksum in a different session is allowed.
	require.NoError(t, repo.CreateDocument(ctx, testDocument(s2.ID, checksum, "kyc/user-2/"+s2.ID+"/a.pdf")))

	err = repo.CreateDocument(ctx, testDocument(s1.ID, checksum, "kyc/user-1/"+s1.ID+"/b.pdf"))
	require.Error(t, err)
	assert.True(t, apperrors.IsUniqueViolation(err))
	assert.Equal(t, apperrors.DuplicateDocument, apperrors.ParseError(err).Code)

	count, err := repo.CountDocuments(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestKYCRepository_ListSessionsByStatus(t *testing.T) {
	_, repo := setupKYCTest(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	second := createTestSession(t, repo, "u-2", model.KYCStatusManualReview, base.Add(2*time.Minute))
	first := createTestSession(t, repo, "u-1", model.KYCStatusSubmitted, base.Add(time.Minute))
	createTestSession(t, repo, "u-3", model.KYCStatusVerified, base)

	sessions, err := repo.ListSessionsByStatus(ctx, []model.KYCStatus{model.KYCStatusSubmitted, model.KYCStatusManualReview}, 25)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID)
	assert.Equal(t, second.ID, sessions[1].ID)

	all, err := repo.ListSessionsByStatus(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, model.KYCStatusVerified, all[0].Status)
}

func TestKYCRepository_EventsInWriteOrder(t *testing.T) {
	_, repo := setupKYCTest(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "user-1", model.KYCStatusCreated, time.Now())

	created := model.KYCStatusCreated
	require.NoError(t, repo.AppendEvent(ctx, &model.KYCStatusEvent{
		KYCSessionID: session.ID, ToStatus: model.KYCStatusCreated, ActorType: model.ActorUser, ActorID: "user-1",
	}))
	require.NoError(t, repo.AppendEvent(ctx, &model.KYCStatusEvent{
		KYCSessionID: session.ID, FromStatus: &created, ToStatus: model.KYCStatusSubmitted, ActorType: model.ActorUser, ActorID: "user-1",
	}))

	events, err := repo.ListEvents(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Nil(t, events[0].FromStatus)
	assert.Equal(t, model.KYCStatusSubmitted, events[1].ToStatus)

	byIDs, err := repo.ListEventsBySessionIDs(ctx, []string{session.ID, "other"})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)

	empty, err := repo.ListEventsBySessionIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestKYCRepository_WithTxRollsBack(t *testing.T) {
	testDB, repo := setupKYCTest(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "user-1", model.KYCStatusCreated, time.Now())

	err := testDB.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		session.Status = model.KYCStatusSubmitted
		require.NoError(t, txRepo.UpdateSession(ctx, session))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	found, err := repo.FindSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusCreated, found.Status)
}

func TestWebhookReceiptRepository(t *testing.T) {
	testDB, _ := setupKYCTest(t)
	repo := NewWebhookReceiptRepository(testDB)
	ctx := context.Background()

	old := &model.WebhookReceipt{
		IdempotencyKey: "evt-old",
		Provider:       "veriff",
		PayloadSHA256:  strings.Repeat("b", 64),
		CreatedAt:      time.Now().Add(-48 * time.Hour),
	}
	fresh := &model.WebhookReceipt{
		IdempotencyKey: "evt-new",
		Provider:       "veriff",
		PayloadSHA256:  strings.Repeat("c", 64),
		Accepted:       true,
	}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	dup := &model.WebhookReceipt{IdempotencyKey: "evt-new", Provider: "veriff", PayloadSHA256: strings.Repeat("d", 64)}
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, apperrors.IdempotencyKeyReused, apperrors.ParseError(err).Code)

	found, err := repo.FindByIdempotencyKey(ctx, "evt-new")
	require.NoError(t, err)
	assert.True(t, found.Accepted)

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.FindByIdempotencyKey(ctx, "evt-old")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
