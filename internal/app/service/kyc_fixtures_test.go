package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	"github.com/ikkim/gigmarket-backend/internal/db"
	"github.com/ikkim/gigmarket-backend/internal/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	checksumA = strings.Repeat("a", 64)
	checksumB = strings.Repeat("b", 64)
	checksumC = strings.Repeat("c", 64)
)

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []model.KYCStatus
}

func (n *recordingNotifier) NotifyKYCStatus(_ string, session *model.KYCSession) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, session.Status)
}

func (n *recordingNotifier) received() []model.KYCStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.KYCStatus(nil), n.statuses...)
}

type kycTestEnv struct {
	db       *gorm.DB
	repo     repository.KYCRepository
	service  *kycService
	notifier *recordingNotifier
}

func setupKYCServiceTest(t *testing.T) *kycTestEnv {
	return setupKYCServiceTestWithPolicy(t, DefaultKYCPolicy())
}

func setupKYCServiceTestWithPolicy(t *testing.T, policy KYCPolicy) *kycTestEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	repo := repository.NewKYCRepository(testDB)
	notifier := &recordingNotifier{}
	objectStorage := storage.NewLocalStorage("http://localhost:8080/dev-uploads", "kyc-dev")

	return &kycTestEnv{
		db:       testDB,
		repo:     repo,
		service:  newKYCService(testDB, repo, objectStorage, policy, notifier, nil),
		notifier: notifier,
	}
}

func (e *kycTestEnv) startSession(t *testing.T, userID string) *model.KYCSession {
	result, err := e.service.StartSession(context.Background(), userID, "")
	require.NoError(t, err)
	return result.Session
}

func (e *kycTestEnv) objectKey(userID, sessionID string) string {
	return storage.BuildObjectKey(userID, sessionID, "PASSPORT", "scan.pdf", time.Now())
}

func (e *kycTestEnv) uploadDocument(userID, sessionID, checksum string) (*UploadDocumentResult, error) {
	return e.service.UploadDocument(context.Background(), UploadDocumentInput{
		UserID:         userID,
		SessionID:      sessionID,
		DocumentType:   "passport",
		ObjectKey:      e.objectKey(userID, sessionID),
		ChecksumSHA256: checksum,
	})
}

func (e *kycTestEnv) events(t *testing.T, sessionID string) []model.KYCStatusEvent {
	events, err := e.repo.ListEvents(context.Background(), sessionID)
	require.NoError(t, err)
	return events
}

// assertReplayMatches checks that the session's events rebuild its stored status.
func (e *kycTestEnv) assertReplayMatches(t *testing.T, sessionID string) {
	session, err := e.repo.FindSessionByID(context.Background(), sessionID)
	require.NoError(t, err)
	replayed, err := ReplayStatus(e.events(t, sessionID))
	require.NoError(t, err)
	require.Equal(t, session.Status, replayed)
}
