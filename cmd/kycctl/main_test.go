package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ikkim/gigmarket-backend/config"
	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/ikkim/gigmarket-backend/internal/db"
	"github.com/ikkim/gigmarket-backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type cliTestEnv struct {
	db  *gorm.DB
	kyc service.KYCService
	out *bytes.Buffer
	env *cliEnv
}

func setupCLITest(t *testing.T) *cliTestEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	out := &bytes.Buffer{}
	cfg := &config.Config{
		Webhook:   config.WebhookConfig{ReceiptRetention: 24 * time.Hour},
		Scheduler: config.SchedulerConfig{ReceiptPruneSpec: "0 3 * * *"},
	}
	kyc := service.NewKYCService(
		testDB,
		repository.NewKYCRepository(testDB),
		storage.NewLocalStorage("http://localhost:8080/dev-uploads", "kyc-dev"),
		service.DefaultKYCPolicy(),
		nil,
		nil,
	)

	return &cliTestEnv{
		db:  testDB,
		kyc: kyc,
		out: out,
		env: &cliEnv{cfg: cfg, db: testDB, out: out},
	}
}

func (e *cliTestEnv) run(args ...string) error {
	e.out.Reset()
	cmd := newRootCmd(e.env)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

// submitted creates a session for userID with one document, which
// auto-submits it.
func (e *cliTestEnv) submitted(t *testing.T, userID string) string {
	ctx := context.Background()
	checksum := strings.Repeat("c4", 32)
	upload, err := e.kyc.CreateUploadURL(ctx, service.UploadURLInput{
		UserID:         userID,
		DocumentType:   "PASSPORT",
		FileName:       "passport.jpg",
		ContentType:    "image/jpeg",
		ContentLength:  2048,
		ChecksumSHA256: checksum,
	})
	require.NoError(t, err)
	_, err = e.kyc.UploadDocument(ctx, service.UploadDocumentInput{
		UserID:         userID,
		SessionID:      upload.Session.ID,
		DocumentType:   "PASSPORT",
		ObjectKey:      upload.Upload.ObjectKey,
		ChecksumSHA256: checksum,
	})
	require.NoError(t, err)
	return upload.Session.ID
}

func TestQueueCommand(t *testing.T) {
	e := setupCLITest(t)
	require.NoError(t, e.db.Create(&model.User{ID: "user-1", Email: "one@example.com", Name: "One"}).Error)
	sessionID := e.submitted(t, "user-1")
	_, err := e.kyc.StartSession(context.Background(), "user-2", "")
	require.NoError(t, err)

	require.NoError(t, e.run("queue"))
	assert.Contains(t, e.out.String(), sessionID)
	assert.Contains(t, e.out.String(), "one@example.com")
	assert.Contains(t, e.out.String(), "1 session(s)")

	require.NoError(t, e.run("queue", "--status", "ALL", "--json"))
	var result service.ReviewQueueResult
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &result))
	assert.Equal(t, 2, result.Count)

	err = e.run("queue", "--limit", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestExportCommand(t *testing.T) {
	e := setupCLITest(t)
	sessionID := e.submitted(t, "user-1")
	path := filepath.Join(t.TempDir(), "queue.xlsx")

	require.NoError(t, e.run("export", "--out", path))
	assert.Contains(t, e.out.String(), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, sessionID, rows[1][0])

	badPath := filepath.Join(t.TempDir(), "bad.xlsx")
	require.Error(t, e.run("export", "--status", "PENDING", "--out", badPath))
	_, statErr := os.Stat(badPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPruneWebhooksCommand(t *testing.T) {
	e := setupCLITest(t)
	now := time.Now()
	receipts := []model.WebhookReceipt{
		{IdempotencyKey: "evt-1", Provider: "veriff", PayloadSHA256: "a", CreatedAt: now.Add(-48 * time.Hour)},
		{IdempotencyKey: "evt-2", Provider: "veriff", PayloadSHA256: "b", CreatedAt: now.Add(-2 * time.Hour)},
	}
	require.NoError(t, e.db.Create(&receipts).Error)

	require.NoError(t, e.run("prune-webhooks"))
	assert.Contains(t, e.out.String(), "Deleted 1 webhook receipt(s)")

	require.NoError(t, e.run("prune-webhooks", "--retention", "1h"))
	assert.Contains(t, e.out.String(), "Deleted 1 webhook receipt(s)")

	require.Error(t, e.run("prune-webhooks", "--retention", "0s"))
}

func TestAuditCommand(t *testing.T) {
	e := setupCLITest(t)
	first := e.submitted(t, "user-1")
	e.submitted(t, "user-2")
	_, err := e.kyc.StartSession(context.Background(), "user-3", "")
	require.NoError(t, err)

	require.NoError(t, e.run("audit", "--page-size", "2"))
	assert.Contains(t, e.out.String(), "Checked 3 session(s), 0 inconsistent")

	require.NoError(t, e.db.Model(&model.KYCSession{}).Where("id = ?", first).Update("status", model.KYCStatusVerified).Error)

	err = e.run("audit", "--page-size", "2")
	require.Error(t, err)
	assert.Contains(t, e.out.String(), first+" stored=VERIFIED replayed=SUBMITTED")
	assert.Contains(t, e.out.String(), "Checked 3 session(s), 1 inconsistent")
}

func TestAuditSessions_BrokenChain(t *testing.T) {
	e := setupCLITest(t)
	result, err := e.kyc.StartSession(context.Background(), "user-1", "")
	require.NoError(t, err)

	require.NoError(t, e.db.Where("kyc_session_id = ?", result.Session.ID).Delete(&model.KYCStatusEvent{}).Error)

	report, err := auditSessions(context.Background(), repository.NewKYCRepository(e.db), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "-", report.Findings[0].Replayed)
}
