//go:build integration

package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	"github.com/ikkim/gigmarket-backend/internal/db"
	apperrors "github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/internal/storage"
	"github.com/ikkim/gigmarket-backend/internal/testutil/containers"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"
)

type KYCPostgresSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	repo     repository.KYCRepository
	service  *kycService
	notifier *recordingNotifier
}

func TestKYCPostgresSuite(t *testing.T) {
	suite.Run(t, new(KYCPostgresSuite))
}

func (s *KYCPostgresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.repo = repository.NewKYCRepository(s.pg.DB)
	s.notifier = &recordingNotifier{}
	s.service = newKYCService(
		s.pg.DB, s.repo,
		storage.NewLocalStorage("http://localhost:8080/dev-uploads", "kyc-dev"),
		DefaultKYCPolicy(), s.notifier, nil,
	)
}

func (s *KYCPostgresSuite) TearDownSuite() {
	s.pg.Terminate(context.Background())
}

func (s *KYCPostgresSuite) SetupTest() {
	s.Require().NoError(db.TruncateAllTables(s.pg.DB))
}

func (s *KYCPostgresSuite) upload(sessionID, checksum string) error {
	env := &kycTestEnv{db: s.pg.DB, repo: s.repo, service: s.service, notifier: s.notifier}
	_, err := env.uploadDocument("user-1", sessionID, checksum)
	return err
}

func (s *KYCPostgresSuite) TestConcurrentDuplicateUploadsStoreOneDocument() {
	ctx := context.Background()
	result, err := s.service.StartSession(ctx, "user-1", "")
	s.Require().NoError(err)
	sessionID := result.Session.ID

	const attempts = 16
	var succeeded, duplicates atomic.Int32
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			err := s.upload(sessionID, checksumA)
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperrors.HasCode(err, apperrors.DuplicateDocument):
				duplicates.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int32(1), succeeded.Load())
	s.Equal(int32(attempts-1), duplicates.Load())

	count, err := s.repo.CountDocuments(ctx, sessionID)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	events, err := s.repo.ListEvents(ctx, sessionID)
	s.Require().NoError(err)
	s.Len(events, 2)
	replayed, err := ReplayStatus(events)
	s.Require().NoError(err)
	s.Equal(model.KYCStatusSubmitted, replayed)
}

func (s *KYCPostgresSuite) TestUniqueIndexMapsToDuplicateDocument() {
	ctx := context.Background()
	result, err := s.service.StartSession(ctx, "user-1", "")
	s.Require().NoError(err)
	s.Require().NoError(s.upload(result.Session.ID, checksumB))

	blind := newKYCService(s.pg.DB, blindChecksumRepo{s.repo}, s.service.storage, DefaultKYCPolicy(), nil, nil)
	env := &kycTestEnv{db: s.pg.DB, repo: s.repo, service: blind, notifier: s.notifier}
	_, err = env.uploadDocument("user-1", result.Session.ID, checksumB)
	s.True(apperrors.HasCode(err, apperrors.DuplicateDocument), "got %v", err)
}

func (s *KYCPostgresSuite) TestConcurrentReviewsWriteOneEvent() {
	ctx := context.Background()
	result, err := s.service.StartSession(ctx, "user-1", "")
	s.Require().NoError(err)
	s.Require().NoError(s.upload(result.Session.ID, checksumC))

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := s.service.ReviewSession(ctx, ReviewInput{
				SessionID:  result.Session.ID,
				Decision:   model.KYCStatusVerified,
				ReviewedBy: "admin",
			})
			return err
		})
	}
	s.Require().NoError(g.Wait())

	events, err := s.repo.ListEvents(ctx, result.Session.ID)
	s.Require().NoError(err)
	s.Len(events, 3)
}
