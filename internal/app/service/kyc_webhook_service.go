package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	apperrors "github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/internal/metrics"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"github.com/ikkim/gigmarket-backend/pkg/redis"
	"github.com/ikkim/gigmarket-backend/pkg/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	maxIdempotencyKeyLength = 255
	maxSessionIDLength      = 36
)

var (
	ErrWebhookSecret    = apperrors.New(apperrors.KindUnauthorized, apperrors.AuthUnauthorized, "webhook secret is missing or invalid")
	ErrWebhookSignature = apperrors.New(apperrors.KindUnauthorized, apperrors.AuthUnauthorized, "webhook signature is missing or invalid")
	ErrWebhookStale     = apperrors.New(apperrors.KindUnauthorized, apperrors.WebhookTimestampStale, "webhook timestamp is outside the accepted window")
	ErrMissingIdemKey   = apperrors.InvalidInput(apperrors.MissingIdempotencyKey, "idempotency key is required")
	ErrWebhookPayload   = apperrors.InvalidInput(apperrors.InvalidWebhookPayload, "webhook payload is invalid")
	ErrIdemKeyReused    = apperrors.New(apperrors.KindConflict, apperrors.IdempotencyKeyReused, "idempotency key was already used with a different payload")
	ErrWebhookInFlight  = apperrors.New(apperrors.KindConflict, apperrors.WebhookInProgress, "webhook delivery is already being processed")

	errReceiptRace = errors.New("webhook receipt written concurrently")
)

// KeyLocker serializes deliveries that share an idempotency key across
// instances. Satisfied by *redis.KeyLocker.
type KeyLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// WebhookDelivery is one provider callback as received on the wire.
type WebhookDelivery struct {
	Secret         string
	IdempotencyKey string
	Signature      string
	Timestamp      string // unix milliseconds
	Payload        []byte
}

type WebhookResult struct {
	Accepted  bool   `json:"accepted"`
	Replayed  bool   `json:"replayed"`
	Status    string `json:"status,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type WebhookSettings struct {
	Secret       string
	MaxClockSkew time.Duration
}

type webhookPayload struct {
	SessionID   string `json:"sessionId"`
	Decision    string `json:"decision"`
	Reason      string `json:"reason"`
	Provider    string `json:"provider"`
	ProviderRef string `json:"providerRef"`
}

type KYCWebhookService interface {
	Ingest(ctx context.Context, delivery WebhookDelivery) (*WebhookResult, error)
}

type kycWebhookService struct {
	kyc         *kycService
	receiptRepo repository.WebhookReceiptRepository
	settings    WebhookSettings
	locker      KeyLocker
}

// NewKYCWebhookService builds the provider callback handler. It shares the
// transition logic of the KYC service. locker may be nil.
func NewKYCWebhookService(
	db *gorm.DB,
	kycRepo repository.KYCRepository,
	receiptRepo repository.WebhookReceiptRepository,
	policy KYCPolicy,
	settings WebhookSettings,
	locker KeyLocker,
	notifier StatusNotifier,
	m *metrics.Metrics,
) KYCWebhookService {
	if settings.MaxClockSkew <= 0 {
		settings.MaxClockSkew = 5 * time.Minute
	}
	return &kycWebhookService{
		kyc:         newKYCService(db, kycRepo, nil, policy, notifier, m),
		receiptRepo: receiptRepo,
		settings:    settings,
		locker:      locker,
	}
}

// Ingest authenticates a delivery and applies it at most once per
// idempotency key. Business rejections (unknown session, locked session,
// illegal transition) are recorded and answered with accepted=false so
// provider retries get the same answer.
func (s *kycWebhookService) Ingest(ctx context.Context, d WebhookDelivery) (*WebhookResult, error) {
	start := time.Now()
	defer s.kyc.metrics.ObserveWebhook(start)

	ctx, span := tracer.Start(ctx, "kyc.IngestProviderWebhook", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	result, err := s.ingest(ctx, d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.kyc.metrics.IncWebhook(string(apperrors.KindOf(err)))
		logger.Warn("Provider webhook rejected", map[string]interface{}{
			"idempotency_key": d.IdempotencyKey,
			"error":           err.Error(),
		})
		return nil, err
	}

	outcome := "accepted"
	switch {
	case result.Replayed:
		outcome = "replayed"
	case !result.Accepted:
		outcome = "declined"
	}
	s.kyc.metrics.IncWebhook(outcome)
	span.SetAttributes(attribute.String("kyc.webhook.outcome", outcome))
	return result, nil
}

func (s *kycWebhookService) ingest(ctx context.Context, d WebhookDelivery) (*WebhookResult, error) {
	if !util.SecretsEqual(s.settings.Secret, d.Secret) {
		return nil, ErrWebhookSecret
	}

	key := strings.TrimSpace(d.IdempotencyKey)
	if key == "" || len(key) > maxIdempotencyKeyLength {
		return nil, ErrMissingIdemKey
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(d.Timestamp), 10, 64)
	if err != nil || strings.TrimSpace(d.Signature) == "" {
		return nil, ErrWebhookSignature
	}
	if !util.VerifyWebhookSignature(s.settings.Secret, ts, key, d.Payload, d.Signature) {
		return nil, ErrWebhookSignature
	}

	skew := s.kyc.now().Sub(time.UnixMilli(ts))
	if skew < 0 {
		skew = -skew
	}
	if skew > s.settings.MaxClockSkew {
		return nil, ErrWebhookStale
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, key)
		switch {
		case errors.Is(err, redis.ErrLockHeld):
			return nil, ErrWebhookInFlight
		case err != nil:
			logger.Warn("Webhook lock unavailable, continuing without it", map[string]interface{}{
				"idempotency_key": key,
				"error":           err.Error(),
			})
		default:
			defer release()
		}
	}

	payloadHash := util.SHA256Hex(d.Payload)
	if replay, err := s.replay(ctx, key, payloadHash); replay != nil || err != nil {
		return replay, err
	}

	var p webhookPayload
	if err := json.Unmarshal(d.Payload, &p); err != nil {
		return nil, ErrWebhookPayload
	}
	p.SessionID = strings.TrimSpace(p.SessionID)
	decision := model.KYCStatus(strings.ToUpper(strings.TrimSpace(p.Decision)))
	if p.SessionID == "" || len(p.SessionID) > maxSessionIDLength || (decision != model.KYCStatusSubmitted && !IsReviewDecision(decision)) {
		return nil, ErrWebhookPayload
	}
	provider, err := normalizeProvider(p.Provider)
	if err != nil {
		return nil, err
	}

	var (
		result  *WebhookResult
		session *model.KYCSession
		changed bool
	)
	err = s.kyc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		kycRepo := s.kyc.kycRepo.WithTx(tx)
		receipt := &model.WebhookReceipt{
			IdempotencyKey: key,
			Provider:       provider,
			PayloadSHA256:  payloadHash,
			KYCSessionID:   p.SessionID,
		}

		var applyErr error
		session, changed, applyErr = s.apply(ctx, kycRepo, p.SessionID, decision, provider, optionalString(p.Reason))
		switch {
		case applyErr == nil:
			receipt.Accepted = true
			receipt.ResultStatus = string(session.Status)
		case apperrors.KindOf(applyErr) != apperrors.KindInternal:
			appErr, _ := apperrors.As(applyErr)
			receipt.ErrorCode = appErr.Code
			if current, err := kycRepo.FindSessionByID(ctx, p.SessionID); err == nil {
				receipt.ResultStatus = string(current.Status)
			}
		default:
			return applyErr
		}

		if err := s.receiptRepo.WithTx(tx).Create(ctx, receipt); err != nil {
			if apperrors.IsUniqueViolation(err) {
				return errReceiptRace
			}
			return err
		}
		result = &WebhookResult{
			Accepted:  receipt.Accepted,
			Status:    receipt.ResultStatus,
			ErrorCode: receipt.ErrorCode,
		}
		return nil
	})
	if errors.Is(err, errReceiptRace) {
		replay, replayErr := s.replay(ctx, key, payloadHash)
		if replayErr != nil {
			return nil, replayErr
		}
		if replay != nil {
			return replay, nil
		}
		return nil, apperrors.Internal(err)
	}
	if err != nil {
		logger.Error("Failed to apply provider webhook", err, map[string]interface{}{
			"idempotency_key": key,
			"session_id":      p.SessionID,
		})
		return nil, apperrors.ParseError(err)
	}

	if changed {
		s.kyc.metrics.IncTransition(string(session.Status), string(model.ActorSystem))
		s.kyc.notify(session)
	}

	logger.Info("Provider webhook processed", map[string]interface{}{
		"idempotency_key": key,
		"session_id":      p.SessionID,
		"provider":        provider,
		"provider_ref":    p.ProviderRef,
		"decision":        decision,
		"accepted":        result.Accepted,
		"error_code":      result.ErrorCode,
	})
	return result, nil
}

// apply routes the decision through the same transition logic users and
// reviewers use, attributed to the provider as a SYSTEM actor.
func (s *kycWebhookService) apply(
	ctx context.Context,
	repo repository.KYCRepository,
	sessionID string,
	decision model.KYCStatus,
	provider string,
	reason *string,
) (*model.KYCSession, bool, error) {
	if decision == model.KYCStatusSubmitted {
		session, err := s.kyc.lockSession(ctx, repo, sessionID)
		if err != nil {
			return nil, false, err
		}
		changed, err := s.kyc.submitLocked(ctx, repo, session, model.ActorSystem, provider, reason)
		if err != nil {
			return nil, false, err
		}
		return session, changed, nil
	}
	return s.kyc.reviewTx(ctx, repo, sessionID, decision, model.ActorSystem, provider, "provider:"+provider, reason)
}

// replay returns the recorded result for key, nil when the key is new.
func (s *kycWebhookService) replay(ctx context.Context, key, payloadHash string) (*WebhookResult, error) {
	receipt, err := s.receiptRepo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperrors.ParseError(err)
	}
	if receipt.PayloadSHA256 != payloadHash {
		return nil, ErrIdemKeyReused
	}
	return &WebhookResult{
		Accepted:  receipt.Accepted,
		Replayed:  true,
		Status:    receipt.ResultStatus,
		ErrorCode: receipt.ErrorCode,
	}, nil
}
