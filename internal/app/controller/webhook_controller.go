package controller

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/internal/middleware"
)

// Provider webhook headers.
const (
	HeaderWebhookSecret    = "X-Webhook-Secret"
	HeaderIdempotencyKey   = "Idempotency-Key"
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"

	maxWebhookBodyBytes = 64 * 1024
)

type WebhookController struct {
	webhookService service.KYCWebhookService
}

func NewWebhookController(webhookService service.KYCWebhookService) *WebhookController {
	return &WebhookController{webhookService: webhookService}
}

// IngestKYC handles provider decisions. The signature covers the raw body,
// so it is read before any decoding.
// POST /api/v1/webhooks/kyc
func (ctrl *WebhookController) IngestKYC(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
	if err != nil {
		log.Warn("Failed to read webhook body", map[string]interface{}{
			"error": err.Error(),
		})
		errors.BadRequest(c, errors.InvalidWebhookPayload, "webhook body could not be read")
		return
	}
	if len(body) > maxWebhookBodyBytes {
		errors.BadRequest(c, errors.InvalidWebhookPayload, "webhook body is too large")
		return
	}

	result, err := ctrl.webhookService.Ingest(c.Request.Context(), service.WebhookDelivery{
		Secret:         c.GetHeader(HeaderWebhookSecret),
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
		Signature:      c.GetHeader(HeaderWebhookSignature),
		Timestamp:      c.GetHeader(HeaderWebhookTimestamp),
		Payload:        body,
	})
	if err != nil {
		errors.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
