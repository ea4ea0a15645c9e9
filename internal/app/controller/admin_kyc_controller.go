package controller

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/internal/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminKYCController struct {
	kycService    service.KYCService
	reviewService service.KYCReviewService
}

func NewAdminKYCController(kycService service.KYCService, reviewService service.KYCReviewService) *AdminKYCController {
	return &AdminKYCController{
		kycService:    kycService,
		reviewService: reviewService,
	}
}

type ReviewSessionRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// parseQueueFilter reads ?status= and ?limit=.
func parseQueueFilter(c *gin.Context) (service.ReviewQueueFilter, bool) {
	filter := service.ReviewQueueFilter{Status: c.Query("status")}
	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			errors.BadRequest(c, errors.InvalidLimit, "limit must be an integer between 1 and 100")
			return filter, false
		}
		filter.Limit = &limit
	}
	return filter, true
}

// ListQueue GET /api/v1/admin/kyc/queue?status=&limit=
func (ctrl *AdminKYCController) ListQueue(c *gin.Context) {
	filter, ok := parseQueueFilter(c)
	if !ok {
		return
	}

	result, err := ctrl.reviewService.ListReviewQueue(c.Request.Context(), filter)
	if err != nil {
		errors.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportQueue streams the queue as an XLSX workbook.
// GET /api/v1/admin/kyc/queue/export?status=&limit=
func (ctrl *AdminKYCController) ExportQueue(c *gin.Context) {
	filter, ok := parseQueueFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := ctrl.reviewService.ExportReviewQueue(c.Request.Context(), filter, &buf); err != nil {
		errors.RespondWithAppError(c, err)
		return
	}

	fileName := fmt.Sprintf("kyc-review-queue-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ReviewSession records a staff decision. The reviewer is the caller.
// POST /api/v1/admin/kyc/sessions/:id/review
func (ctrl *AdminKYCController) ReviewSession(c *gin.Context) {
	reviewerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ReviewSessionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := ctrl.kycService.ReviewSession(c.Request.Context(), service.ReviewInput{
		SessionID:  c.Param("id"),
		Decision:   model.KYCStatus(req.Decision),
		ReviewedBy: reviewerID,
		Reason:     req.Reason,
	})
	if err != nil {
		errors.RespondWithAppError(c, err)
		return
	}

	middleware.GetLoggerFromContext(c).Info("KYC decision recorded", map[string]interface{}{
		"session_id":  result.Session.ID,
		"reviewer_id": reviewerID,
		"status":      result.Session.Status,
	})
	c.JSON(http.StatusOK, result)
}
