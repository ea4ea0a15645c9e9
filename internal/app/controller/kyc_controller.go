package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/ikkim/gigmarket-backend/internal/errors"
	"github.com/ikkim/gigmarket-backend/internal/middleware"
	ws "github.com/ikkim/gigmarket-backend/internal/websocket"
)

type KYCController struct {
	kycService service.KYCService
	hub        *ws.Hub
	upgrader   websocket.Upgrader
}

// NewKYCController wires the user-facing KYC endpoints. hub may be nil, in
// which case the status socket is unavailable.
func NewKYCController(kycService service.KYCService, hub *ws.Hub, allowedOrigins []string) *KYCController {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}
	return &KYCController{
		kycService: kycService,
		hub:        hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
	}
}

type StartSessionRequest struct {
	Provider string `json:"provider"`
}

type CreateUploadURLRequest struct {
	SessionID      string `json:"sessionId"`
	DocumentType   string `json:"documentType"`
	FileName       string `json:"fileName"`
	ContentType    string `json:"contentType"`
	ContentLength  int64  `json:"contentLength"`
	ChecksumSHA256 string `json:"checksumSha256"`
}

type UploadDocumentRequest struct {
	SessionID      string                 `json:"sessionId"`
	DocumentType   string                 `json:"documentType"`
	ObjectKey      string                 `json:"objectKey"`
	ChecksumSHA256 string                 `json:"checksumSha256"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// currentUser aborts with 401 when the request carries no user.
func currentUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return "", false
	}
	return userID, true
}

// bindOptionalJSON binds the body when one is present.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "request body is not valid JSON")
		return false
	}
	return true
}

// StartSession opens a new verification session.
// POST /api/v1/kyc/sessions
func (ctrl *KYCController) StartSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req StartSessionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := ctrl.kycService.StartSession(c.Request.Context(), userID, req.Provider)
	if err != nil {
		errors.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetStatus GET /api/v1/kyc/status
func (ctrl *KYCController) GetStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := ctrl.kycService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		errors.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateUploadURL POST /api/v1/kyc/upload-url
func (ctrl *KYCController) CreateUploadURL(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateUploadURLRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := ctrl.kycService.CreateUploadURL(c.Request.Context(), service.UploadURLInput{
		UserID:         userID,
		SessionID:      req.SessionID,
		DocumentType:   req.DocumentType,
		FileName:       req.FileName,
		ContentType:    req.ContentType,
		ContentLength:  req.ContentLength,
		ChecksumSHA256: req.ChecksumSHA256,
	})
	if err != nil {
		errors.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UploadDocument registers a blob already PUT to storage.
// POST /api/v1/kyc/documents
func (ctrl *KYCController) UploadDocument(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req UploadDocumentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := ctrl.kycService.UploadDocument(c.Request.Context(), service.UploadDocumentInput{
		UserID:         userID,
		SessionID:      req.SessionID,
		DocumentType:   req.DocumentType,
		ObjectKey:      req.ObjectKey,
		ChecksumSHA256: req.ChecksumSHA256,
		Metadata:       req.Metadata,
	})
	if err != nil {
		errors.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// SubmitSession POST /api/v1/kyc/sessions/:id/submit
func (ctrl *KYCController) SubmitSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := ctrl.kycService.SubmitSession(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		errors.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetHistory GET /api/v1/kyc/history?session_id=
func (ctrl *KYCController) GetHistory(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := ctrl.kycService.GetHistory(c.Request.Context(), userID, c.Query("session_id"))
	if err != nil {
		errors.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StatusSocket upgrades to a websocket that receives kyc_status pushes.
// GET /api/v1/kyc/ws?token=
func (ctrl *KYCController) StatusSocket(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if ctrl.hub == nil {
		errors.RespondWithError(c, http.StatusServiceUnavailable, errors.InternalServerError, "status push is disabled")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, userID)
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established", map[string]interface{}{
		"user_id": userID,
	})
}
