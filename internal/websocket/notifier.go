package websocket

import (
	"time"

	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
)

const KYCStatusMessageType = "kyc_status"

// KYCStatusMessage is pushed to the session owner after a committed transition.
type KYCStatusMessage struct {
	Type      string                    `json:"type"`
	SessionID string                    `json:"sessionId"`
	Status    service.ExternalKYCStatus `json:"status"`
	RawStatus model.KYCStatus           `json:"rawStatus"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// KYCNotifier adapts the hub to service.StatusNotifier.
type KYCNotifier struct {
	hub *Hub
}

func NewKYCNotifier(hub *Hub) *KYCNotifier {
	return &KYCNotifier{hub: hub}
}

func (n *KYCNotifier) NotifyKYCStatus(userID string, session *model.KYCSession) {
	msg := KYCStatusMessage{
		Type:      KYCStatusMessageType,
		SessionID: session.ID,
		Status:    service.ToExternalStatus(session.Status),
		RawStatus: session.Status,
		UpdatedAt: session.UpdatedAt,
	}
	if err := n.hub.SendToUser(userID, msg); err != nil {
		logger.Warn("Failed to push kyc status", map[string]interface{}{
			"user_id":    userID,
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}
}
