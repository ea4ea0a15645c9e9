package model

import "time"

// WebhookReceipt records the outcome of one provider callback, keyed by the
// provider-supplied idempotency key.
type WebhookReceipt struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	IdempotencyKey string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"idempotencyKey"`
	Provider       string    `gorm:"type:varchar(64);not null" json:"provider"`
	PayloadSHA256  string    `gorm:"type:char(64);not null" json:"payloadSha256"`
	KYCSessionID   string    `gorm:"type:varchar(36);index" json:"kycSessionId"`
	Accepted       bool      `gorm:"not null;default:false" json:"accepted"`
	ResultStatus   string    `gorm:"type:varchar(20)" json:"resultStatus,omitempty"`
	ErrorCode      string    `gorm:"type:varchar(64)" json:"errorCode,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}

func (WebhookReceipt) TableName() string {
	return "kyc_webhook_receipts"
}
