package model

import "time"

// ActorType identifies who caused a status transition.
type ActorType string

const (
	ActorUser   ActorType = "USER"
	ActorAdmin  ActorType = "ADMIN"
	ActorSystem ActorType = "SYSTEM"
)

// KYCStatusEvent 상태 변경 감사 로그 (append-only)
// The auto-increment ID gives the replay order.
type KYCStatusEvent struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	KYCSessionID string     `gorm:"type:varchar(36);not null;index" json:"kycSessionId"`
	FromStatus   *KYCStatus `gorm:"type:varchar(20)" json:"fromStatus"`
	ToStatus     KYCStatus  `gorm:"type:varchar(20);not null" json:"toStatus"`
	ActorType    ActorType  `gorm:"type:varchar(10);not null" json:"actorType"`
	ActorID      string     `gorm:"type:varchar(128);not null" json:"actorId"`
	Reason       *string    `gorm:"type:text" json:"reason"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (KYCStatusEvent) TableName() string {
	return "kyc_status_events"
}
