package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KYCStatus is the raw lifecycle state of a verification session.
type KYCStatus string

const (
	KYCStatusCreated      KYCStatus = "CREATED"       // session opened, no documents yet
	KYCStatusSubmitted    KYCStatus = "SUBMITTED"     // documents present, waiting for a decision
	KYCStatusManualReview KYCStatus = "MANUAL_REVIEW" // escalated to a human reviewer
	KYCStatusVerified     KYCStatus = "VERIFIED"      // terminal
	KYCStatusRejected     KYCStatus = "REJECTED"      // terminal
)

// AllKYCStatuses lists every raw status in lifecycle order.
var AllKYCStatuses = []KYCStatus{
	KYCStatusCreated,
	KYCStatusSubmitted,
	KYCStatusManualReview,
	KYCStatusVerified,
	KYCStatusRejected,
}

// DefaultKYCProvider is used when a session is started without a provider label.
const DefaultKYCProvider = "manual"

// IsTerminal reports whether no further document writes or decisions are accepted.
func (s KYCStatus) IsTerminal() bool {
	return s == KYCStatusVerified || s == KYCStatusRejected
}

// IsValid reports whether s is one of the known raw statuses.
func (s KYCStatus) IsValid() bool {
	for _, known := range AllKYCStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// KYCSession 본인인증 세션 (one verification attempt)
type KYCSession struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string     `gorm:"type:varchar(64);not null;index:idx_kyc_sessions_user_created,priority:1" json:"userId"`
	Status      KYCStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	Provider    string     `gorm:"type:varchar(64);not null;default:'manual'" json:"provider"`
	SubmittedAt *time.Time `json:"submittedAt"`
	ReviewedBy  *string    `gorm:"type:varchar(128)" json:"reviewedBy"`
	ReviewedAt  *time.Time `json:"reviewedAt"`
	CreatedAt   time.Time  `gorm:"index:idx_kyc_sessions_user_created,priority:2" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Documents []IdentityDocument `gorm:"foreignKey:KYCSessionID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"documents,omitempty"`
	Events    []KYCStatusEvent   `gorm:"foreignKey:KYCSessionID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

func (KYCSession) TableName() string {
	return "kyc_sessions"
}

func (s *KYCSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
