package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MetadataObjectKey is the metadata entry every document carries.
const MetadataObjectKey = "objectKey"

// IdentityDocument 업로드된 신분증 파일
// Immutable after creation except VerifiedAt.
type IdentityDocument struct {
	ID             string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	KYCSessionID   string            `gorm:"type:varchar(36);not null;uniqueIndex:idx_identity_documents_session_checksum,priority:1" json:"kycSessionId"`
	DocumentType   string            `gorm:"type:varchar(64);not null" json:"documentType"`
	FileURL        string            `gorm:"type:text;not null" json:"fileUrl"`
	ChecksumSHA256 string            `gorm:"type:char(64);not null;uniqueIndex:idx_identity_documents_session_checksum,priority:2" json:"checksumSha256"`
	MetadataJSON   datatypes.JSONMap `json:"metadataJson"`
	VerifiedAt     *time.Time        `json:"verifiedAt"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func (IdentityDocument) TableName() string {
	return "identity_documents"
}

func (d *IdentityDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// ObjectKey returns the storage key recorded in the metadata, if any.
func (d *IdentityDocument) ObjectKey() (string, bool) {
	if d.MetadataJSON == nil {
		return "", false
	}
	key, ok := d.MetadataJSON[MetadataObjectKey].(string)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
