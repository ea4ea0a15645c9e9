package service

import (
	"strings"
	"time"

	"github.com/ikkim/gigmarket-backend/config"
)

// KYCPolicy is the immutable document intake policy handed to the service at
// construction.
type KYCPolicy struct {
	allowedContentTypes       map[string]struct{}
	allowedDocumentTypes      map[string]struct{} // empty: any well-formed type
	MaxUploadBytes            int64
	MinDocuments              int
	AutoSubmitOnFirstDocument bool
	PresignExpiry             time.Duration
}

// NewKYCPolicy normalizes cfg into a policy. Content types compare
// lowercased, document types uppercased.
func NewKYCPolicy(cfg config.KYCConfig) KYCPolicy {
	p := KYCPolicy{
		allowedContentTypes:       make(map[string]struct{}, len(cfg.AllowedContentTypes)),
		allowedDocumentTypes:      make(map[string]struct{}, len(cfg.AllowedDocumentTypes)),
		MaxUploadBytes:            cfg.MaxUploadBytes,
		MinDocuments:              cfg.MinDocuments,
		AutoSubmitOnFirstDocument: cfg.AutoSubmitOnFirstDocument,
		PresignExpiry:             cfg.PresignExpiry,
	}
	for _, ct := range cfg.AllowedContentTypes {
		p.allowedContentTypes[normalizeContentType(ct)] = struct{}{}
	}
	for _, dt := range cfg.AllowedDocumentTypes {
		p.allowedDocumentTypes[normalizeDocumentType(dt)] = struct{}{}
	}
	if p.MaxUploadBytes <= 0 {
		p.MaxUploadBytes = 10 * 1024 * 1024
	}
	if p.MinDocuments < 0 {
		p.MinDocuments = 0
	}
	return p
}

// DefaultKYCPolicy is the policy used when nothing is configured.
func DefaultKYCPolicy() KYCPolicy {
	return NewKYCPolicy(config.KYCConfig{
		AllowedContentTypes:       []string{"image/jpeg", "image/png", "application/pdf"},
		MaxUploadBytes:            10 * 1024 * 1024,
		MinDocuments:              1,
		AutoSubmitOnFirstDocument: true,
		PresignExpiry:             15 * time.Minute,
	})
}

func (p KYCPolicy) AllowsContentType(contentType string) bool {
	_, ok := p.allowedContentTypes[contentType]
	return ok
}

func (p KYCPolicy) AllowsDocumentType(documentType string) bool {
	if len(p.allowedDocumentTypes) == 0 {
		return true
	}
	_, ok := p.allowedDocumentTypes[documentType]
	return ok
}

func normalizeContentType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(contentType))
}

func normalizeDocumentType(documentType string) string {
	return strings.ToUpper(strings.TrimSpace(documentType))
}
