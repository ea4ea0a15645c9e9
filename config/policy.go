package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// policyFile mirrors the optional YAML document policy. Pointer fields
// distinguish "not set" from zero values.
type policyFile struct {
	AllowedContentTypes       []string `yaml:"allowed_content_types"`
	AllowedDocumentTypes      []string `yaml:"allowed_document_types"`
	MaxUploadBytes            *int64   `yaml:"max_upload_bytes"`
	MinDocuments              *int     `yaml:"min_documents"`
	AutoSubmitOnFirstDocument *bool    `yaml:"auto_submit_on_first_document"`
	PresignExpiry             string   `yaml:"presign_expiry"`
}

// ApplyPolicyFile overrides the policy fields present in the YAML file at path.
func (c *KYCConfig) ApplyPolicyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read kyc policy file: %w", err)
	}
	return c.ApplyPolicyYAML(raw)
}

// ApplyPolicyYAML is ApplyPolicyFile for an in-memory document.
func (c *KYCConfig) ApplyPolicyYAML(raw []byte) error {
	var p policyFile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to parse kyc policy: %w", err)
	}

	if len(p.AllowedContentTypes) > 0 {
		c.AllowedContentTypes = p.AllowedContentTypes
	}
	if p.AllowedDocumentTypes != nil {
		c.AllowedDocumentTypes = p.AllowedDocumentTypes
	}
	if p.MaxUploadBytes != nil {
		if *p.MaxUploadBytes <= 0 {
			return fmt.Errorf("kyc policy: max_upload_bytes must be positive")
		}
		c.MaxUploadBytes = *p.MaxUploadBytes
	}
	if p.MinDocuments != nil {
		if *p.MinDocuments < 0 {
			return fmt.Errorf("kyc policy: min_documents must not be negative")
		}
		c.MinDocuments = *p.MinDocuments
	}
	if p.AutoSubmitOnFirstDocument != nil {
		c.AutoSubmitOnFirstDocument = *p.AutoSubmitOnFirstDocument
	}
	if p.PresignExpiry != "" {
		d, err := time.ParseDuration(p.PresignExpiry)
		if err != nil || d <= 0 {
			return fmt.Errorf("kyc policy: invalid presign_expiry %q", p.PresignExpiry)
		}
		c.PresignExpiry = d
	}
	return nil
}
