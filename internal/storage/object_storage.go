package storage

//go:generate mockgen -source=object_storage.go -destination=mocks/object_storage_mock.go -package=mocks ObjectStorage

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// KeyRoot is the first segment of every KYC object key.
	KeyRoot = "kyc"

	DefaultPresignExpiry = 15 * time.Minute
)

var (
	objectKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9/_\-.]+$`)
	unsafeSegment    = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)
	unsafeExt        = regexp.MustCompile(`[^a-z0-9]`)
)

// UploadRequest describes the blob a client is about to PUT.
type UploadRequest struct {
	Key            string
	ContentType    string
	ContentLength  int64
	ChecksumSHA256 string // lowercase hex
	Expires        time.Duration
}

// PresignedUpload is the time-limited credential handed to the client.
type PresignedUpload struct {
	URL       string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// ObjectStorage is the port document intake talks to. Document bytes never
// pass through the service; adapters only mint upload credentials and file
// references.
type ObjectStorage interface {
	BuildObjectKey(userID, sessionID, documentType, fileName string) string
	CreateUploadURL(ctx context.Context, req UploadRequest) (*PresignedUpload, error)
	ToFileURL(key string) string
}

// ObjectKeyPrefix is the prefix every key for the given owner and session
// starts with.
func ObjectKeyPrefix(userID, sessionID string) string {
	return fmt.Sprintf("%s/%s/%s/", KeyRoot, sanitizeSegment(userID), sanitizeSegment(sessionID))
}

// BuildObjectKey returns kyc/{user}/{session}/{unixMillis}-{random}-{doctype}{ext}.
func BuildObjectKey(userID, sessionID, documentType, fileName string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	docType := strings.ToLower(sanitizeSegment(documentType))
	return fmt.Sprintf("%s%d-%s-%s%s",
		ObjectKeyPrefix(userID, sessionID),
		now.UnixMilli(),
		random,
		docType,
		fileExtension(fileName),
	)
}

// ValidObjectKey reports whether key uses only the allowed characters, is
// relative and never walks up a directory.
func ValidObjectKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return false
	}
	return objectKeyPattern.MatchString(key)
}

// OwnsObjectKey reports whether key sits under the user's session prefix.
func OwnsObjectKey(key, userID, sessionID string) bool {
	return ValidObjectKey(key) && strings.HasPrefix(key, ObjectKeyPrefix(userID, sessionID))
}

func sanitizeSegment(s string) string {
	s = unsafeSegment.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "_"
	}
	return s
}

func fileExtension(fileName string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	ext = unsafeExt.ReplaceAllString(ext, "")
	if ext == "" {
		return ""
	}
	if len(ext) > 10 {
		ext = ext[:10]
	}
	return "." + ext
}

func uploadExpiry(req UploadRequest) time.Duration {
	if req.Expires <= 0 {
		return DefaultPresignExpiry
	}
	return req.Expires
}
