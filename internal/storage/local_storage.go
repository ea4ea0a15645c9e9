package storage

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ikkim/gigmarket-backend/pkg/util"
)

// LocalStorage fabricates upload URLs for development. Nothing listens on
// them; clients are expected to skip the PUT.
type LocalStorage struct {
	baseURL string
	bucket  string
	now     func() time.Time
}

func NewLocalStorage(baseURL, bucket string) *LocalStorage {
	return &LocalStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		now:     time.Now,
	}
}

func (s *LocalStorage) BuildObjectKey(userID, sessionID, documentType, fileName string) string {
	return BuildObjectKey(userID, sessionID, documentType, fileName, s.now())
}

func (s *LocalStorage) CreateUploadURL(_ context.Context, req UploadRequest) (*PresignedUpload, error) {
	if !ValidObjectKey(req.Key) {
		return nil, fmt.Errorf("invalid object key %q", req.Key)
	}
	checksum, err := util.SHA256HexToBase64(req.ChecksumSHA256)
	if err != nil {
		return nil, fmt.Errorf("invalid checksum: %w", err)
	}
	return &PresignedUpload{
		URL:    fmt.Sprintf("%s/%s", s.baseURL, req.Key),
		Method: http.MethodPut,
		Headers: map[string]string{
			"Content-Type":   req.ContentType,
			"Content-Length": strconv.FormatInt(req.ContentLength, 10),
			checksumHeader:   checksum,
		},
		ExpiresAt: s.now().Add(uploadExpiry(req)),
	}, nil
}

// ToFileURL returns local://bucket/key.
func (s *LocalStorage) ToFileURL(key string) string {
	return fmt.Sprintf("local://%s/%s", s.bucket, key)
}
