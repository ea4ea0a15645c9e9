package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ikkim/gigmarket-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildObjectKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	key := BuildObjectKey("user-1", "sess-1", "passport", "My Scan.JPG", now)

	assert.True(t, strings.HasPrefix(key, "kyc/user-1/sess-1/1700000000123-"))
	assert.True(t, strings.HasSuffix(key, "-passport.jpg"))
	assert.True(t, ValidObjectKey(key))
	assert.True(t, OwnsObjectKey(key, "user-1", "sess-1"))
	assert.False(t, OwnsObjectKey(key, "user-2", "sess-1"))
	assert.False(t, OwnsObjectKey(key, "user-1", "sess-2"))

	other := BuildObjectKey("user-1", "sess-1", "passport", "My Scan.JPG", now)
	assert.NotEqual(t, key, other)
}

func TestBuildObjectKey_SanitizesSegments(t *testing.T) {
	key := BuildObjectKey("../evil user", "s/1", "ID CARD", "x.p/df", time.Now())

	assert.True(t, ValidObjectKey(key))
	assert.True(t, strings.HasPrefix(key, "kyc/___evil_user/s_1/"))
	assert.NotContains(t, key, "..")
}

func TestValidObjectKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"kyc/u/s/1-a-passport.pdf", true},
		{"", false},
		{"/kyc/u/s/file.pdf", false},
		{"kyc/u/../s/file.pdf", false},
		{"kyc/u/s/file name.pdf", false},
		{"kyc/u/s/file?.pdf", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidObjectKey(tt.key), tt.key)
	}
}

func TestLocalStorage(t *testing.T) {
	s := NewLocalStorage("http://localhost:8080/dev-uploads/", "kyc-dev")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	checksum := strings.Repeat("ab", 32)

	upload, err := s.CreateUploadURL(context.Background(), UploadRequest{
		Key:            "kyc/u/s/1-a-passport.pdf",
		ContentType:    "application/pdf",
		ContentLength:  1024,
		ChecksumSHA256: checksum,
	})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/dev-uploads/kyc/u/s/1-a-passport.pdf", upload.URL)
	assert.Equal(t, "PUT", upload.Method)
	assert.Equal(t, "1024", upload.Headers["Content-Length"])
	b64, err := util.SHA256HexToBase64(checksum)
	require.NoError(t, err)
	assert.Equal(t, b64, upload.Headers[checksumHeader])
	assert.Equal(t, time.Unix(1700000000, 0).Add(DefaultPresignExpiry), upload.ExpiresAt)
	assert.Equal(t, "local://kyc-dev/kyc/u/s/1-a-passport.pdf", s.ToFileURL("kyc/u/s/1-a-passport.pdf"))

	_, err = s.CreateUploadURL(context.Background(), UploadRequest{Key: "../etc/passwd"})
	assert.Error(t, err)

	_, err = s.CreateUploadURL(context.Background(), UploadRequest{Key: "kyc/u/s/1-a-passport.pdf", ChecksumSHA256: "not-hex"})
	assert.Error(t, err)
}

func TestS3Storage_PresignBindsChecksum(t *testing.T) {
	s, err := NewS3Storage(context.Background(), S3Options{
		Region:          "ap-northeast-2",
		Bucket:          "kyc-bucket",
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	checksum := util.SHA256Hex([]byte("document bytes"))
	b64, err := util.SHA256HexToBase64(checksum)
	require.NoError(t, err)

	upload, err := s.CreateUploadURL(context.Background(), UploadRequest{
		Key:            "kyc/u/s/1-a-passport.pdf",
		ContentType:    "application/pdf",
		ContentLength:  2048,
		ChecksumSHA256: checksum,
		Expires:        5 * time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, "PUT", upload.Method)
	assert.Contains(t, upload.URL, "kyc-bucket")
	assert.Contains(t, upload.URL, "kyc/u/s/1-a-passport.pdf")
	assert.Contains(t, upload.URL, "X-Amz-Signature=")
	assert.Equal(t, "application/pdf", upload.Headers["Content-Type"])
	assert.Equal(t, "2048", upload.Headers["Content-Length"])
	assert.Equal(t, b64, upload.Headers[checksumHeader])
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), upload.ExpiresAt, 5*time.Second)

	assert.Equal(t, "s3://kyc-bucket/kyc/u/s/1-a-passport.pdf", s.ToFileURL("kyc/u/s/1-a-passport.pdf"))

	_, err = s.CreateUploadURL(context.Background(), UploadRequest{Key: "k", ChecksumSHA256: "not-hex"})
	assert.Error(t, err)
}
