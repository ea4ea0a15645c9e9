package storage

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ikkim/gigmarket-backend/pkg/util"
)

const checksumHeader = "x-amz-checksum-sha256"

// S3Storage presigns PUT uploads bound to the declared type, length and
// SHA-256, so S3 rejects any body that does not match.
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	now     func() time.Time
}

type S3Options struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // MinIO / LocalStack
}

func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	var cfg aws.Config

	// Static credentials when provided, otherwise the default chain (env, profile, IAM role).
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		cfg = aws.Config{
			Region:      opts.Region,
			Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		}
	} else {
		var err error
		cfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		now:     time.Now,
	}, nil
}

func (s *S3Storage) BuildObjectKey(userID, sessionID, documentType, fileName string) string {
	return BuildObjectKey(userID, sessionID, documentType, fileName, s.now())
}

func (s *S3Storage) CreateUploadURL(ctx context.Context, req UploadRequest) (*PresignedUpload, error) {
	checksum, err := util.SHA256HexToBase64(req.ChecksumSHA256)
	if err != nil {
		return nil, fmt.Errorf("invalid checksum: %w", err)
	}

	expires := uploadExpiry(req)
	issuedAt := s.now()

	presigned, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(s.bucket),
		Key:            aws.String(req.Key),
		ContentType:    aws.String(req.ContentType),
		ContentLength:  aws.Int64(req.ContentLength),
		ChecksumSHA256: aws.String(checksum),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	headers := make(map[string]string, len(presigned.SignedHeader)+3)
	for name, values := range presigned.SignedHeader {
		if http.CanonicalHeaderKey(name) == "Host" || len(values) == 0 {
			continue
		}
		headers[name] = values[0]
	}
	headers["Content-Type"] = req.ContentType
	headers["Content-Length"] = strconv.FormatInt(req.ContentLength, 10)
	headers[checksumHeader] = checksum

	return &PresignedUpload{
		URL:       presigned.URL,
		Method:    presigned.Method,
		Headers:   headers,
		ExpiresAt: issuedAt.Add(expires),
	}, nil
}

// ToFileURL returns s3://bucket/key.
func (s *S3Storage) ToFileURL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}
