package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Redis     RedisConfig
	Storage   StorageConfig
	S3        S3Config
	KYC       KYCConfig
	Webhook   WebhookConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// StorageConfig selects the object storage adapter ("s3" or "local").
type StorageConfig struct {
	Driver       string
	LocalBaseURL string
	LocalBucket  string
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // MinIO / LocalStack override
}

// KYCConfig holds the document intake policy. PolicyFile, when set, is a YAML
// file whose values override the environment defaults.
type KYCConfig struct {
	AllowedContentTypes       []string
	AllowedDocumentTypes      []string
	MaxUploadBytes            int64
	MinDocuments              int
	AutoSubmitOnFirstDocument bool
	PresignExpiry             time.Duration
	PolicyFile                string
}

type WebhookConfig struct {
	Secret           string
	MaxClockSkew     time.Duration
	ReceiptRetention time.Duration
	LockTTL          time.Duration
}

type SchedulerConfig struct {
	ReceiptPruneSpec string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "gigmarket"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Redis: RedisConfig{
			Enabled:  parseBool(getEnv("REDIS_ENABLED", "false")),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		Storage: StorageConfig{
			Driver:       strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
			LocalBaseURL: getEnv("STORAGE_LOCAL_BASE_URL", "http://localhost:8080/dev-uploads"),
			LocalBucket:  getEnv("STORAGE_LOCAL_BUCKET", "kyc-dev"),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-northeast-2"),
			Bucket:          getEnv("AWS_S3_BUCKET", "gigmarket-kyc"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
		},
		KYC: KYCConfig{
			AllowedContentTypes:       parseSlice(getEnv("KYC_ALLOWED_CONTENT_TYPES", "image/jpeg,image/png,application/pdf")),
			AllowedDocumentTypes:      parseSlice(getEnv("KYC_ALLOWED_DOCUMENT_TYPES", "")),
			MaxUploadBytes:            parseInt64(getEnv("KYC_MAX_UPLOAD_BYTES", "10485760"), 10*1024*1024),
			MinDocuments:              parseInt(getEnv("KYC_MIN_DOCUMENTS", "1"), 1),
			AutoSubmitOnFirstDocument: parseBool(getEnv("KYC_AUTO_SUBMIT", "true")),
			PresignExpiry:             parseDuration(getEnv("KYC_PRESIGN_EXPIRY", "15m"), 15*time.Minute),
			PolicyFile:                getEnv("KYC_POLICY_FILE", ""),
		},
		Webhook: WebhookConfig{
			Secret:           getEnv("KYC_WEBHOOK_SECRET", ""),
			MaxClockSkew:     parseDuration(getEnv("KYC_WEBHOOK_MAX_SKEW", "5m"), 5*time.Minute),
			ReceiptRetention: parseDuration(getEnv("KYC_WEBHOOK_RECEIPT_RETENTION", "720h"), 30*24*time.Hour),
			LockTTL:          parseDuration(getEnv("KYC_WEBHOOK_LOCK_TTL", "30s"), 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			ReceiptPruneSpec: getEnv("KYC_RECEIPT_PRUNE_CRON", "0 3 * * *"),
		},
	}

	if config.KYC.PolicyFile != "" {
		if err := config.KYC.ApplyPolicyFile(config.KYC.PolicyFile); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseInt64(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
