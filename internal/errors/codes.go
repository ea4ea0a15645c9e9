package errors

// Stable machine-readable error codes returned in ErrorResponse.Error.
// Clients map on these values; never rename an existing code.

// Kind groups codes into the categories that decide the HTTP status.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindLocked       Kind = "locked"
	KindIncomplete   Kind = "incomplete"
	KindInternal     Kind = "internal"
)

const (
	// ==================== auth ====================
	AuthUnauthorized  = "unauthorized"
	AuthTokenInvalid  = "auth_token_invalid"
	AuthTokenExpired  = "auth_token_expired"
	AuthzForbidden    = "forbidden"
	AuthzRoleNotFound = "authz_role_not_found"

	// ==================== validation ====================
	ValidationInvalidInput = "invalid_input"
	InvalidProvider        = "invalid_provider"
	InvalidSessionID       = "invalid_session_id"
	InvalidDocumentType    = "invalid_document_type"
	InvalidFileName        = "invalid_file_name"
	InvalidContentType     = "invalid_content_type"
	InvalidContentLength   = "invalid_content_length"
	InvalidChecksum        = "invalid_checksum"
	InvalidObjectKey       = "invalid_object_key"
	InvalidMetadata        = "invalid_metadata"
	InvalidDecision        = "invalid_decision"
	InvalidStatusFilter    = "invalid_status_filter"
	InvalidLimit           = "invalid_limit"
	MissingIdempotencyKey  = "missing_idempotency_key"
	InvalidWebhookPayload  = "invalid_webhook_payload"

	// ==================== resources ====================
	ResourceNotFound = "not_found"
	ResourceConflict = "resource_conflict"

	// ==================== kyc ====================
	KYCSessionNotFound     = "kyc_session_not_found"
	KYCSessionLocked       = "kyc_session_locked"
	KYCSessionIncomplete   = "kyc_session_incomplete"
	KYCInvalidTransition   = "kyc_invalid_transition"
	DuplicateDocument      = "duplicate_document"
	IdempotencyKeyReused   = "idempotency_key_reused"
	WebhookTimestampStale  = "webhook_timestamp_stale"
	WebhookInProgress      = "webhook_in_progress"
	StorageUploadURLFailed = "storage_upload_url_failed"

	// ==================== internal ====================
	InternalServerError   = "internal_error"
	InternalDatabaseError = "internal_database_error"
)
