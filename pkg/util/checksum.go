package util

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
)

var sha256HexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// NormalizeSHA256Hex trims and lowercases a hex checksum and reports whether
// the result is a well-formed SHA-256 digest.
func NormalizeSHA256Hex(checksum string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(checksum))
	return normalized, sha256HexPattern.MatchString(normalized)
}

// SHA256Hex returns the lowercase hex digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256HexToBase64 converts a hex digest into the base64 form object stores
// expect in checksum headers.
func SHA256HexToBase64(checksum string) (string, error) {
	raw, err := hex.DecodeString(checksum)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
