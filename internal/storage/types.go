package storage

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ServiceKeyPrefix starts every plaintext service key.
	ServiceKeyPrefix = "hbr_sk_"

	randomBytesSize  = 32
	serviceKeyLength = len(ServiceKeyPrefix) + 2*randomBytesSize // 71
	prefixLen        = 11                                        // "hbr_sk_1234"
	suffixLen        = 4
)

var (
	// ErrKeyAlreadyExists is returned when adding a key whose id or value is taken.
	ErrKeyAlreadyExists = errors.New("service key already exists")
	// ErrKeyNotFound is returned when operating on a non-existent key.
	ErrKeyNotFound = errors.New("service key not found")
	// ErrKeyNil is returned when a nil service key is provided.
	ErrKeyNil = errors.New("service key cannot be nil")
	// ErrOwnerIDEmpty is returned when a key is generated or listed without an owner.
	ErrOwnerIDEmpty = errors.New("owner ID cannot be empty")
	// ErrKeyStringEmpty is returned when parsing an empty key string.
	ErrKeyStringEmpty = errors.New("key string cannot be empty")
	// ErrInvalidKeyFormat is returned when a key lacks the hbr_sk_ prefix or is not hex.
	ErrInvalidKeyFormat = errors.New("invalid service key format")
	// ErrInvalidKeyLength is returned when a key is not 71 characters long.
	ErrInvalidKeyLength = errors.New("invalid service key length")
)

// ServiceKey is a long-lived credential exchanged for bearer tokens. Role and Tier
// are copied into the tokens it issues.
type ServiceKey struct {
	ID        string     `json:"id"`
	Key       string     `json:"key,omitempty"`
	OwnerID   string     `json:"ownerId"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	Tier      string     `json:"tier"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Active    bool       `json:"active"`
}

// ServiceKeyStore stores service keys. Implementations never return the plaintext
// key from lookups; Key holds a masked value on returned copies.
type ServiceKeyStore interface {
	FindByKey(ctx context.Context, key string) (*ServiceKey, bool)
	Add(ctx context.Context, serviceKey *ServiceKey) error
	Update(ctx context.Context, serviceKey *ServiceKey) error
	Delete(ctx context.Context, keyID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*ServiceKey, error)
}

// IsExpired reports whether the key has an expiry at or before now.
func (k *ServiceKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// ValidateKey compares providedKey against the key in constant time. Inactive and
// expired keys never validate.
func (k *ServiceKey) ValidateKey(providedKey string) bool {
	if providedKey == "" || k.Key == "" {
		return false
	}

	if !k.Active || k.IsExpired(time.Now()) {
		return false
	}

	return SecureCompare(k.Key, providedKey)
}

// SecureCompare performs constant-time comparison of two strings.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		// keep the work proportional to a
		dummy := make([]byte, len(a))
		subtle.ConstantTimeCompare([]byte(a), dummy)

		return false
	}

	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskKey hides all but the prefix and last four characters of a 71-character
// service key. Keys of any other length are masked completely.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}

	keyLen := len(key)

	if keyLen == serviceKeyLength {
		return key[:prefixLen] + strings.Repeat("*", keyLen-prefixLen-suffixLen) + key[keyLen-suffixLen:]
	}

	return strings.Repeat("*", keyLen)
}

// GenerateServiceKey creates a new random service key for ownerID.
func GenerateServiceKey(ownerID string) (string, error) {
	if ownerID == "" {
		return "", ErrOwnerIDEmpty
	}

	randomBytes := make([]byte, randomBytesSize)

	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return ServiceKeyPrefix + hex.EncodeToString(randomBytes), nil
}

// ParseServiceKey extracts a service key from a header value, accepting an
// optional "Bearer " prefix.
func ParseServiceKey(keyString string) (string, error) {
	keyString = strings.TrimSpace(strings.TrimPrefix(keyString, "Bearer "))
	if keyString == "" {
		return "", ErrKeyStringEmpty
	}

	if !strings.HasPrefix(keyString, ServiceKeyPrefix) {
		return "", ErrInvalidKeyFormat
	}

	if len(keyString) != serviceKeyLength {
		return "", ErrInvalidKeyLength
	}

	if _, err := hex.DecodeString(keyString[len(ServiceKeyPrefix):]); err != nil {
		return "", ErrInvalidKeyFormat
	}

	return keyString, nil
}
