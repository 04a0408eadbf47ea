package storage

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost 10 is roughly 60ms per hash.
	bcryptCost  = 10
	bcryptLimit = 72
)

// HashKey returns a salted bcrypt hash of a service key. Only the hash is persisted.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", ErrKeyNil
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(key), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash service key: %w", err)
	}

	return string(hash), nil
}

// CompareKeyHash reports whether key matches hash. Any error is a mismatch.
func CompareKeyHash(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(key)) == nil
}

// bcryptInput pre-hashes inputs over bcrypt's 72-byte limit with SHA-256.
func bcryptInput(key string) []byte {
	if len(key) <= bcryptLimit {
		return []byte(key)
	}

	sum := sha256.Sum256([]byte(key))

	return sum[:]
}
