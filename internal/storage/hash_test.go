package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestHashKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		key  string
	}{
		{"service key", testServiceKey},
		{"short key", "hbr_sk_123"},
		{"key over bcrypt limit", strings.Repeat("a", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashKey(tt.key)
			if err != nil {
				t.Fatalf("HashKey() unexpected error: %v", err)
			}

			if !strings.HasPrefix(hash, "$2") || len(hash) != 60 {
				t.Errorf("HashKey() = %q, want a 60-character bcrypt hash", hash)
			}

			again, err := HashKey(tt.key)
			if err != nil {
				t.Fatalf("HashKey() second call error: %v", err)
			}

			if hash == again {
				t.Error("HashKey() produced identical hashes, want salted output")
			}

			if !CompareKeyHash(hash, tt.key) {
				t.Error("CompareKeyHash() = false for the hashed key")
			}
		})
	}

	t.Run("empty key", func(t *testing.T) {
		hash, err := HashKey("")
		if !errors.Is(err, ErrKeyNil) {
			t.Errorf("HashKey(\"\") error = %v, want %v", err, ErrKeyNil)
		}

		if hash != "" {
			t.Errorf("HashKey(\"\") = %q, want empty", hash)
		}
	})
}

func TestCompareKeyHash(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	hash, err := HashKey(testServiceKey)
	if err != nil {
		t.Fatalf("HashKey() unexpected error: %v", err)
	}

	long := strings.Repeat("b", 90)

	longHash, err := HashKey(long)
	if err != nil {
		t.Fatalf("HashKey(long) unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		key      string
		expected bool
	}{
		{"match", hash, testServiceKey, true},
		{"wrong key", hash, testServiceKey[:70] + "0", false},
		{"empty key", hash, "", false},
		{"empty hash", "", testServiceKey, false},
		{"malformed hash", "not-a-bcrypt-hash", testServiceKey, false},
		{"long key match", longHash, long, true},
		{"long key differing after 72 bytes", longHash, strings.Repeat("b", 80) + strings.Repeat("c", 10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareKeyHash(tt.hash, tt.key); got != tt.expected {
				t.Errorf("CompareKeyHash() = %v, want %v", got, tt.expected)
			}
		})
	}
}
