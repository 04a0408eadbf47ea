package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testServiceKey = "hbr_sk_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef" // pragma: allowlist secret

func TestServiceKeyValidateKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		key      ServiceKey
		provided string
		expected bool
	}{
		{"matching active key", ServiceKey{Key: testServiceKey, Active: true}, testServiceKey, true},
		{"wrong key", ServiceKey{Key: testServiceKey, Active: true}, "hbr_sk_wrong", false},
		{"empty provided key", ServiceKey{Key: testServiceKey, Active: true}, "", false},
		{"inactive key", ServiceKey{Key: testServiceKey, Active: false}, testServiceKey, false},
		{"expired key", ServiceKey{Key: testServiceKey, Active: true, ExpiresAt: &past}, testServiceKey, false},
		{"future expiry", ServiceKey{Key: testServiceKey, Active: true, ExpiresAt: &future}, testServiceKey, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.ValidateKey(tt.provided); got != tt.expected {
				t.Errorf("ValidateKey() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestServiceKeyIsExpired(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Second)
	after := now.Add(time.Second)

	if (&ServiceKey{}).IsExpired(now) {
		t.Error("IsExpired() without expiry = true, want false")
	}

	if !(&ServiceKey{ExpiresAt: &before}).IsExpired(now) {
		t.Error("IsExpired() with past expiry = false, want true")
	}

	if !(&ServiceKey{ExpiresAt: &now}).IsExpired(now) {
		t.Error("IsExpired() at the expiry instant = false, want true")
	}

	if (&ServiceKey{ExpiresAt: &after}).IsExpired(now) {
		t.Error("IsExpired() with future expiry = true, want false")
	}
}

func TestSecureCompare(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		a, b     string
		expected bool
	}{
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"abc", "abcd", false},
		{"", "", true},
	}

	for _, tt := range tests {
		if got := SecureCompare(tt.a, tt.b); got != tt.expected {
			t.Errorf("SecureCompare(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestMaskKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	masked := MaskKey(testServiceKey)

	if len(masked) != len(testServiceKey) {
		t.Fatalf("MaskKey() length = %d, want %d", len(masked), len(testServiceKey))
	}

	if !strings.HasPrefix(masked, "hbr_sk_0123") {
		t.Errorf("MaskKey() = %q, want prefix hbr_sk_0123", masked)
	}

	if !strings.HasSuffix(masked, "*cdef") {
		t.Errorf("MaskKey() = %q, want suffix *cdef", masked)
	}

	if strings.Count(masked, "*") != 56 {
		t.Errorf("MaskKey() masked %d characters, want 56", strings.Count(masked, "*"))
	}

	if got := MaskKey("short-key"); got != "*********" {
		t.Errorf("MaskKey(short) = %q, want fully masked", got)
	}

	if got := MaskKey(""); got != "" {
		t.Errorf("MaskKey(\"\") = %q, want empty", got)
	}
}

func TestGenerateServiceKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	key, err := GenerateServiceKey("label-7")
	if err != nil {
		t.Fatalf("GenerateServiceKey() unexpected error: %v", err)
	}

	if _, err := ParseServiceKey(key); err != nil {
		t.Errorf("ParseServiceKey(generated) error = %v", err)
	}

	other, _ := GenerateServiceKey("label-7")
	if key == other {
		t.Error("GenerateServiceKey() returned the same key twice")
	}

	if _, err := GenerateServiceKey(""); !errors.Is(err, ErrOwnerIDEmpty) {
		t.Errorf("GenerateServiceKey(\"\") error = %v, want %v", err, ErrOwnerIDEmpty)
	}
}

func TestParseServiceKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name      string
		input     string
		expected  string
		expectErr error
	}{
		{"bare key", testServiceKey, testServiceKey, nil},
		{"bearer prefix", "Bearer " + testServiceKey, testServiceKey, nil},
		{"surrounding space", "  " + testServiceKey + " ", testServiceKey, nil},
		{"empty", "", "", ErrKeyStringEmpty},
		{"wrong prefix", "sk_live_0123456789abcdef", "", ErrInvalidKeyFormat},
		{"too short", "hbr_sk_0123", "", ErrInvalidKeyLength},
		{"not hex", "hbr_sk_" + strings.Repeat("z", 64), "", ErrInvalidKeyFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServiceKey(tt.input)

			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Errorf("ParseServiceKey() error = %v, want %v", err, tt.expectErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("ParseServiceKey() unexpected error: %v", err)
			}

			if got != tt.expected {
				t.Errorf("ParseServiceKey() = %q, want %q", got, tt.expected)
			}
		})
	}
}
