package chapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOptions(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	assert.Equal(t, Options{IncludeContent: true, IncludeKeywords: true}, ParseOptions([]string{"content, Keywords"}))
	assert.Equal(t, AllOptions(), ParseOptions([]string{"comments", "all"}))
	assert.Equal(t, Options{}, ParseOptions([]string{"unknown"}))
}
