package chapters

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	a := NewTextAnalyzer()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", ""},
		{"inline tags keep words joined", "<p>Hello <b>world</b>.</p>", "Hello world."},
		{"block tags separate words", "<p>end</p><p>start</p>", "end start"},
		{"entities decoded", "<p>Rock &amp; Roll</p>", "Rock & Roll"},
		{"script contents dropped", "<p>Intro</p><script>alert('x')</script>", "Intro"},
		{"line breaks", "one<br/>two<br>three", "one two three"},
		{"plain text untouched", "  just   words  ", "just words"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.PlainText(tt.content))
		})
	}
}

func TestWordCountAndReadingTime(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	a := NewTextAnalyzer()

	assert.Equal(t, 0, a.WordCount(""))
	assert.Equal(t, 4, a.WordCount("<h1>Chapter One</h1><p>It began.</p>"))

	assert.Equal(t, 0, ReadingTime(0, 200))
	assert.Equal(t, 1, ReadingTime(1, 200))
	assert.Equal(t, 1, ReadingTime(200, 200))
	assert.Equal(t, 2, ReadingTime(201, 200))
	assert.Equal(t, 2, ReadingTime(201, 0), "zero speed uses the default")
	assert.Equal(t, 3, ReadingTime(250, 100))
}

func TestExcerpt(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"short text unchanged", "Short.", 20, "Short."},
		{"ends at sentence", "First sentence. Second sentence runs long", 25, "First sentence."},
		{"ends at space", "no punctuation in this sentence at all", 20, "no punctuation in..."},
		{"hard cut", "abcdefghijklmnopqrstuvwxyz", 10, "abcdefghij..."},
		{"multibyte safe", "ééééééééééé", 5, "ééééé..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excerpt(tt.text, tt.limit))
		})
	}

	long := strings.Repeat("word ", 100)
	assert.LessOrEqual(t, len(Excerpt(long, 0)), DefaultExcerptLength+len(ellipsis))
}

func TestKeywords(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	text := "The guitar and the drums. Guitar solos, guitar riffs; drums again! A bass line."

	assert.Equal(t, []string{"guitar", "drums", "again"}, Keywords(text, 3))
	assert.Empty(t, Keywords("the and for", 5))
}

func TestAnalyze(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	a := NewTextAnalyzer()

	got := a.Analyze("<p>One two three. Four five!</p><p>Six?</p>", 200)

	assert.Equal(t, ContentAnalysis{
		WordCount:               6,
		CharacterCount:          len("One two three. Four five! Six?"),
		SentenceCount:           3,
		ParagraphCount:          2,
		ReadingTime:             1,
		AverageWordsPerSentence: 2,
	}, got)

	assert.Equal(t, 2, a.Analyze("first block\n\nsecond block", 200).ParagraphCount)
	assert.Equal(t, ContentAnalysis{}, a.Analyze("", 200))
}
