package chapters

import (
	"cmp"
	"html"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	ellipsis         = "..."
	minKeywordLength = 3
)

var (
	paragraphTag = regexp.MustCompile(`(?i)</p\s*>`) //nolint:gochecknoglobals
	// Block boundaries become spaces so adjacent paragraphs do not merge words.
	blockTag = regexp.MustCompile(`(?i)<(/?(?:p|div|br|li|ul|ol|h[1-6]|blockquote|section|article|tr|td|th)\b[^>]*)>`) //nolint:gochecknoglobals,lll
)

var stopwords = map[string]struct{}{ //nolint:gochecknoglobals
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "all": {},
	"any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {},
	"has": {}, "have": {}, "him": {}, "his": {}, "how": {}, "its": {}, "may": {}, "new": {},
	"now": {}, "old": {}, "see": {}, "two": {}, "who": {}, "did": {}, "she": {}, "they": {},
	"them": {}, "then": {}, "than": {}, "that": {}, "this": {}, "with": {}, "from": {},
	"were": {}, "what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "will": {},
	"would": {}, "there": {}, "their": {}, "these": {}, "those": {}, "been": {}, "into": {},
	"over": {}, "some": {}, "such": {}, "only": {}, "also": {}, "very": {}, "just": {},
	"about": {}, "after": {}, "before": {}, "could": {}, "should": {}, "said": {}, "your": {},
}

// TextAnalyzer derives reading statistics from chapter HTML. It is safe for
// concurrent use.
type TextAnalyzer struct {
	policy *bluemonday.Policy
}

// NewTextAnalyzer returns an analyzer that strips all markup before counting.
func NewTextAnalyzer() *TextAnalyzer {
	return &TextAnalyzer{policy: bluemonday.StrictPolicy()}
}

// PlainText strips markup and entities and collapses whitespace.
func (a *TextAnalyzer) PlainText(content string) string {
	if content == "" {
		return ""
	}

	spaced := blockTag.ReplaceAllString(content, " <$1>")
	stripped := html.UnescapeString(a.policy.Sanitize(spaced))

	return strings.Join(strings.Fields(stripped), " ")
}

// WordCount counts whitespace separated words of the plain text.
func (a *TextAnalyzer) WordCount(content string) int {
	return len(strings.Fields(a.PlainText(content)))
}

// Analyze computes the full content statistics.
func (a *TextAnalyzer) Analyze(content string, wordsPerMinute int) ContentAnalysis {
	text := a.PlainText(content)
	words := len(strings.Fields(text))

	analysis := ContentAnalysis{
		WordCount:      words,
		CharacterCount: utf8.RuneCountInString(text),
		SentenceCount:  countSentences(text),
		ParagraphCount: countParagraphs(content, text),
		ReadingTime:    ReadingTime(words, wordsPerMinute),
	}

	if analysis.SentenceCount > 0 {
		avg := float64(words) / float64(analysis.SentenceCount)
		analysis.AverageWordsPerSentence = math.Round(avg*10) / 10 //nolint:mnd
	}

	return analysis
}

// ReadingTime is ceil(words / wordsPerMinute) minutes. Non-positive speeds use the
// default.
func ReadingTime(words, wordsPerMinute int) int {
	if words <= 0 {
		return 0
	}

	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}

	return int(math.Ceil(float64(words) / float64(wordsPerMinute)))
}

// Excerpt shortens text to at most limit characters. It ends at the last sentence
// punctuation inside the budget, otherwise at the last space followed by an
// ellipsis, otherwise at the hard limit followed by an ellipsis.
func Excerpt(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultExcerptLength
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	cut := string(runes[:limit])

	if i := strings.LastIndexAny(cut, ".!?"); i > 0 {
		return cut[:i+1]
	}

	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		return strings.TrimRightFunc(cut[:i], unicode.IsSpace) + ellipsis
	}

	return cut + ellipsis
}

// Keywords returns the most frequent words of text that are not stopwords, most
// frequent first. Ties are ordered alphabetically.
func Keywords(text string, limit int) []string {
	counts := map[string]int{}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	for _, w := range words {
		w = strings.Trim(w, "'")
		if utf8.RuneCountInString(w) < minKeywordLength {
			continue
		}

		if _, stop := stopwords[w]; stop {
			continue
		}

		counts[w]++
	}

	ranked := make([]string, 0, len(counts))
	for w := range counts {
		ranked = append(ranked, w)
	}

	slices.SortFunc(ranked, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}

		return cmp.Compare(a, b)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}

func countSentences(text string) int {
	count := 0

	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' }) {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}

	return count
}

func countParagraphs(content, text string) int {
	if text == "" {
		return 0
	}

	if n := len(paragraphTag.FindAllStringIndex(content, -1)); n > 0 {
		return n
	}

	count := 0

	for _, block := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}

	return count
}
