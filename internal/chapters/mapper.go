package chapters

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hardbanrecords/hardban-lab/internal/blob"
)

// UpdatableColumns are the columns FromAPIUpdateRequest may emit.
var UpdatableColumns = []string{ //nolint:gochecknoglobals
	"book_id", "title", "subtitle", "chapter_number", "content", "summary", "status",
	"author_id", "version", "word_count", "keywords", "metadata", "collaboration_data",
	"publication_data", "comments", "revisions", "updated_at",
}

// Mapper converts between Record and the API shapes.
type Mapper struct {
	logger   *slog.Logger
	analyzer *TextAnalyzer
	now      func() time.Time
}

// NewMapper returns a Mapper logging blob decode failures to logger.
func NewMapper(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}

	return &Mapper{logger: logger, analyzer: NewTextAnalyzer(), now: time.Now}
}

// ToAPIResponse maps a record to its API shape. A nil record maps to nil.
func (m *Mapper) ToAPIResponse(rec *Record, opts Options) *Chapter {
	if rec == nil {
		return nil
	}

	content := deref(rec.Content)
	text := m.analyzer.PlainText(content)

	words := len(strings.Fields(text))
	if rec.WordCount != nil {
		words = *rec.WordCount
	}

	ch := &Chapter{
		ID:            rec.ID,
		BookID:        rec.BookID,
		Title:         rec.Title,
		Subtitle:      rec.Subtitle,
		ChapterNumber: rec.ChapterNumber,
		Status:        rec.Status,
		Summary:       rec.Summary,
		AuthorID:      rec.AuthorID,
		Version:       rec.Version,
		WordCount:     words,
		ReadingTime:   ReadingTime(words, opts.WordsPerMinute),
		Excerpt:       Excerpt(text, opts.ExcerptLength),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}

	if opts.IncludeContent && rec.Content != nil {
		ch.Content = rec.Content
	}

	if opts.IncludeContentAnalysis {
		analysis := m.analyzer.Analyze(content, opts.WordsPerMinute)
		ch.ContentAnalysis = &analysis
	}

	if opts.IncludeKeywords {
		ch.Keywords = m.keywords(rec, text)
	}

	if opts.IncludeMetadata {
		if md := decodeBlob[map[string]any](m, rec.ID, "metadata", rec.Metadata); md != nil {
			ch.Metadata = *md
		}
	}

	if opts.IncludeCollaboration {
		ch.Collaboration = decodeBlob[Collaboration](m, rec.ID, "collaboration_data", rec.CollaborationData)
	}

	if opts.IncludeVersioning {
		ch.Versioning = m.versioning(rec)
	}

	if opts.IncludePublication {
		ch.Publication = decodeBlob[Publication](m, rec.ID, "publication_data", rec.PublicationData)
	}

	if opts.IncludeComments {
		if comments := decodeBlob[[]Comment](m, rec.ID, "comments", rec.Comments); comments != nil {
			ch.Comments = *comments
		}
	}

	if opts.IncludeRevisions {
		if revisions := decodeBlob[[]Revision](m, rec.ID, "revisions", rec.Revisions); revisions != nil {
			ch.Revisions = *revisions
		}
	}

	return ch
}

// ToAPIResponseList maps each record independently. Nil records, and records whose
// mapping panics, are dropped.
func (m *Mapper) ToAPIResponseList(records []*Record, opts Options) []*Chapter {
	out := make([]*Chapter, 0, len(records))

	for _, rec := range records {
		if ch := m.safeToAPIResponse(rec, opts); ch != nil {
			out = append(out, ch)
		}
	}

	return out
}

// FromAPICreateRequest builds a complete record. The word count is computed from the
// content.
func (m *Mapper) FromAPICreateRequest(req *CreateRequest) (*Record, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}

	if strings.TrimSpace(req.BookID) == "" || strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: bookId and title are required", ErrInvalidRequest)
	}

	if req.ChapterNumber != nil && *req.ChapterNumber < 1 {
		return nil, fmt.Errorf("%w: chapterNumber must be positive", ErrInvalidRequest)
	}

	now := m.now().UTC()

	rec := &Record{
		ID:            uuid.NewString(),
		BookID:        strings.TrimSpace(req.BookID),
		Title:         strings.TrimSpace(req.Title),
		Subtitle:      req.Subtitle,
		ChapterNumber: deref(orDefault(req.ChapterNumber, 1)),
		Content:       req.Content,
		Summary:       req.Summary,
		Status:        defaultString(req.Status, StatusDraft),
		AuthorID:      req.AuthorID,
		Version:       1,
		WordCount:     ptr(m.analyzer.WordCount(deref(req.Content))),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var err error

	encode := func(v any) []byte {
		if err != nil {
			return nil
		}

		var data []byte

		data, err = blob.Encode(v)

		return data
	}

	if len(req.Keywords) > 0 {
		rec.Keywords = encode(req.Keywords)
	}

	if len(req.Metadata) > 0 {
		rec.Metadata = encode(req.Metadata)
	}

	rec.CollaborationData = encode(req.Collaboration)
	rec.PublicationData = encode(req.Publication)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return rec, nil
}

// FromAPIUpdateRequest emits only the columns present in req, plus updated_at. A new
// content value also refreshes word_count.
func (m *Mapper) FromAPIUpdateRequest(req *UpdateRequest) (Changes, error) {
	changes := Changes{"updated_at": m.now().UTC()}

	if req == nil {
		return changes, nil
	}

	setIf(changes, "book_id", req.BookID)
	setIf(changes, "subtitle", req.Subtitle)
	setIf(changes, "chapter_number", req.ChapterNumber)
	setIf(changes, "summary", req.Summary)
	setIf(changes, "status", req.Status)
	setIf(changes, "author_id", req.AuthorID)
	setIf(changes, "version", req.Version)

	if req.Title != nil {
		changes["title"] = strings.TrimSpace(*req.Title)
	}

	if req.Content != nil {
		changes["content"] = *req.Content
		changes["word_count"] = m.analyzer.WordCount(*req.Content)
	}

	blobs := []struct {
		column  string
		present bool
		value   any
	}{
		{"keywords", req.Keywords != nil, req.Keywords},
		{"metadata", req.Metadata != nil, req.Metadata},
		{"collaboration_data", req.Collaboration != nil, req.Collaboration},
		{"publication_data", req.Publication != nil, req.Publication},
		{"comments", req.Comments != nil, req.Comments},
		{"revisions", req.Revisions != nil, req.Revisions},
	}

	for _, b := range blobs {
		if !b.present {
			continue
		}

		data, err := blob.Encode(b.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRequest, b.column, err)
		}

		changes[b.column] = data
	}

	return changes, nil
}

func (m *Mapper) keywords(rec *Record, text string) []string {
	if stored := decodeBlob[[]string](m, rec.ID, "keywords", rec.Keywords); stored != nil && len(*stored) > 0 {
		return *stored
	}

	return Keywords(text, DefaultKeywordLimit)
}

func (m *Mapper) versioning(rec *Record) *Versioning {
	v := &Versioning{CurrentVersion: rec.Version, History: []VersionEntry{}}

	var history []VersionEntry

	if err := blob.Decode(rec.VersionHistory, &history); err != nil {
		if errors.Is(err, blob.ErrEmpty) {
			return v
		}

		m.logDecodeFailure(rec.ID, "version_history", err)

		return nil
	}

	if history != nil {
		v.History = history
	}

	return v
}

func (m *Mapper) safeToAPIResponse(rec *Record, opts Options) (ch *Chapter) {
	defer func() {
		if r := recover(); r != nil {
			id := ""
			if rec != nil {
				id = rec.ID
			}

			m.logger.Error("failed to map chapter",
				slog.String("chapter_id", id),
				slog.Any("panic", r),
			)

			ch = nil
		}
	}()

	return m.ToAPIResponse(rec, opts)
}

func (m *Mapper) logDecodeFailure(id, column string, err error) {
	m.logger.Warn("failed to decode chapter blob",
		slog.String("chapter_id", id),
		slog.String("column", column),
		slog.String("error", err.Error()),
	)
}

func decodeBlob[T any](m *Mapper, id, column string, raw []byte) *T {
	var v T

	if err := blob.Decode(raw, &v); err != nil {
		if !errors.Is(err, blob.ErrEmpty) {
			m.logDecodeFailure(id, column, err)
		}

		return nil
	}

	return &v
}

func setIf[T any](changes Changes, column string, v *T) {
	if v != nil {
		changes[column] = *v
	}
}

func ptr[T any](v T) *T { return &v }

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}

	return *v
}

func orDefault[T any](v *T, def T) *T {
	if v == nil {
		return &def
	}

	return v
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}

	return strings.TrimSpace(v)
}
