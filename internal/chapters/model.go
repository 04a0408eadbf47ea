// Package chapters maps book chapters between their stored form and the API and
// derives reading statistics from chapter content.
package chapters

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Chapter statuses.
const (
	StatusDraft     = "draft"
	StatusReview    = "review"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

const (
	// DefaultWordsPerMinute is the reading speed used for ReadingTime.
	DefaultWordsPerMinute = 200
	// DefaultExcerptLength is the excerpt budget in characters.
	DefaultExcerptLength = 200
	// DefaultKeywordLimit caps extracted keywords.
	DefaultKeywordLimit = 10
)

var (
	// ErrNotFound is returned by stores when a chapter does not exist.
	ErrNotFound = errors.New("chapter not found")
	// ErrInvalidRequest is returned when a create request lacks required fields.
	ErrInvalidRequest = errors.New("invalid chapter request")
)

type (
	// Record is a row of the chapters table.
	Record struct {
		ID                string
		BookID            string
		Title             string
		Subtitle          *string
		ChapterNumber     int
		Content           *string
		Summary           *string
		Status            string
		AuthorID          *string
		Version           int
		WordCount         *int
		Keywords          []byte
		Metadata          []byte
		CollaborationData []byte
		VersionHistory    []byte
		PublicationData   []byte
		Comments          []byte
		Revisions         []byte
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// Chapter is the API representation of a chapter.
	Chapter struct {
		ID            string    `json:"id"`
		BookID        string    `json:"bookId"`
		Title         string    `json:"title"`
		Subtitle      *string   `json:"subtitle"`
		ChapterNumber int       `json:"chapterNumber"`
		Status        string    `json:"status"`
		Summary       *string   `json:"summary"`
		AuthorID      *string   `json:"authorId"`
		Version       int       `json:"version"`
		WordCount     int       `json:"wordCount"`
		ReadingTime   int       `json:"readingTime"`
		Excerpt       string    `json:"excerpt"`
		CreatedAt     time.Time `json:"createdAt"`
		UpdatedAt     time.Time `json:"updatedAt"`

		Content         *string          `json:"content,omitempty"`
		ContentAnalysis *ContentAnalysis `json:"contentAnalysis,omitempty"`
		Keywords        []string         `json:"keywords,omitempty"`
		Metadata        map[string]any   `json:"metadata,omitempty"`
		Collaboration   *Collaboration   `json:"collaboration,omitempty"`
		Versioning      *Versioning      `json:"versioning,omitempty"`
		Publication     *Publication     `json:"publication,omitempty"`
		Comments        []Comment        `json:"comments,omitempty"`
		Revisions       []Revision       `json:"revisions,omitempty"`
	}

	// ContentAnalysis holds statistics over the plain text of a chapter.
	ContentAnalysis struct {
		WordCount               int     `json:"wordCount"`
		CharacterCount          int     `json:"characterCount"`
		SentenceCount           int     `json:"sentenceCount"`
		ParagraphCount          int     `json:"paragraphCount"`
		ReadingTime             int     `json:"readingTime"`
		AverageWordsPerSentence float64 `json:"averageWordsPerSentence"`
	}

	Collaborator struct {
		UserID string `json:"userId"`
		Name   string `json:"name,omitempty"`
		Role   string `json:"role"`
	}

	Collaboration struct {
		Collaborators []Collaborator `json:"collaborators,omitempty"`
		LockedBy      string         `json:"lockedBy,omitempty"`
		LockedAt      *time.Time     `json:"lockedAt,omitempty"`
	}

	VersionEntry struct {
		Version   int       `json:"version"`
		AuthorID  string    `json:"authorId,omitempty"`
		Summary   string    `json:"summary,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Versioning combines the version column with the stored history.
	Versioning struct {
		CurrentVersion int            `json:"currentVersion"`
		History        []VersionEntry `json:"history"`
	}

	Publication struct {
		Status      string     `json:"status,omitempty"`
		PublishedAt *time.Time `json:"publishedAt,omitempty"`
		Platforms   []string   `json:"platforms,omitempty"`
		ISBN        string     `json:"isbn,omitempty"`
	}

	Comment struct {
		ID        string    `json:"id"`
		AuthorID  string    `json:"authorId"`
		Body      string    `json:"body"`
		Resolved  bool      `json:"resolved"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Revision struct {
		ID        string    `json:"id"`
		AuthorID  string    `json:"authorId"`
		Summary   string    `json:"summary,omitempty"`
		WordDelta int       `json:"wordDelta"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Options select which sub-objects ToAPIResponse includes and tune the derived
	// reading statistics. Zero WordsPerMinute and ExcerptLength use the defaults.
	Options struct {
		IncludeContent         bool
		IncludeContentAnalysis bool
		IncludeKeywords        bool
		IncludeMetadata        bool
		IncludeCollaboration   bool
		IncludeVersioning      bool
		IncludePublication     bool
		IncludeComments        bool
		IncludeRevisions       bool

		WordsPerMinute int
		ExcerptLength  int
	}

	// CreateRequest is the body of POST /api/v1/chapters.
	CreateRequest struct {
		BookID        string         `json:"bookId"`
		Title         string         `json:"title"`
		Subtitle      *string        `json:"subtitle"`
		ChapterNumber *int           `json:"chapterNumber"`
		Content       *string        `json:"content"`
		Summary       *string        `json:"summary"`
		Status        string         `json:"status"`
		AuthorID      *string        `json:"authorId"`
		Keywords      []string       `json:"keywords"`
		Metadata      map[string]any `json:"metadata"`
		Collaboration *Collaboration `json:"collaboration"`
		Publication   *Publication   `json:"publication"`
	}

	// UpdateRequest is the body of PATCH /api/v1/chapters/{id}. Nil fields are left
	// unchanged.
	UpdateRequest struct {
		BookID        *string        `json:"bookId"`
		Title         *string        `json:"title"`
		Subtitle      *string        `json:"subtitle"`
		ChapterNumber *int           `json:"chapterNumber"`
		Content       *string        `json:"content"`
		Summary       *string        `json:"summary"`
		Status        *string        `json:"status"`
		AuthorID      *string        `json:"authorId"`
		Version       *int           `json:"version"`
		Keywords      []string       `json:"keywords"`
		Metadata      map[string]any `json:"metadata"`
		Collaboration *Collaboration `json:"collaboration"`
		Publication   *Publication   `json:"publication"`
		Comments      []Comment      `json:"comments"`
		Revisions     []Revision     `json:"revisions"`
	}

	// Changes maps column names to new values for a partial update.
	Changes map[string]any

	// Filter narrows List results. Zero fields do not filter.
	Filter struct {
		BookID   string
		Status   string
		AuthorID string
		Limit    int
		Offset   int
	}

	// Store persists chapter records.
	Store interface {
		Create(ctx context.Context, record *Record) error
		Get(ctx context.Context, id string) (*Record, error)
		List(ctx context.Context, filter Filter) ([]*Record, error)
		Update(ctx context.Context, id string, changes Changes) (*Record, error)
		Delete(ctx context.Context, id string) error
	}
)

// Columns returns the changed column names in sorted order.
func (c Changes) Columns() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
