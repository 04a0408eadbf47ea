package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hardbanrecords/hardban-lab/internal/chapters"
)

const chapterColumns = `id, book_id, title, subtitle, chapter_number, content, summary, status,
	author_id, version, word_count, keywords, metadata, collaboration_data, version_history,
	publication_data, comments, revisions, created_at, updated_at`

var _ chapters.Store = (*ChapterStore)(nil)

// ChapterStore implements chapters.Store on the chapters table.
type ChapterStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewChapterStore returns a ChapterStore on conn.
func NewChapterStore(conn *Connection, logger *slog.Logger) (*ChapterStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &ChapterStore{conn: conn, logger: logger}, nil
}

// Create inserts rec. A duplicate id, or a second chapter with the same number in
// a book, returns ErrAlreadyExists.
func (s *ChapterStore) Create(ctx context.Context, rec *chapters.Record) error {
	query := `INSERT INTO chapters (` + chapterColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := s.conn.ExecContext(ctx, query,
		rec.ID, rec.BookID, rec.Title, rec.Subtitle, rec.ChapterNumber, rec.Content, rec.Summary,
		rec.Status, rec.AuthorID, rec.Version, rec.WordCount,
		jsonb(rec.Keywords), jsonb(rec.Metadata), jsonb(rec.CollaborationData),
		jsonb(rec.VersionHistory), jsonb(rec.PublicationData), jsonb(rec.Comments), jsonb(rec.Revisions),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: chapter %d of book %s", ErrAlreadyExists, rec.ChapterNumber, rec.BookID)
		}

		return fmt.Errorf("failed to insert chapter: %w", err)
	}

	return nil
}

// Get returns the chapter with id or chapters.ErrNotFound.
func (s *ChapterStore) Get(ctx context.Context, id string) (*chapters.Record, error) {
	rec, err := scanChapter(s.conn.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chapters.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}

	return rec, nil
}

// List returns chapters matching filter in book and chapter order.
func (s *ChapterStore) List(ctx context.Context, filter chapters.Filter) ([]*chapters.Record, error) {
	var where whereClause

	where.addIf(filter.BookID, "book_id = ?")
	where.addIf(filter.Status, "status = ?")
	where.addIf(filter.AuthorID, "author_id = ?")

	query := `SELECT ` + chapterColumns + ` FROM chapters` + where.String() +
		` ORDER BY book_id, chapter_number` + where.page(filter.Limit, filter.Offset)

	rows, err := s.conn.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	records := []*chapters.Record{}

	for rows.Next() {
		rec, err := scanChapter(rows)
		if err != nil {
			s.logger.Error("failed to scan chapter", slog.String("error", err.Error()))

			continue
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chapters: %w", err)
	}

	return records, nil
}

// Update applies changes and returns the updated row.
func (s *ChapterStore) Update(ctx context.Context, id string, changes chapters.Changes) (*chapters.Record, error) {
	query, args, err := buildUpdate("chapters", chapters.UpdatableColumns, changes, id, chapterColumns)
	if err != nil {
		return nil, err
	}

	rec, err := scanChapter(s.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chapters.ErrNotFound
	}

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: chapter number already used in book", ErrAlreadyExists)
		}

		return nil, fmt.Errorf("failed to update chapter: %w", err)
	}

	return rec, nil
}

// Delete removes the chapter with id.
func (s *ChapterStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM chapters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chapter: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return chapters.ErrNotFound
	}

	return nil
}

func scanChapter(row scanner) (*chapters.Record, error) {
	var rec chapters.Record

	err := row.Scan(
		&rec.ID, &rec.BookID, &rec.Title, &rec.Subtitle, &rec.ChapterNumber, &rec.Content,
		&rec.Summary, &rec.Status, &rec.AuthorID, &rec.Version, &rec.WordCount,
		&rec.Keywords, &rec.Metadata, &rec.CollaborationData, &rec.VersionHistory,
		&rec.PublicationData, &rec.Comments, &rec.Revisions, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}
