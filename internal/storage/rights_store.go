package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/hardbanrecords/hardban-lab/internal/rights"
)

const rightsColumns = `id, release_id, book_id, right_type, territory, language, exclusive, status,
	start_date, end_date, licensee_name, licensee_email, licensee_company, royalty_rate,
	advance_amount, minimum_guarantee, currency, revenue_generated, notes, created_by,
	contract_data, compliance_data, workflow_data, publication_data, transactions,
	created_at, updated_at`

var _ rights.Store = (*RightsStore)(nil)

// RightsStore implements rights.Store on the rights table.
type RightsStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewRightsStore returns a RightsStore on conn.
func NewRightsStore(conn *Connection, logger *slog.Logger) (*RightsStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &RightsStore{conn: conn, logger: logger}, nil
}

// Create inserts rec. A duplicate id returns ErrAlreadyExists.
func (s *RightsStore) Create(ctx context.Context, rec *rights.Record) error {
	query := `INSERT INTO rights (` + rightsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27)`

	_, err := s.conn.ExecContext(ctx, query,
		rec.ID, rec.ReleaseID, rec.BookID, rec.RightType, rec.Territory, rec.Language,
		rec.Exclusive, rec.Status, rec.StartDate, rec.EndDate, rec.LicenseeName, rec.LicenseeEmail,
		rec.LicenseeCompany, rec.RoyaltyRate, rec.AdvanceAmount, rec.MinimumGuarantee, rec.Currency,
		rec.RevenueGenerated, rec.Notes, rec.CreatedBy,
		jsonb(rec.ContractData), jsonb(rec.ComplianceData), jsonb(rec.WorkflowData),
		jsonb(rec.PublicationData), jsonb(rec.Transactions),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: right %s", ErrAlreadyExists, rec.ID)
		}

		return fmt.Errorf("failed to insert right: %w", err)
	}

	return nil
}

// Get returns the right with id or rights.ErrNotFound.
func (s *RightsStore) Get(ctx context.Context, id string) (*rights.Record, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+rightsColumns+` FROM rights WHERE id = $1`, id)

	rec, err := scanRight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rights.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get right: %w", err)
	}

	return rec, nil
}

// List returns rights matching filter, newest first.
func (s *RightsStore) List(ctx context.Context, filter rights.Filter) ([]*rights.Record, error) {
	var where whereClause

	if len(filter.IDs) > 0 {
		where.add("id = ANY(?)", pq.Array(filter.IDs))
	}

	where.addIf(filter.ReleaseID, "release_id = ?")
	where.addIf(filter.BookID, "book_id = ?")
	where.addIf(filter.RightType, "right_type = ?")
	where.addIf(filter.Territory, "territory = ?")
	where.addIf(filter.Status, "status = ?")

	query := `SELECT ` + rightsColumns + ` FROM rights` + where.String() +
		` ORDER BY created_at DESC, id` + where.page(filter.Limit, filter.Offset)

	rows, err := s.conn.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rights: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	records := []*rights.Record{}

	for rows.Next() {
		rec, err := scanRight(rows)
		if err != nil {
			s.logger.Error("failed to scan right", slog.String("error", err.Error()))

			continue
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rights: %w", err)
	}

	return records, nil
}

// Update applies changes and returns the updated row.
func (s *RightsStore) Update(ctx context.Context, id string, changes rights.Changes) (*rights.Record, error) {
	query, args, err := buildUpdate("rights", rights.UpdatableColumns, changes, id, rightsColumns)
	if err != nil {
		return nil, err
	}

	rec, err := scanRight(s.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rights.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to update right: %w", err)
	}

	return rec, nil
}

// Delete removes the right with id.
func (s *RightsStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM rights WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete right: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return rights.ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRight(row scanner) (*rights.Record, error) {
	var rec rights.Record

	err := row.Scan(
		&rec.ID, &rec.ReleaseID, &rec.BookID, &rec.RightType, &rec.Territory, &rec.Language,
		&rec.Exclusive, &rec.Status, &rec.StartDate, &rec.EndDate, &rec.LicenseeName,
		&rec.LicenseeEmail, &rec.LicenseeCompany, &rec.RoyaltyRate, &rec.AdvanceAmount,
		&rec.MinimumGuarantee, &rec.Currency, &rec.RevenueGenerated, &rec.Notes, &rec.CreatedBy,
		&rec.ContractData, &rec.ComplianceData, &rec.WorkflowData, &rec.PublicationData,
		&rec.Transactions, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}
