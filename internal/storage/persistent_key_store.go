package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

const (
	keyCreated = "created"
	keyUpdated = "updated"
	keyDeleted = "deleted"

	serviceKeyColumns = `id, key_hash, masked_key, owner_id, name, role, tier, created_at, expires_at, active`
)

var _ ServiceKeyStore = (*PersistentKeyStore)(nil)

// PersistentKeyStore implements ServiceKeyStore on the service_keys table. Keys are
// stored as bcrypt hashes next to their masked form, which narrows lookups to a
// handful of candidate rows before any hash comparison.
type PersistentKeyStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPersistentKeyStore returns a store on conn.
func NewPersistentKeyStore(conn *Connection, logger *slog.Logger) (*PersistentKeyStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PersistentKeyStore{conn: conn, logger: logger}, nil
}

// FindByKey returns the active key matching key, with Key set to its masked form.
func (s *PersistentKeyStore) FindByKey(ctx context.Context, key string) (*ServiceKey, bool) {
	if key == "" {
		return nil, false
	}

	query := `SELECT ` + serviceKeyColumns + ` FROM service_keys WHERE active = TRUE AND masked_key = $1`

	rows, err := s.conn.QueryContext(ctx, query, MaskKey(key))
	if err != nil {
		s.logger.Error("failed to query service keys", slog.String("error", err.Error()))

		return nil, false
	}

	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		serviceKey, hash, err := scanServiceKey(rows)
		if err != nil {
			continue
		}

		if CompareKeyHash(hash, key) {
			return serviceKey, true
		}
	}

	if err := rows.Err(); err != nil {
		s.logger.Error("failed to find service key",
			slog.String("key", MaskKey(key)),
			slog.String("error", err.Error()))
	}

	return nil, false
}

// Add hashes and inserts serviceKey, then writes an audit entry.
func (s *PersistentKeyStore) Add(ctx context.Context, serviceKey *ServiceKey) error {
	if serviceKey == nil { // pragma: allowlist secret
		return ErrKeyNil
	}

	// bcrypt salts every hash, so duplicates are found by comparison
	if _, found := s.FindByKey(ctx, serviceKey.Key); found {
		return ErrKeyAlreadyExists
	}

	keyHash, err := HashKey(serviceKey.Key)
	if err != nil {
		return err
	}

	query := `INSERT INTO service_keys (` + serviceKeyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.conn.ExecContext(ctx, query,
		serviceKey.ID,
		keyHash,
		MaskKey(serviceKey.Key),
		serviceKey.OwnerID,
		serviceKey.Name,
		serviceKey.Role,
		serviceKey.Tier,
		serviceKey.CreatedAt,
		serviceKey.ExpiresAt,
		serviceKey.Active,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrKeyAlreadyExists
		}

		return fmt.Errorf("failed to insert service key: %w", err)
	}

	s.audit(ctx, keyCreated, serviceKey.ID, MaskKey(serviceKey.Key), serviceKey.OwnerID, map[string]any{
		"role": serviceKey.Role,
		"tier": serviceKey.Tier,
	})

	return nil
}

// Update changes name, role, tier, active and expiry. The hash is immutable.
func (s *PersistentKeyStore) Update(ctx context.Context, serviceKey *ServiceKey) error {
	if serviceKey == nil { // pragma: allowlist secret
		return ErrKeyNil
	}

	if serviceKey.ID == "" {
		return ErrKeyNotFound
	}

	query := `
		UPDATE service_keys
		SET name = $1, role = $2, tier = $3, active = $4, expires_at = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING masked_key, owner_id
	`

	var maskedKey, ownerID string

	err := s.conn.QueryRowContext(ctx, query,
		serviceKey.Name,
		serviceKey.Role,
		serviceKey.Tier,
		serviceKey.Active,
		serviceKey.ExpiresAt,
		serviceKey.ID,
	).Scan(&maskedKey, &ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrKeyNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to update service key: %w", err)
	}

	s.audit(ctx, keyUpdated, serviceKey.ID, maskedKey, ownerID, map[string]any{
		"role":   serviceKey.Role,
		"tier":   serviceKey.Tier,
		"active": serviceKey.Active,
	})

	return nil
}

// Delete soft-deletes the key so the audit trail keeps its row.
func (s *PersistentKeyStore) Delete(ctx context.Context, keyID string) error {
	if keyID == "" {
		return ErrKeyNotFound
	}

	query := `
		UPDATE service_keys
		SET active = FALSE, updated_at = NOW()
		WHERE id = $1
		RETURNING masked_key, owner_id
	`

	var maskedKey, ownerID string

	err := s.conn.QueryRowContext(ctx, query, keyID).Scan(&maskedKey, &ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrKeyNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to delete service key: %w", err)
	}

	s.audit(ctx, keyDeleted, keyID, maskedKey, ownerID, nil)

	return nil
}

// ListByOwner returns ownerID's active keys, newest first.
func (s *PersistentKeyStore) ListByOwner(ctx context.Context, ownerID string) ([]*ServiceKey, error) {
	if ownerID == "" {
		return nil, ErrOwnerIDEmpty
	}

	query := `SELECT ` + serviceKeyColumns + ` FROM service_keys
		WHERE owner_id = $1 AND active = TRUE
		ORDER BY created_at DESC, id`

	rows, err := s.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query service keys: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	keys := []*ServiceKey{}

	for rows.Next() {
		serviceKey, _, err := scanServiceKey(rows)
		if err != nil {
			continue
		}

		keys = append(keys, serviceKey)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return keys, nil
}

// scanServiceKey returns the row with Key set to the masked form, plus the hash.
func scanServiceKey(row scanner) (*ServiceKey, string, error) {
	var (
		serviceKey ServiceKey
		hash       string
	)

	err := row.Scan(
		&serviceKey.ID,
		&hash,
		&serviceKey.Key,
		&serviceKey.OwnerID,
		&serviceKey.Name,
		&serviceKey.Role,
		&serviceKey.Tier,
		&serviceKey.CreatedAt,
		&serviceKey.ExpiresAt,
		&serviceKey.Active,
	)
	if err != nil {
		return nil, "", err
	}

	return &serviceKey, hash, nil
}

// audit writes a service_key_audit_log row. Failures are logged, not returned.
func (s *PersistentKeyStore) audit(
	ctx context.Context,
	operation, keyID, maskedKey, ownerID string,
	metadata map[string]any,
) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	metadataJSON, err := json.Marshal(metadata)
	if err == nil {
		_, err = s.conn.ExecContext(ctx, `
			INSERT INTO service_key_audit_log (service_key_id, operation, masked_key, owner_id, metadata)
			VALUES ($1, $2, $3, $4, $5)
		`, keyID, operation, maskedKey, ownerID, string(metadataJSON))
	}

	if err != nil {
		s.logger.Error(
			"failed to write an audit log entry for service key operation",
			slog.String("operation", operation),
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
	}
}
