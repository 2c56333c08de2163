package retry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
)

// PostgresStore persists error records in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens a connection pool against the given URL.
func NewPostgresStore(databaseURL string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection pool.
func NewPostgresStoreWithDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type errorRecordRow struct {
	ID         string         `db:"id"`
	Kind       string         `db:"kind"`
	Severity   string         `db:"severity"`
	SubjectID  string         `db:"subject_id"`
	OwnerID    string         `db:"owner_id"`
	Message    string         `db:"message"`
	Detail     []byte         `db:"detail"`
	MaxRetries int            `db:"max_retries"`
	CreatedAt  time.Time      `db:"created_at"`
	ResolvedAt sql.NullTime   `db:"resolved_at"`
}

// Save inserts an error record.
func (s *PostgresStore) Save(ctx context.Context, record *errors.ManagedError) error {
	detail, err := json.Marshal(record.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal error detail: %w", err)
	}

	query := `
		INSERT INTO managed_errors (id, kind, severity, subject_id, owner_id, message, detail, max_retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		string(record.Kind),
		string(record.Severity),
		record.SubjectID,
		record.OwnerID,
		record.Message,
		detail,
		record.MaxRetries,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert error record: %w", err)
	}
	return nil
}

// MarkResolved stamps the record's resolution time. Already-resolved
// records keep their original stamp.
func (s *PostgresStore) MarkResolved(ctx context.Context, errorID string, at time.Time) error {
	query := `UPDATE managed_errors SET resolved_at = $2 WHERE id = $1 AND resolved_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, errorID, at)
	if err != nil {
		return fmt.Errorf("failed to mark error resolved: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		// Either unknown ID or already resolved; check existence.
		var exists bool
		if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM managed_errors WHERE id = $1)`, errorID); err != nil {
			return fmt.Errorf("failed to check error record: %w", err)
		}
		if !exists {
			return fmt.Errorf("error record %s not found", errorID)
		}
	}
	return nil
}

// ListByOwner returns records for the owner created within [since, until].
func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string, since, until time.Time) ([]*errors.ManagedError, error) {
	query := `
		SELECT id, kind, severity, subject_id, owner_id, message, detail, max_retries, created_at, resolved_at
		FROM managed_errors
		WHERE owner_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC`

	var rows []errorRecordRow
	if err := s.db.SelectContext(ctx, &rows, query, ownerID, since, until); err != nil {
		return nil, fmt.Errorf("failed to list error records: %w", err)
	}

	out := make([]*errors.ManagedError, 0, len(rows))
	for _, row := range rows {
		record := &errors.ManagedError{
			ID:         row.ID,
			Kind:       errors.Kind(row.Kind),
			Severity:   errors.Severity(row.Severity),
			SubjectID:  row.SubjectID,
			OwnerID:    row.OwnerID,
			Message:    row.Message,
			MaxRetries: row.MaxRetries,
			CreatedAt:  row.CreatedAt,
		}
		if len(row.Detail) > 0 {
			if err := json.Unmarshal(row.Detail, &record.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal error detail: %w", err)
			}
		}
		if row.ResolvedAt.Valid {
			resolvedAt := row.ResolvedAt.Time
			record.ResolvedAt = &resolvedAt
		}
		out = append(out, record)
	}
	return out, nil
}
