package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timestampLayout has a fixed width so that text ordering matches time
	// ordering.
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

// SQLiteRepository implements Repository on the characteristic_history
// table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one history row.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.AccessoryID == "" {
		return ErrAccessoryRequired
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	valueJSON, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO characteristic_history
		 (accessory_id, service, characteristic, value, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.AccessoryID,
		e.Service,
		e.Characteristic,
		string(valueJSON),
		e.Source,
		e.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting characteristic history: %w", err)
	}
	return nil
}

// GetHistory returns recent entries for an accessory, newest first.
func (r *SQLiteRepository) GetHistory(ctx context.Context, accessoryID, characteristic string, limit int) ([]Entry, error) {
	if accessoryID == "" {
		return nil, ErrAccessoryRequired
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query := `SELECT id, accessory_id, service, characteristic, value, source, created_at
		 FROM characteristic_history
		 WHERE accessory_id = ?`
	args := []any{accessoryID}
	if characteristic != "" {
		query += " AND characteristic = ?"
		args = append(args, characteristic)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying characteristic history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var valueJSON, createdAt string

		if err := rows.Scan(&e.ID, &e.AccessoryID, &e.Service, &e.Characteristic, &valueJSON, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning characteristic history: %w", err)
		}
		if err := json.Unmarshal([]byte(valueJSON), &e.Value); err != nil {
			return nil, fmt.Errorf("unmarshalling value: %w", err)
		}
		e.CreatedAt, err = parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating characteristic history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than the given duration.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timestampLayout)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM characteristic_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting characteristic history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return ts.UTC(), nil
}
