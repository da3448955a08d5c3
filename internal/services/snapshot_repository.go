package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/crewflow/crewflow-platform/pkg/database"
	"github.com/crewflow/crewflow-platform/pkg/errors"
)

// SnapshotRepository stores catalog snapshots in the tenant's schema.
// One row per snapshot key, overwritten on each save.
type SnapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates a Postgres-backed snapshot store
func NewSnapshotRepository(db *database.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type snapshotRow struct {
	ID      string          `db:"id"`
	Key     string          `db:"snapshot_key"`
	Payload json.RawMessage `db:"payload"`
	Source  string          `db:"source"`
	SavedAt time.Time       `db:"saved_at"`
}

// Save upserts the snapshot under key
func (r *SnapshotRepository) Save(ctx context.Context, key string, payload json.RawMessage) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO product_snapshots (snapshot_key, payload, source, saved_at)
			VALUES ($1, $2, 'network', NOW())
			ON CONFLICT (snapshot_key)
			DO UPDATE SET payload = EXCLUDED.payload, saved_at = NOW()
		`, key, []byte(payload))
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// Load returns the snapshot stored under key, or a not-found error
func (r *SnapshotRepository) Load(ctx context.Context, key string) (json.RawMessage, error) {
	var row snapshotRow
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &row, `
			SELECT id, snapshot_key, payload, source, saved_at
			FROM product_snapshots
			WHERE snapshot_key = $1
		`, key)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("snapshot")
		}
		return nil, err
	}
	return row.Payload, nil
}

// SavedAt returns when the snapshot under key was last written
func (r *SnapshotRepository) SavedAt(ctx context.Context, key string) (time.Time, error) {
	var savedAt time.Time
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &savedAt, `
			SELECT saved_at FROM product_snapshots WHERE snapshot_key = $1
		`, key)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, errors.NotFound("snapshot")
		}
		return time.Time{}, err
	}
	return savedAt, nil
}
