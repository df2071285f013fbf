package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Save(snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot.Items)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO snapshots (cache_key, payload, stored_at)
		VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = excluded.payload,
			stored_at = excluded.stored_at
	`, snapshot.Key, string(payload), snapshot.StoredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// Load returns the snapshot stored under key if it is younger than maxAge,
// or nil when there is none.
func (r *SnapshotRepo) Load(key string, maxAge time.Duration, now time.Time) (*Snapshot, error) {
	var payload string
	var storedAt int64

	err := r.db.QueryRow(`
		SELECT payload, stored_at FROM snapshots WHERE cache_key = ?
	`, key).Scan(&payload, &storedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	stored := time.UnixMilli(storedAt)
	if now.Sub(stored) >= maxAge {
		return nil, nil
	}

	var items []SnapshotItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &Snapshot{Key: key, Items: items, StoredAt: stored}, nil
}

func (r *SnapshotRepo) DeleteExpired(maxAge time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-maxAge).UnixMilli()

	result, err := r.db.Exec(`DELETE FROM snapshots WHERE stored_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired snapshots: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted snapshots: %w", err)
	}

	return deleted, nil
}
