package database

import (
	"time"
)

type SnapshotRepository interface {
	Save(snapshot Snapshot) error
	Load(key string, maxAge time.Duration, now time.Time) (*Snapshot, error)
	DeleteExpired(maxAge time.Duration, now time.Time) (int64, error)
}

var _ SnapshotRepository = (*SnapshotRepo)(nil)
