// Package overflow provides the durable secondary stores the cache engine
// spills expiring entries into. Both backends filter out records past their
// absolute expiry on read; physical reclamation happens in PurgeExpired.
package overflow

import (
	"errors"
	"time"

	"notebook-api/internal/cache"
	"notebook-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteStore keeps spilled entries in the cache_records table of the main
// application database.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore wraps an already migrated gorm connection.
func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Put upserts a record keyed by the cache key.
func (s *SQLiteStore) Put(key string, value []byte, expiresAt time.Time) error {
	rec := models.CacheRecord{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt.Unix(),
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// Get returns the record unless it is absent or past its absolute expiry.
func (s *SQLiteStore) Get(key string) ([]byte, time.Time, error) {
	var rec models.CacheRecord
	err := s.db.First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, cache.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	if rec.ExpiresAt <= time.Now().Unix() {
		// Expired records are as good as absent; PurgeExpired reclaims the row.
		return nil, time.Time{}, cache.ErrNotFound
	}
	return rec.Value, time.Unix(rec.ExpiresAt, 0), nil
}

// Delete removes a record if present.
func (s *SQLiteStore) Delete(key string) error {
	return s.db.Delete(&models.CacheRecord{}, "key = ?", key).Error
}

// PurgeExpired reclaims all records past their absolute expiry.
func (s *SQLiteStore) PurgeExpired() error {
	return s.db.Where("expires_at <= ?", time.Now().Unix()).Delete(&models.CacheRecord{}).Error
}

// Ensure SQLiteStore implements the engine contract at compile time.
var _ cache.DurableStore = (*SQLiteStore)(nil)
