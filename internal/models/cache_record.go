package models

// CacheRecord is a cache entry spilled to the database until its absolute
// expiry. ExpiresAt is unix seconds.
type CacheRecord struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte `gorm:"not null"`
	ExpiresAt int64  `gorm:"column:expires_at;index"`
}

// TableName specifies the table name for CacheRecord Model
func (CacheRecord) TableName() string {
	return "cache_records"
}
