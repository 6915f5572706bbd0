package overflow

import (
	"encoding/binary"
	"time"

	"notebook-api/internal/cache"

	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps spilled entries in a single bbolt bucket, independent of
// the application database.
//
// Record layout: 8 bytes big endian expiresAt (unix seconds) || payload.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBolt initializes or opens a BoltStore at the given path. An empty
// bucket name selects the default bucket.
func OpenBolt(path, bucket string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	name := []byte("overflow")
	if bucket != "" {
		name = []byte(bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db, bucket: name}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores the record with its absolute expiry prefix.
func (s *BoltStore) Put(key string, value []byte, expiresAt time.Time) error {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt.Unix()))
	copy(buf[8:], value)

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

// Get returns the record unless it is absent or past its absolute expiry.
func (s *BoltStore) Get(key string) ([]byte, time.Time, error) {
	var out []byte
	var expiresAt time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil || len(v) < 8 {
			return cache.ErrNotFound
		}
		exp := int64(binary.BigEndian.Uint64(v[:8]))
		if exp <= time.Now().Unix() {
			return cache.ErrNotFound
		}
		expiresAt = time.Unix(exp, 0)
		out = append([]byte(nil), v[8:]...)
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return out, expiresAt, nil
}

// Delete removes a record if present.
func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// PurgeExpired reclaims all records past their absolute expiry.
func (s *BoltStore) PurgeExpired() error {
	nowUnix := time.Now().Unix()
	return s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) < 8 {
				continue
			}
			if exp := int64(binary.BigEndian.Uint64(v[:8])); exp <= nowUnix {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

var _ cache.DurableStore = (*BoltStore)(nil)
