package cache

import (
	"errors"
	"time"
)

// ErrNotFound is returned by DurableStore implementations when a key is
// absent or its record has passed its absolute expiry.
var ErrNotFound = errors.New("cache: not found")

// DurableStore is the secondary tier that receives expiring entries which
// still carry a future absolute expiry. The engine treats every call as
// best-effort: failures are logged, never propagated as cache errors.
//
// Get must not return logically expired records.
type DurableStore interface {
	Put(key string, value []byte, expiresAt time.Time) error
	Get(key string) (value []byte, expiresAt time.Time, err error)
	Delete(key string) error

	// PurgeExpired reclaims records past their absolute expiry. The engine
	// invokes it opportunistically during its own sweep.
	PurgeExpired() error
}
