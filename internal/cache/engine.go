package cache

import (
	"container/list"
	"errors"
	"log"
	"sync"
	"time"
)

// Engine is a bounded in-memory cache combining LRU and TTL eviction under a
// hard byte budget. A map gives O(1) key lookup and a doubly-linked list
// keeps recency order: front = most recently touched, back = eviction
// candidate.
//
// Expiry is lazy: a sweep runs at the start of reading and mutating
// operations rather than on a background timer. Entries carrying an absolute
// keep-until instant are spilled to the optional DurableStore instead of
// being discarded, and promoted back on a lookup miss.
type Engine[V any] struct {
	// If muPtr is nil, the engine is NOT goroutine-safe. If non-nil, it is
	// the single mutual-exclusion boundary for this instance.
	muPtr *sync.Mutex

	cfg     Config
	codec   Codec[V]
	durable DurableStore
	onEvict func(key string, reason EvictReason)

	items map[string]*list.Element
	lru   *list.List
	size  int64 // running sum of entry sizes, maintained incrementally

	lastDurablePurge time.Time

	rejectedOversize  uint64
	expiredSwept      uint64
	evictedOverBudget uint64
	spilled           uint64
	promoted          uint64
}

// entry is the unit of storage. It keeps its own key so tail eviction can
// delete from the index without a reverse lookup, and its encoded form so a
// spill does not re-serialize.
type entry[V any] struct {
	key        string
	value      V
	encoded    []byte
	size       int64
	insertedAt time.Time
	expiresAt  time.Time
	keepUntil  time.Time // zero means discard outright on expiry
}

// EvictReason classifies why an entry left the in-memory tier.
type EvictReason string

const (
	EvictExpired    EvictReason = "expired"
	EvictOverBudget EvictReason = "over_budget"
)

// Config controls admission and eviction. Zero fields mean "keep the current
// value" when passed to Configure, and "use the package default" at New.
type Config struct {
	// MaxItemSize is the per-entry admission ceiling in bytes. Items whose
	// encoded size exceeds it are dropped without error (see Stats).
	MaxItemSize int64

	// MaxTotalSize is the global byte budget. When exceeded, entries are
	// evicted from the least-recently-used end until the budget holds.
	MaxTotalSize int64

	// DefaultTTL applies when Set is called with ttl <= 0.
	DefaultTTL time.Duration
}

// Options controls construction of an Engine.
type Options[V any] struct {
	// ConcurrencySafe guards all operations with a mutex. Leave false only
	// for single-goroutine use.
	ConcurrencySafe bool

	// Codec encodes values for size accounting and durable spill.
	// Defaults to JSONCodec.
	Codec Codec[V]

	// Durable receives expiring entries that still carry a future keep-until
	// instant. Nil disables the overflow tier.
	Durable DurableStore

	// OnEvict, if set, is called for every expiry or budget eviction. It
	// runs with the engine lock held and must not call back into the engine.
	OnEvict func(key string, reason EvictReason)
}

const (
	DefaultMaxItemSize  = 1 << 20  // 1 MiB
	DefaultMaxTotalSize = 32 << 20 // 32 MiB
	DefaultTTL          = 5 * time.Minute

	// durablePurgeEvery throttles the opportunistic purge of the overflow
	// store so a hot cache does not hammer it on every sweep.
	durablePurgeEvery = time.Minute
)

// now is a small indirection to allow test stubbing.
var now = time.Now

// New constructs an Engine. Zero cfg fields take package defaults.
func New[V any](cfg Config, opts Options[V]) *Engine[V] {
	e := &Engine[V]{
		cfg: Config{
			MaxItemSize:  DefaultMaxItemSize,
			MaxTotalSize: DefaultMaxTotalSize,
			DefaultTTL:   DefaultTTL,
		},
		codec:   opts.Codec,
		durable: opts.Durable,
		onEvict: opts.OnEvict,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
	if opts.ConcurrencySafe {
		e.muPtr = &sync.Mutex{}
	}
	if e.codec == nil {
		e.codec = JSONCodec[V]{}
	}
	e.Configure(cfg)
	return e
}

func (e *Engine[V]) lock() func() {
	if e.muPtr == nil {
		return func() {}
	}
	e.muPtr.Lock()
	return e.muPtr.Unlock
}

// Configure applies a partial configuration update and returns the effective
// configuration. Zero fields retain their prior values. Existing entries are
// not retroactively evicted; the normal sweep and budget passes of subsequent
// operations pick up the new limits.
func (e *Engine[V]) Configure(cfg Config) Config {
	unlock := e.lock()
	defer unlock()

	if cfg.MaxItemSize > 0 {
		e.cfg.MaxItemSize = cfg.MaxItemSize
	}
	if cfg.MaxTotalSize > 0 {
		e.cfg.MaxTotalSize = cfg.MaxTotalSize
	}
	if cfg.DefaultTTL > 0 {
		e.cfg.DefaultTTL = cfg.DefaultTTL
	}
	// The per-item ceiling can never exceed the global budget.
	if e.cfg.MaxItemSize > e.cfg.MaxTotalSize {
		e.cfg.MaxItemSize = e.cfg.MaxTotalSize
	}
	return e.cfg
}

// Set implements Cache.Set.
func (e *Engine[V]) Set(key string, value V, ttl time.Duration) {
	e.set(key, value, ttl, time.Time{})
}

// SetUntil implements Cache.SetUntil. The keepUntil instant gates durable
// overflow only; the in-memory lifetime is still governed by ttl.
func (e *Engine[V]) SetUntil(key string, value V, ttl time.Duration, keepUntil time.Time) {
	e.set(key, value, ttl, keepUntil)
}

func (e *Engine[V]) set(key string, value V, ttl time.Duration, keepUntil time.Time) {
	unlock := e.lock()
	defer unlock()

	nowTs := now()
	e.sweepLocked(nowTs)
	e.evictOverBudgetLocked()

	encoded, err := e.codec.Encode(value)
	if err != nil {
		log.Printf("cache: encode %q: %v", key, err)
		return
	}
	size := int64(len(encoded))
	if size > e.cfg.MaxItemSize {
		// Dropped without signal to the caller; only the counter records it.
		e.rejectedOversize++
		return
	}

	if el, ok := e.items[key]; ok {
		e.removeElementLocked(el)
	}
	if ttl <= 0 {
		ttl = e.cfg.DefaultTTL
	}
	ent := &entry[V]{
		key:        key,
		value:      value,
		encoded:    encoded,
		size:       size,
		insertedAt: nowTs,
		expiresAt:  nowTs.Add(ttl),
		keepUntil:  keepUntil,
	}
	e.items[key] = e.lru.PushFront(ent)
	e.size += size

	e.evictOverBudgetLocked()
}

// Get implements Cache.Get. On an in-memory miss it consults the durable
// overflow tier and promotes a surviving record to the head of the recency
// order. Promotion does not trigger a budget pass; the next mutating
// operation settles any overshoot.
func (e *Engine[V]) Get(key string) (V, bool) {
	unlock := e.lock()
	defer unlock()

	nowTs := now()
	e.sweepLocked(nowTs)

	var zero V
	if el, ok := e.items[key]; ok {
		e.lru.MoveToFront(el)
		return el.Value.(*entry[V]).value, true
	}
	if e.durable == nil {
		return zero, false
	}

	encoded, keepUntil, err := e.durable.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("cache: durable get %q: %v", key, err)
		}
		return zero, false
	}
	value, err := e.codec.Decode(encoded)
	if err != nil {
		log.Printf("cache: decode durable record %q: %v", key, err)
		return zero, false
	}
	e.promoted++

	size := int64(len(encoded))
	if size > e.cfg.MaxItemSize {
		// The record no longer fits the in-memory tier; serve it without
		// re-admitting.
		return value, true
	}
	ent := &entry[V]{
		key:        key,
		value:      value,
		encoded:    encoded,
		size:       size,
		insertedAt: nowTs,
		expiresAt:  nowTs.Add(e.cfg.DefaultTTL),
		keepUntil:  keepUntil,
	}
	e.items[key] = e.lru.PushFront(ent)
	e.size += size
	return value, true
}

// GetMeta implements Cache.GetMeta. Unlike Get it never refreshes recency
// and never consults the durable tier.
func (e *Engine[V]) GetMeta(key string) (Meta, bool) {
	unlock := e.lock()
	defer unlock()

	e.sweepLocked(now())

	el, ok := e.items[key]
	if !ok {
		return Meta{}, false
	}
	ent := el.Value.(*entry[V])
	return Meta{
		InsertedAt: ent.insertedAt,
		ExpiresAt:  ent.expiresAt,
		SizeBytes:  ent.size,
	}, true
}

// Remove implements Cache.Remove. The durable record, if any, is deleted
// even when the key is no longer held in memory.
func (e *Engine[V]) Remove(key string) {
	unlock := e.lock()
	defer unlock()

	e.sweepLocked(now())

	if el, ok := e.items[key]; ok {
		e.removeElementLocked(el)
	}
	if e.durable != nil {
		if err := e.durable.Delete(key); err != nil {
			log.Printf("cache: durable delete %q: %v", key, err)
		}
	}
}

// Clear implements Cache.Clear. Durable records keep their own, possibly
// longer, absolute lifetime and are deliberately left in place.
func (e *Engine[V]) Clear() {
	unlock := e.lock()
	defer unlock()

	e.items = make(map[string]*list.Element)
	e.lru.Init()
	e.size = 0
}

// Size implements Cache.Size. It has no side effects, so the reported total
// may include entries that are logically expired but not yet swept.
func (e *Engine[V]) Size() int64 {
	unlock := e.lock()
	defer unlock()
	return e.size
}

// Len implements Cache.Len.
func (e *Engine[V]) Len() int {
	unlock := e.lock()
	defer unlock()
	return len(e.items)
}

// Stats returns a snapshot of the engine counters.
func (e *Engine[V]) Stats() Stats {
	unlock := e.lock()
	defer unlock()
	return Stats{
		Entries:           len(e.items),
		SizeBytes:         e.size,
		RejectedOversize:  e.rejectedOversize,
		ExpiredSwept:      e.expiredSwept,
		EvictedOverBudget: e.evictedOverBudget,
		Spilled:           e.spilled,
		Promoted:          e.promoted,
	}
}

// sweepLocked removes every expired entry. Entries whose keep-until instant
// is still in the future are handed to the durable store first; a failed
// spill is logged and the entry is lost, never surfaced as a cache error.
func (e *Engine[V]) sweepLocked(nowTs time.Time) {
	for _, el := range e.items {
		ent := el.Value.(*entry[V])
		if ent.expiresAt.After(nowTs) {
			continue
		}
		if e.durable != nil && ent.keepUntil.After(nowTs) {
			if err := e.durable.Put(ent.key, ent.encoded, ent.keepUntil); err != nil {
				log.Printf("cache: spill %q: %v", ent.key, err)
			} else {
				e.spilled++
			}
		}
		e.removeElementLocked(el)
		e.expiredSwept++
		if e.onEvict != nil {
			e.onEvict(ent.key, EvictExpired)
		}
	}

	if e.durable != nil && nowTs.Sub(e.lastDurablePurge) >= durablePurgeEvery {
		e.lastDurablePurge = nowTs
		if err := e.durable.PurgeExpired(); err != nil {
			log.Printf("cache: durable purge: %v", err)
		}
	}
}

// evictOverBudgetLocked drops strict least-recently-used entries until the
// byte budget holds.
func (e *Engine[V]) evictOverBudgetLocked() {
	for e.size > e.cfg.MaxTotalSize {
		el := e.lru.Back()
		if el == nil {
			return
		}
		ent := el.Value.(*entry[V])
		e.removeElementLocked(el)
		e.evictedOverBudget++
		if e.onEvict != nil {
			e.onEvict(ent.key, EvictOverBudget)
		}
	}
}

func (e *Engine[V]) removeElementLocked(el *list.Element) {
	ent := el.Value.(*entry[V])
	e.lru.Remove(el)
	delete(e.items, ent.key)
	e.size -= ent.size
}

// Ensure Engine implements Cache at compile time.
var _ Cache[any] = (*Engine[any])(nil)
var _ StatsProvider = (*Engine[any])(nil)
