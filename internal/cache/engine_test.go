package cache

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// payload serializes to exactly n bytes under JSONCodec (quotes included).
func payload(n int) string {
	return strings.Repeat("x", n-2)
}

func freezeTime(t *testing.T) *time.Time {
	t.Helper()
	base := time.Now()
	now = func() time.Time { return base }
	t.Cleanup(func() { now = time.Now })
	return &base
}

func TestSetGet_DefaultTTL(t *testing.T) {
	e := New[string](Config{}, Options[string]{})
	e.Set("a", "hello", 0)
	if v, ok := e.Get("a"); !ok || v != "hello" {
		t.Fatalf("expected hit with value hello, got ok=%v v=%q", ok, v)
	}
	if e.Len() != 1 {
		t.Fatalf("expected Len=1, got %d", e.Len())
	}
	if e.Size() != int64(len(`"hello"`)) {
		t.Fatalf("expected Size=%d, got %d", len(`"hello"`), e.Size())
	}
}

func TestTTLExpiry(t *testing.T) {
	base := freezeTime(t)

	e := New[string](Config{}, Options[string]{})
	e.Set("x", "v", time.Second)
	if _, ok := e.Get("x"); !ok {
		t.Fatalf("expected hit before expiry")
	}

	*base = base.Add(1500 * time.Millisecond)
	if _, ok := e.Get("x"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if e.Size() != 0 {
		t.Fatalf("expected expired entry excluded from Size, got %d", e.Size())
	}
	if e.Len() != 0 {
		t.Fatalf("expected Len=0 after sweep, got %d", e.Len())
	}
}

func TestBudgetEvictionScenario(t *testing.T) {
	e := New[string](Config{MaxItemSize: 1000, MaxTotalSize: 2500, DefaultTTL: 300 * time.Second}, Options[string]{})

	e.Set("a", payload(1000), 0)
	e.Set("b", payload(1000), 0)
	e.Set("c", payload(1000), 0)

	if e.Size() != 2000 {
		t.Fatalf("expected Size=2000 after eviction, got %d", e.Size())
	}
	if _, ok := e.Get("a"); ok {
		t.Fatalf("expected a (least recently used) to be evicted")
	}
	if _, ok := e.Get("b"); !ok {
		t.Fatalf("expected b to survive")
	}
	if _, ok := e.Get("c"); !ok {
		t.Fatalf("expected c to survive")
	}
}

func TestRecencyBumpOnGet(t *testing.T) {
	e := New[string](Config{MaxItemSize: 1000, MaxTotalSize: 2000}, Options[string]{})

	e.Set("a", payload(1000), 0)
	e.Set("b", payload(1000), 0)

	// Touch a so b becomes the eviction candidate.
	if _, ok := e.Get("a"); !ok {
		t.Fatalf("expected hit on a")
	}
	e.Set("c", payload(1000), 0)

	if _, ok := e.Get("b"); ok {
		t.Fatalf("expected b to be evicted after a was touched")
	}
	if _, ok := e.Get("a"); !ok {
		t.Fatalf("expected a to survive")
	}
}

func TestOverwriteDoesNotDoubleCount(t *testing.T) {
	e := New[string](Config{}, Options[string]{})
	e.Set("k", payload(500), 0)
	e.Set("k", payload(500), 0)
	if e.Size() != 500 {
		t.Fatalf("expected Size=500 after overwrite, got %d", e.Size())
	}
	if e.Len() != 1 {
		t.Fatalf("expected Len=1 after overwrite, got %d", e.Len())
	}

	e.Set("k", payload(200), 0)
	if e.Size() != 200 {
		t.Fatalf("expected Size=200 after shrinking overwrite, got %d", e.Size())
	}
}

func TestOversizedRejectedSilently(t *testing.T) {
	e := New[string](Config{MaxItemSize: 100, MaxTotalSize: 1000}, Options[string]{})
	e.Set("small", payload(50), 0)

	// Observed behavior: dropped without any signal to the caller.
	e.Set("big", payload(500), 0)

	if _, ok := e.Get("big"); ok {
		t.Fatalf("expected oversized item to be absent")
	}
	if e.Size() != 50 {
		t.Fatalf("expected Size unchanged at 50, got %d", e.Size())
	}
	if got := e.Stats().RejectedOversize; got != 1 {
		t.Fatalf("expected RejectedOversize=1, got %d", got)
	}
}

func TestGetMetaDoesNotBumpRecency(t *testing.T) {
	base := freezeTime(t)

	e := New[string](Config{MaxItemSize: 1000, MaxTotalSize: 2000, DefaultTTL: time.Minute}, Options[string]{})
	e.Set("a", payload(1000), 0)
	e.Set("b", payload(1000), 0)

	meta, ok := e.GetMeta("a")
	if !ok {
		t.Fatalf("expected meta for a")
	}
	if !meta.InsertedAt.Equal(*base) {
		t.Fatalf("expected InsertedAt=%v, got %v", *base, meta.InsertedAt)
	}
	if !meta.ExpiresAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected ExpiresAt=%v, got %v", base.Add(time.Minute), meta.ExpiresAt)
	}
	if meta.SizeBytes != 1000 {
		t.Fatalf("expected SizeBytes=1000, got %d", meta.SizeBytes)
	}

	// a must still be the eviction candidate after GetMeta.
	e.Set("c", payload(1000), 0)
	if _, ok := e.Get("a"); ok {
		t.Fatalf("expected a evicted; GetMeta must not refresh recency")
	}
	if _, ok := e.Get("b"); !ok {
		t.Fatalf("expected b to survive")
	}
}

func TestClearResetsSizeButKeepsDurable(t *testing.T) {
	base := freezeTime(t)
	durable := newFakeDurable()

	e := New[string](Config{DefaultTTL: time.Minute}, Options[string]{Durable: durable})
	e.SetUntil("keep", "v", time.Second, base.Add(time.Hour))

	*base = base.Add(2 * time.Second)
	e.Set("other", "w", 0) // sweep spills "keep"

	e.Clear()
	if e.Size() != 0 || e.Len() != 0 {
		t.Fatalf("expected empty engine after Clear, got Size=%d Len=%d", e.Size(), e.Len())
	}
	if _, ok := durable.records["keep"]; !ok {
		t.Fatalf("expected durable record to survive Clear")
	}
}

func TestConfigurePartialUpdate(t *testing.T) {
	e := New[string](Config{MaxItemSize: 100, MaxTotalSize: 1000, DefaultTTL: time.Minute}, Options[string]{})

	got := e.Configure(Config{MaxTotalSize: 2000})
	want := Config{MaxItemSize: 100, MaxTotalSize: 2000, DefaultTTL: time.Minute}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	// The per-item ceiling is clamped to the global budget.
	got = e.Configure(Config{MaxItemSize: 5000})
	if got.MaxItemSize != 2000 {
		t.Fatalf("expected MaxItemSize clamped to 2000, got %d", got.MaxItemSize)
	}

	// Shrinking the budget does not retroactively evict.
	e.Set("a", payload(500), 0)
	e.Configure(Config{MaxTotalSize: 100, MaxItemSize: 100})
	if e.Len() != 1 {
		t.Fatalf("expected existing entry kept after Configure, got Len=%d", e.Len())
	}
	// The next mutating operation settles the budget.
	e.Set("b", payload(50), 0)
	if _, ok := e.Get("a"); ok {
		t.Fatalf("expected a evicted by the next operation's budget pass")
	}
}

func TestSizeInvariant(t *testing.T) {
	e := New[string](Config{MaxItemSize: 1000, MaxTotalSize: 5000}, Options[string]{})

	keys := []string{"a", "b", "c", "d", "e"}
	sizes := []int{100, 900, 400, 1000, 250}
	for i, k := range keys {
		e.Set(k, payload(sizes[i]), 0)
	}
	e.Remove("c")
	e.Set("b", payload(300), 0)

	var sum int64
	for _, k := range keys {
		if meta, ok := e.GetMeta(k); ok {
			sum += meta.SizeBytes
		}
	}
	if e.Size() != sum {
		t.Fatalf("size invariant violated: Size()=%d, sum of live entries=%d", e.Size(), sum)
	}
}

func TestPromotionRoundTrip(t *testing.T) {
	base := freezeTime(t)
	durable := newFakeDurable()

	e := New[string](Config{MaxItemSize: 1000, MaxTotalSize: 2000, DefaultTTL: time.Minute}, Options[string]{Durable: durable})
	e.SetUntil("p", "precious", time.Second, base.Add(time.Hour))

	// Past the relative TTL but well before the absolute expiry.
	*base = base.Add(2 * time.Second)

	// A single Get sweeps (spilling p), misses in memory, and promotes.
	v, ok := e.Get("p")
	if !ok || v != "precious" {
		t.Fatalf("expected promotion to return the original value, got ok=%v v=%q", ok, v)
	}
	if e.Len() != 1 {
		t.Fatalf("expected promoted entry in memory, got Len=%d", e.Len())
	}
	stats := e.Stats()
	if stats.Spilled != 1 || stats.Promoted != 1 {
		t.Fatalf("expected one spill and one promotion, got %+v", stats)
	}

	// A promoted entry participates in recency like a freshly set one.
	e.Set("filler1", payload(1000), 0)
	if _, ok := e.Get("p"); !ok {
		t.Fatalf("expected p still resident")
	}
	e.Set("filler2", payload(1000), 0) // over budget; evicts filler1, not p
	if _, ok := e.Get("p"); !ok {
		t.Fatalf("expected promoted entry retained ahead of filler1")
	}
	if _, ok := e.Get("filler1"); ok {
		t.Fatalf("expected filler1 evicted as least recently used")
	}
}

func TestPromotionPastAbsoluteExpiryIsMiss(t *testing.T) {
	base := freezeTime(t)
	durable := newFakeDurable()

	e := New[string](Config{DefaultTTL: time.Minute}, Options[string]{Durable: durable})
	e.SetUntil("p", "v", time.Second, base.Add(10*time.Second))

	*base = base.Add(2 * time.Second)
	e.Set("other", "w", 0) // sweep spills p

	*base = base.Add(20 * time.Second) // absolute expiry passed
	if _, ok := e.Get("p"); ok {
		t.Fatalf("expected miss once the absolute expiry has passed")
	}
}

func TestExpiredWithoutKeepUntilIsDiscarded(t *testing.T) {
	base := freezeTime(t)
	durable := newFakeDurable()

	e := New[string](Config{}, Options[string]{Durable: durable})
	e.Set("plain", "v", time.Second)

	*base = base.Add(2 * time.Second)
	if _, ok := e.Get("plain"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if len(durable.records) != 0 {
		t.Fatalf("expected no spill for an entry without keep-until, got %d records", len(durable.records))
	}
}

func TestRemoveDeletesDurableRecord(t *testing.T) {
	base := freezeTime(t)
	durable := newFakeDurable()

	e := New[string](Config{}, Options[string]{Durable: durable})
	e.SetUntil("k", "v", time.Second, base.Add(time.Hour))

	*base = base.Add(2 * time.Second)
	e.Set("other", "w", 0) // sweep spills k
	if _, ok := durable.records["k"]; !ok {
		t.Fatalf("expected k spilled to the durable store")
	}

	e.Remove("k")
	if _, ok := durable.records["k"]; ok {
		t.Fatalf("expected Remove to delete the durable record")
	}
	if _, ok := e.Get("k"); ok {
		t.Fatalf("expected miss after Remove")
	}
}

func TestDurableFailuresAreNonFatal(t *testing.T) {
	base := freezeTime(t)
	durable := newFakeDurable()
	durable.failing = true

	e := New[string](Config{}, Options[string]{Durable: durable})
	e.SetUntil("k", "v", time.Second, base.Add(time.Hour))

	*base = base.Add(2 * time.Second)
	e.Set("other", "w", 0) // spill fails; equivalent to plain discard

	if _, ok := e.Get("other"); !ok {
		t.Fatalf("expected the in-memory tier to keep working")
	}
	if _, ok := e.Get("k"); ok {
		t.Fatalf("expected k lost after the failed spill")
	}
	e.Remove("other") // durable delete failure must not propagate
}

func TestPromotionOvershootSettledByNextSet(t *testing.T) {
	base := freezeTime(t)
	durable := newFakeDurable()

	e := New[string](Config{MaxItemSize: 1000, MaxTotalSize: 2000, DefaultTTL: time.Minute}, Options[string]{Durable: durable})
	e.SetUntil("p", payload(1000), time.Second, base.Add(time.Hour))

	*base = base.Add(2 * time.Second)
	e.Set("a", payload(1000), 0) // sweep spills p
	e.Set("b", payload(1000), 0) // budget full at 2000

	// Promotion admits p without a budget pass: momentary overshoot.
	if _, ok := e.Get("p"); !ok {
		t.Fatalf("expected promotion hit")
	}
	if e.Size() != 3000 {
		t.Fatalf("expected momentary overshoot to 3000, got %d", e.Size())
	}

	// The next mutating call settles the budget, evicting from the tail.
	e.Set("c", payload(500), 0)
	if e.Size() > 2000 {
		t.Fatalf("expected budget restored, got Size=%d", e.Size())
	}
	if _, ok := e.Get("p"); !ok {
		t.Fatalf("expected recently promoted p to survive the settle")
	}
}

func TestConcurrencySafeToggle(t *testing.T) {
	keys := 50
	rounds := 100

	c := New[int](Config{}, Options[int]{ConcurrencySafe: true})
	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := strconv.Itoa(i)
			for r := 0; r < rounds; r++ {
				c.Set(key, r, 0)
				_, _ = c.Get(key)
			}
		}()
	}
	wg.Wait()
	for i := 0; i < keys; i++ {
		if _, ok := c.Get(strconv.Itoa(i)); !ok {
			t.Fatalf("expected key %d present after concurrent writes", i)
		}
	}
}

// fakeDurable is an in-memory DurableStore honoring the stubbed clock.
type fakeDurable struct {
	records map[string]fakeRecord
	failing bool
	purges  int
}

type fakeRecord struct {
	value     []byte
	expiresAt time.Time
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{records: make(map[string]fakeRecord)}
}

var errFakeDurable = errors.New("fake durable failure")

func (f *fakeDurable) Put(key string, value []byte, expiresAt time.Time) error {
	if f.failing {
		return errFakeDurable
	}
	f.records[key] = fakeRecord{value: append([]byte(nil), value...), expiresAt: expiresAt}
	return nil
}

func (f *fakeDurable) Get(key string) ([]byte, time.Time, error) {
	if f.failing {
		return nil, time.Time{}, errFakeDurable
	}
	r, ok := f.records[key]
	if !ok || !r.expiresAt.After(now()) {
		return nil, time.Time{}, ErrNotFound
	}
	return r.value, r.expiresAt, nil
}

func (f *fakeDurable) Delete(key string) error {
	if f.failing {
		return errFakeDurable
	}
	delete(f.records, key)
	return nil
}

func (f *fakeDurable) PurgeExpired() error {
	if f.failing {
		return errFakeDurable
	}
	f.purges++
	for k, r := range f.records {
		if !r.expiresAt.After(now()) {
			delete(f.records, k)
		}
	}
	return nil
}

var _ DurableStore = (*fakeDurable)(nil)
