package cache

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestPolicy_Retention(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   time.Duration
	}{
		{"zero policy uses default", Policy{}, DefaultCacheTime},
		{"explicit cache time", Policy{CacheTime: time.Hour}, time.Hour},
		{"never shorter than stale time", Policy{StaleTime: 30 * time.Minute}, 30 * time.Minute},
		{"cache time below stale time", Policy{StaleTime: 10 * time.Minute, CacheTime: time.Minute}, 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Retention(); got != tt.want {
				t.Errorf("Retention() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_IsStale(t *testing.T) {
	fetched := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	policy := Policy{StaleTime: 2 * time.Minute}

	tests := []struct {
		name  string
		entry Entry
		at    time.Time
		want  bool
	}{
		{"within stale time", Entry{FetchedAt: fetched}, fetched.Add(time.Minute), false},
		{"at stale time", Entry{FetchedAt: fetched}, fetched.Add(2 * time.Minute), true},
		{"invalidated", Entry{FetchedAt: fetched, Invalidated: true}, fetched, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsStale(policy, tt.at); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	if _, err := store.Get(ctx, "booking:services"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get on empty store: err = %v, want ErrCacheMiss", err)
	}

	fetched := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	entries := map[string]*Entry{
		"booking:services":                             {Data: []byte(`[]`), FetchedAt: fetched},
		"booking:available-slots:date=2024-06-10":      {Data: []byte(`["09:00"]`), FetchedAt: fetched},
		"booking:available-slots:date=2024-06-11":      {Data: []byte(`["10:00"]`), FetchedAt: fetched, Invalidated: true},
		"booking:available-slots-archive:date=2024-01": {Data: []byte(`[]`), FetchedAt: fetched},
	}
	for k, e := range entries {
		if err := store.Set(ctx, k, e, time.Hour); err != nil {
			t.Fatalf("Set(%s) failed: %v", k, err)
		}
	}

	got, err := store.Get(ctx, "booking:available-slots:date=2024-06-11")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != `["10:00"]` || !got.Invalidated || !got.FetchedAt.Equal(fetched) {
		t.Errorf("Get = %+v", got)
	}

	keys, err := store.Keys(ctx, ResourcePrefix("available-slots"))
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	sort.Strings(keys)
	// Keys matches on prefix only; resource membership is filtered by the cache.
	if len(keys) != 3 {
		t.Errorf("Keys = %v, want 3 prefixed keys", keys)
	}

	if err := store.Delete(ctx, "booking:services"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "booking:services"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete: err = %v, want ErrCacheMiss", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	keys, _ = store.Keys(ctx, Namespace+":")
	if len(keys) != 0 {
		t.Errorf("Keys after Clear = %v, want none", keys)
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.Now
	ctx := context.Background()

	store.Set(ctx, "booking:user", &Entry{Data: []byte(`{}`)}, time.Minute)
	clock.Advance(59 * time.Second)
	if _, err := store.Get(ctx, "booking:user"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := store.Get(ctx, "booking:user"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after expiry: err = %v, want ErrCacheMiss", err)
	}
	if store.Len() != 0 {
		t.Errorf("expired item should be removed, Len = %d", store.Len())
	}
}

func TestMemoryStore_CopiesData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte(`"a"`)
	store.Set(ctx, "booking:user", &Entry{Data: data}, 0)
	data[1] = 'b'

	got, _ := store.Get(ctx, "booking:user")
	if string(got.Data) != `"a"` {
		t.Errorf("stored data changed with caller slice: %q", got.Data)
	}
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	_, client := newMiniRedis(t)
	storeContract(t, NewRedisStore(client))
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	if err := store.Set(ctx, "booking:services", &Entry{Data: []byte(`[]`)}, 30*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ttl := mr.TTL("booking:services"); ttl != 30*time.Minute {
		t.Errorf("TTL = %v, want 30m", ttl)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := store.Get(ctx, "booking:services"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after TTL: err = %v, want ErrCacheMiss", err)
	}
}

func TestRedisStore_CorruptedEntry(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisStore(client)

	mr.Set("booking:user", "not json")

	_, err := store.Get(context.Background(), "booking:user")
	if !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("Get corrupted: err = %v, want ErrInvalidEntry", err)
	}
	if mr.Exists("booking:user") {
		t.Error("corrupted entry should be deleted")
	}
}

func TestRedisStore_ClearKeepsForeignKeys(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	mr.Set("booking-session:token", "jwt")
	store.Set(ctx, "booking:services", &Entry{Data: []byte(`[]`)}, time.Minute)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if !mr.Exists("booking-session:token") {
		t.Error("Clear removed a key outside the cache namespace")
	}
	if mr.Exists("booking:services") {
		t.Error("Clear kept a cache key")
	}
}

func TestCache_WithRedisStore(t *testing.T) {
	_, client := newMiniRedis(t)
	c := New(Config{
		Store:    NewRedisStore(client),
		Policies: map[string]Policy{"services": {StaleTime: time.Hour}},
	})
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`[{"id":"1"}]`), nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.Read(ctx, Key{Resource: "services"}, fetch)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if string(got) != `[{"id":"1"}]` {
			t.Errorf("Read %d = %q", i, got)
		}
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
}
