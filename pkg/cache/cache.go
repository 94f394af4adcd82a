package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the current value of a key from the backend.
type FetchFunc func(ctx context.Context) ([]byte, error)

// EventType says what happened to a key.
type EventType int

const (
	// EventUpdated means a new value was stored.
	EventUpdated EventType = iota + 1

	// EventInvalidated means the value was marked stale.
	EventInvalidated

	// EventCleared means every entry was dropped.
	EventCleared
)

func (t EventType) String() string {
	switch t {
	case EventUpdated:
		return "updated"
	case EventInvalidated:
		return "invalidated"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the store has been updated.
// Key and Resource are empty for EventCleared.
type Event struct {
	Key      string
	Resource string
	Type     EventType
}

// Config holds the cache configuration.
type Config struct {
	// Store holds the entries (default: NewMemoryStore())
	Store Store

	// Policies maps resource classes to freshness rules
	Policies map[string]Policy

	// DefaultPolicy applies to resources missing from Policies
	DefaultPolicy Policy

	Logger zerolog.Logger
}

type subscription struct {
	key      string
	resource string
	fn       func(Event)
}

// Cache is a read-through, write-through cache of backend resources.
//
// Reads of fresh entries never touch the network. Reads of stale entries
// return the stale value and revalidate in the background. Misses and
// invalidated entries block until a fetch resolves. At most one fetch per key
// is in flight; concurrent readers share its result.
//
// Values are returned as stored; callers must not modify the returned slices.
type Cache struct {
	store    Store
	policies map[string]Policy
	fallback Policy
	logger   zerolog.Logger
	now      func() time.Time

	group singleflight.Group
	wg    sync.WaitGroup

	// mu serializes store mutations and guards the generation counters
	mu       sync.Mutex
	epoch    uint64
	writes   map[string]uint64
	keyInval map[string]uint64
	resInval map[string]uint64

	subMu   sync.RWMutex
	subs    map[int]subscription
	nextSub int
}

// New creates a cache.
func New(cfg Config) *Cache {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	policies := make(map[string]Policy, len(cfg.Policies))
	for resource, p := range cfg.Policies {
		policies[resource] = p
	}
	return &Cache{
		store:    store,
		policies: policies,
		fallback: cfg.DefaultPolicy,
		logger:   cfg.Logger,
		now:      time.Now,
		writes:   make(map[string]uint64),
		keyInval: make(map[string]uint64),
		resInval: make(map[string]uint64),
		subs:     make(map[int]subscription),
	}
}

// Policy returns the freshness rule for a resource class.
func (c *Cache) Policy(resource string) Policy {
	if p, ok := c.policies[resource]; ok {
		return p
	}
	return c.fallback
}

// Read returns the value of key, fetching it when needed.
// Fetch errors are returned to the caller and never cached.
func (c *Cache) Read(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error) {
	k := key.String()
	policy := c.Policy(key.Resource)

	entry, err := c.store.Get(ctx, k)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		// Store trouble degrades to a miss
		c.logger.Warn().Err(err).Str("key", k).Msg("Cache get error")
	}

	if err == nil {
		now := c.now()
		switch {
		case !entry.IsStale(policy, now):
			CacheHits.WithLabelValues("fresh").Inc()
			c.logger.Debug().Str("key", k).Dur("age", entry.Age(now)).Msg("Cache hit")
			return entry.Data, nil
		case !entry.Invalidated:
			CacheHits.WithLabelValues("stale").Inc()
			c.logger.Debug().Str("key", k).Dur("age", entry.Age(now)).Msg("Serving stale entry while revalidating")
			c.revalidate(ctx, key, fetch)
			return entry.Data, nil
		}
	}

	CacheMisses.Inc()
	c.logger.Debug().Str("key", k).Msg("Cache miss")
	return c.fetch(ctx, key, fetch)
}

// Refresh fetches key regardless of freshness and stores the result.
// It never joins a fetch already in flight; that older fetch still answers
// its own callers but no longer updates the store.
func (c *Cache) Refresh(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error) {
	k := key.String()
	c.mu.Lock()
	c.writes[k]++
	c.group.Forget(k)
	c.mu.Unlock()
	return c.fetch(ctx, key, fetch)
}

// Peek returns the stored value without fetching. ok is false on a miss.
func (c *Cache) Peek(ctx context.Context, key Key) (data []byte, fresh bool, ok bool) {
	entry, err := c.store.Get(ctx, key.String())
	if err != nil {
		return nil, false, false
	}
	return entry.Data, !entry.IsStale(c.Policy(key.Resource), c.now()), true
}

// fetch runs fetch for key, attaching to an in-flight fetch when there is one.
// The shared fetch is detached from the caller's cancellation so one caller
// giving up does not fail the others; each caller still stops waiting when
// its own ctx is done.
func (c *Cache) fetch(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error) {
	k := key.String()
	ch := c.group.DoChan(k, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), key, fetch)
	})

	select {
	case res := <-ch:
		if res.Shared {
			CacheDeduplicated.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load performs one fetch and stores its result unless a newer value
// arrived meanwhile.
func (c *Cache) load(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error) {
	k := key.String()

	c.mu.Lock()
	epoch, writes, inval := c.epoch, c.writes[k], c.invalidations(k, key.Resource)
	c.mu.Unlock()

	data, err := fetch(ctx)
	if err != nil {
		CacheFetches.WithLabelValues("error").Inc()
		c.logger.Debug().Err(err).Str("key", k).Msg("Fetch failed")
		return nil, err
	}

	c.mu.Lock()
	if c.epoch != epoch || c.writes[k] != writes {
		c.mu.Unlock()
		CacheFetches.WithLabelValues("discarded").Inc()
		c.logger.Debug().Str("key", k).Msg("Fetch result superseded by a newer write")
		return data, nil
	}
	entry := &Entry{
		Data:      data,
		FetchedAt: c.now(),
		// An invalidation that landed mid-flight may predate the data the
		// backend returned; keep the value but force the next read to refetch.
		Invalidated: c.invalidations(k, key.Resource) != inval,
	}
	err = c.store.Set(ctx, k, entry, c.Policy(key.Resource).Retention())
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("key", k).Msg("Failed to store fetched value")
	}
	CacheFetches.WithLabelValues("ok").Inc()
	c.notify(Event{Key: k, Resource: key.Resource, Type: EventUpdated})
	return data, nil
}

func (c *Cache) revalidate(ctx context.Context, key Key, fetch FetchFunc) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.fetch(context.WithoutCancel(ctx), key, fetch); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Background revalidation failed")
		}
	}()
}

// Wait blocks until background revalidations have finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Write replaces the value of key with data, typically a mutation response.
// The entry is fresh and supersedes any fetch of key still in flight.
func (c *Cache) Write(ctx context.Context, key Key, data []byte) error {
	k := key.String()

	c.mu.Lock()
	c.writes[k]++
	err := c.store.Set(ctx, k, &Entry{Data: data, FetchedAt: c.now()}, c.Policy(key.Resource).Retention())
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("write %s: %w", k, err)
	}
	c.logger.Debug().Str("key", k).Msg("Cache entry written")
	c.notify(Event{Key: k, Resource: key.Resource, Type: EventUpdated})
	return nil
}

// Invalidate marks key stale; the next Read refetches before returning.
func (c *Cache) Invalidate(ctx context.Context, key Key) error {
	k := key.String()

	c.mu.Lock()
	c.keyInval[k]++
	err := c.markInvalid(ctx, k, key.Resource)
	c.mu.Unlock()

	CacheInvalidations.Inc()
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", k, err)
	}
	c.logger.Debug().Str("key", k).Msg("Cache entry invalidated")
	c.notify(Event{Key: k, Resource: key.Resource, Type: EventInvalidated})
	return nil
}

// InvalidateResource marks every key of a resource class stale, whatever
// its id or params.
func (c *Cache) InvalidateResource(ctx context.Context, resource string) error {
	// Bump first: a fetch landing while the store is scanned must come out
	// invalidated even if the scan misses its key.
	c.mu.Lock()
	c.resInval[resource]++
	c.mu.Unlock()

	keys, err := c.store.Keys(ctx, ResourcePrefix(resource))
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", resource, err)
	}

	var marked []string
	var errs []error
	c.mu.Lock()
	for _, k := range keys {
		if !belongsTo(k, resource) {
			continue
		}
		if err := c.markInvalid(ctx, k, resource); err != nil {
			errs = append(errs, err)
			continue
		}
		marked = append(marked, k)
	}
	c.mu.Unlock()

	CacheInvalidations.Add(float64(len(marked)))
	for _, k := range marked {
		c.notify(Event{Key: k, Resource: resource, Type: EventInvalidated})
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalidate %s: %w", resource, errors.Join(errs...))
	}
	return nil
}

// markInvalid flags a stored entry. Callers hold c.mu.
func (c *Cache) markInvalid(ctx context.Context, k, resource string) error {
	entry, err := c.store.Get(ctx, k)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return err
	}
	if entry.Invalidated {
		return nil
	}
	entry.Invalidated = true
	return c.store.Set(ctx, k, entry, c.Policy(resource).Retention())
}

// Clear drops every entry. Fetches in flight when Clear is called do not
// repopulate the cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	c.writes = make(map[string]uint64)
	c.keyInval = make(map[string]uint64)
	c.resInval = make(map[string]uint64)
	err := c.store.Clear(ctx)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	c.logger.Debug().Msg("Cache cleared")
	c.notify(Event{Type: EventCleared})
	return nil
}

// invalidations returns the combined invalidation generation. Callers hold c.mu.
func (c *Cache) invalidations(k, resource string) uint64 {
	return c.keyInval[k] + c.resInval[resource]
}

// Subscribe calls fn for every event on key. The returned function removes
// the subscription.
func (c *Cache) Subscribe(key Key, fn func(Event)) (unsubscribe func()) {
	return c.subscribe(subscription{key: key.String(), fn: fn})
}

// SubscribeResource calls fn for every event on any key of resource.
func (c *Cache) SubscribeResource(resource string, fn func(Event)) (unsubscribe func()) {
	return c.subscribe(subscription{resource: resource, fn: fn})
}

func (c *Cache) subscribe(s subscription) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = s
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// notify runs matching subscribers outside every lock.
func (c *Cache) notify(ev Event) {
	c.subMu.RLock()
	var targets []func(Event)
	for _, s := range c.subs {
		if ev.Type == EventCleared ||
			(s.key != "" && s.key == ev.Key) ||
			(s.resource != "" && s.resource == ev.Resource) {
			targets = append(targets, s.fn)
		}
	}
	c.subMu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}
