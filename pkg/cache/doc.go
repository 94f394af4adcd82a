// Package cache provides the resource cache in front of the booking backend.
//
// The cache implements read-through reads and write-through updates with the
// following features:
//
// - Structured keys (resource class, optional id, optional filter params)
// - Per-resource staleness windows with stale-while-revalidate
// - At most one in-flight fetch per key; concurrent readers share it
// - Explicit invalidation of single keys or whole resource classes
// - Subscriber notification after every update
// - Pluggable entry store (in-process or Redis)
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	c := cache.New(cache.Config{
//		Policies: map[string]cache.Policy{
//			"services": {StaleTime: 30 * time.Minute},
//		},
//	})
//
//	key := cache.Key{Resource: "services"}
//
//	services, err := cache.Query(ctx, c, key, api.ListServices)
//	if err != nil {
//		return err
//	}
//
// # Mutations
//
// A mutation writes the authoritative entity returned by the backend into
// its entity key and invalidates the collection it belongs to:
//
//	appt, err := api.CancelAppointment(ctx, id)
//	if err != nil {
//		return err // cache untouched
//	}
//	_ = cache.Put(ctx, c, cache.Key{Resource: "appointment", ID: id}, appt)
//	_ = c.Invalidate(ctx, cache.Key{Resource: "appointments"})
//
// # Persistent Store
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	c := cache.New(cache.Config{Store: cache.NewRedisStore(redisClient)})
//
// # Metrics
//
// The cache exports Prometheus metrics:
//
//   - booking_cache_hits_total{state} - Reads served from the store
//   - booking_cache_misses_total - Reads that waited for a fetch
//   - booking_cache_fetches_total{result} - Fetches issued
//   - booking_cache_dedup_total - Reads that shared an in-flight fetch
//   - booking_cache_invalidations_total - Entries marked stale
//   - booking_cache_errors_total{operation} - Store errors
package cache
