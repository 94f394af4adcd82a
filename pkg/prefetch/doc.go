// Package prefetch provides bounded parallel fetching for cache warm-up.
//
// The terminal front-end shows availability for several days at once. Each
// day is a separate backend request, so this package runs them on a small
// worker pool while staying under the client's rate gate.
//
// Example usage:
//
//	pool := prefetch.NewPool(prefetch.DefaultConfig())
//	slots, err := prefetch.Fetch(ctx, pool, dates, func(ctx context.Context, date string) ([]booking.TimeSlot, error) {
//		return res.AvailableSlots(ctx, date, serviceID)
//	})
//
// The pool:
//   - Deduplicates keys
//   - Spawns at most MaxConcurrency workers (default 4)
//   - Applies a timeout to every job
//   - Reports keys left after cancellation as failed instead of fetching them
//   - Returns partial data together with the joined per-key errors
package prefetch
