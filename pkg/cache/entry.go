package cache

import (
	"time"
)

// DefaultCacheTime is how long an entry is retained when its policy does not say.
const DefaultCacheTime = 5 * time.Minute

// Policy is the freshness rule for one resource class.
type Policy struct {
	// StaleTime is how long after a fetch the value is served without a
	// network call. Zero means every read revalidates.
	StaleTime time.Duration

	// CacheTime is how long an entry is retained in the store after it was
	// last written. Zero selects DefaultCacheTime.
	CacheTime time.Duration
}

// Retention returns how long the store keeps an entry under this policy.
// An entry is never evicted before it goes stale.
func (p Policy) Retention() time.Duration {
	keep := p.CacheTime
	if keep <= 0 {
		keep = DefaultCacheTime
	}
	if keep < p.StaleTime {
		keep = p.StaleTime
	}
	return keep
}

// Entry is a cached resource value.
type Entry struct {
	// Data is the JSON encoded value
	Data []byte `json:"data"`

	// FetchedAt is when the value was received from the backend
	FetchedAt time.Time `json:"fetched_at"`

	// Invalidated is set by Invalidate; the next read must refetch
	Invalidated bool `json:"invalidated"`
}

// IsStale reports whether the entry must be revalidated at now.
func (e *Entry) IsStale(p Policy, now time.Time) bool {
	if e.Invalidated {
		return true
	}
	return now.Sub(e.FetchedAt) >= p.StaleTime
}

// Age returns how long ago the value was fetched.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}
