// Package ratelimit gates outbound requests to the booking backend.
// It combines a local token bucket with a cooldown learnt from the backend's
// 429 / 503 responses and their Retry-After header.
package ratelimit

import (
	"time"
)

// Limits applied when parsing server hints.
const (
	// MaxCooldown caps a Retry-After hint so a bad header cannot park the client.
	MaxCooldown = 5 * time.Minute

	// DefaultCooldown applies when a 429 arrives without a usable Retry-After.
	DefaultCooldown = 5 * time.Second
)

// State is the gate's view of the backend's request budget.
type State struct {
	// CooldownUntil is when requests may resume after a throttling response.
	// The zero time means no cooldown is active.
	CooldownUntil time.Time

	// LastStatus is the HTTP status of the last response that touched the state.
	LastStatus int

	// LastUpdate is when the state last changed.
	LastUpdate time.Time
}

// CoolingDown reports whether requests must be held back at now.
func (s State) CoolingDown(now time.Time) bool {
	return now.Before(s.CooldownUntil)
}

// Remaining returns how long the cooldown still lasts at now.
// Returns 0 if it has already passed.
func (s State) Remaining(now time.Time) time.Duration {
	d := s.CooldownUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
