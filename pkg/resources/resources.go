// Package resources exposes the booking backend as cached queries and
// mutations.
//
// Queries read through the cache with the freshness table from
// DefaultPolicies. Mutations follow one protocol: send the request, and only
// on success write the returned entity into its entity key and invalidate the
// collections that contain it. A failed mutation leaves the cache untouched.
package resources

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/smart-booking-client/pkg/booking"
	"github.com/Sternrassler/smart-booking-client/pkg/cache"
	"github.com/Sternrassler/smart-booking-client/pkg/prefetch"
	"github.com/Sternrassler/smart-booking-client/pkg/session"
)

// ErrDisabled is returned by queries whose required parameter is empty.
var ErrDisabled = errors.New("query disabled: required parameter is empty")

// API is the backend contract used by Client. *client.Client implements it.
type API interface {
	ListAppointments(ctx context.Context) ([]booking.Appointment, error)
	GetAppointment(ctx context.Context, id string) (booking.Appointment, error)
	CreateAppointment(ctx context.Context, req booking.CreateAppointmentRequest) (booking.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, req booking.UpdateAppointmentRequest) (booking.Appointment, error)
	CancelAppointment(ctx context.Context, id string) (booking.Appointment, error)
	AvailableSlots(ctx context.Context, date, serviceID string) ([]booking.TimeSlot, error)
	ListServices(ctx context.Context) ([]booking.Service, error)
	GetService(ctx context.Context, id string) (booking.Service, error)
	GetProfile(ctx context.Context) (booking.User, error)
	UpdateProfile(ctx context.Context, req booking.UpdateProfileRequest) (booking.User, error)
	Login(ctx context.Context, email, password string) (booking.AuthResult, error)
	Register(ctx context.Context, name, email, password string) (booking.AuthResult, error)
	Logout(ctx context.Context) error
	Health(ctx context.Context) error
}

// Client serves backend resources through a cache.
type Client struct {
	api    API
	cache  *cache.Cache
	pool   *prefetch.Pool
	logger zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPrefetchPool sets the worker pool used by PrefetchSlots.
func WithPrefetchPool(p *prefetch.Pool) Option {
	return func(c *Client) { c.pool = p }
}

// NewCache creates a cache with the default freshness table.
// A nil store selects the in-process store.
func NewCache(store cache.Store, logger zerolog.Logger) *cache.Cache {
	return cache.New(cache.Config{
		Store:    store,
		Policies: DefaultPolicies(),
		Logger:   logger,
	})
}

// New creates a Client.
func New(api API, c *cache.Cache, logger zerolog.Logger, opts ...Option) *Client {
	rc := &Client{
		api:    api,
		cache:  c,
		pool:   prefetch.NewPool(prefetch.DefaultConfig()),
		logger: logger,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Cache returns the underlying cache, e.g. to subscribe to updates.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// Bind drops every cached resource when sess loses its token, whether by
// logout or by a 401. Cached data belongs to the account that fetched it.
func (c *Client) Bind(sess *session.Session) {
	sess.OnChange(func(ch session.Change) {
		if ch.Authenticated {
			return
		}
		if err := c.cache.Clear(context.Background()); err != nil {
			c.logger.Warn().Err(err).Str("reason", ch.Reason).Msg("Failed to clear cache after session end")
		}
	})
}

// Appointments returns the current user's appointments.
func (c *Client) Appointments(ctx context.Context) ([]booking.Appointment, error) {
	return cache.Query(ctx, c.cache, AppointmentsKey(), c.api.ListAppointments)
}

// Appointment returns one appointment.
func (c *Client) Appointment(ctx context.Context, id string) (booking.Appointment, error) {
	if id == "" {
		return booking.Appointment{}, ErrDisabled
	}
	return cache.Query(ctx, c.cache, AppointmentKey(id), func(ctx context.Context) (booking.Appointment, error) {
		return c.api.GetAppointment(ctx, id)
	})
}

// AvailableSlots returns availability for date, optionally scoped to a service.
func (c *Client) AvailableSlots(ctx context.Context, date, serviceID string) ([]booking.TimeSlot, error) {
	if date == "" {
		return nil, ErrDisabled
	}
	return cache.Query(ctx, c.cache, SlotsKey(date, serviceID), func(ctx context.Context) ([]booking.TimeSlot, error) {
		return c.api.AvailableSlots(ctx, date, serviceID)
	})
}

// RefreshSlots fetches availability ignoring freshness and stores the result.
func (c *Client) RefreshSlots(ctx context.Context, date, serviceID string) ([]booking.TimeSlot, error) {
	if date == "" {
		return nil, ErrDisabled
	}
	return cache.Refetch(ctx, c.cache, SlotsKey(date, serviceID), func(ctx context.Context) ([]booking.TimeSlot, error) {
		return c.api.AvailableSlots(ctx, date, serviceID)
	})
}

// PrefetchSlots warms availability for several dates in parallel and returns
// the slots per date. Dates that failed are missing from the map and named in
// the error.
func (c *Client) PrefetchSlots(ctx context.Context, dates []string, serviceID string) (map[string][]booking.TimeSlot, error) {
	return prefetch.Fetch(ctx, c.pool, dates, func(ctx context.Context, date string) ([]booking.TimeSlot, error) {
		return c.AvailableSlots(ctx, date, serviceID)
	})
}

// Services returns the service catalog.
func (c *Client) Services(ctx context.Context) ([]booking.Service, error) {
	return cache.Query(ctx, c.cache, ServicesKey(), c.api.ListServices)
}

// Service returns one catalog entry.
func (c *Client) Service(ctx context.Context, id string) (booking.Service, error) {
	if id == "" {
		return booking.Service{}, ErrDisabled
	}
	return cache.Query(ctx, c.cache, ServiceKey(id), func(ctx context.Context) (booking.Service, error) {
		return c.api.GetService(ctx, id)
	})
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (booking.User, error) {
	return cache.Query(ctx, c.cache, UserKey(), c.api.GetProfile)
}

// CreateAppointment books a slot.
func (c *Client) CreateAppointment(ctx context.Context, req booking.CreateAppointmentRequest) (booking.Appointment, error) {
	appt, err := c.api.CreateAppointment(ctx, req)
	if err != nil {
		return booking.Appointment{}, err
	}
	c.appointmentChanged(ctx, appt)
	return appt, nil
}

// UpdateAppointment applies a partial update.
func (c *Client) UpdateAppointment(ctx context.Context, id string, req booking.UpdateAppointmentRequest) (booking.Appointment, error) {
	appt, err := c.api.UpdateAppointment(ctx, id, req)
	if err != nil {
		return booking.Appointment{}, err
	}
	c.appointmentChanged(ctx, appt)
	return appt, nil
}

// CancelAppointment cancels an appointment.
func (c *Client) CancelAppointment(ctx context.Context, id string) (booking.Appointment, error) {
	appt, err := c.api.CancelAppointment(ctx, id)
	if err != nil {
		return booking.Appointment{}, err
	}
	if appt.Status != booking.StatusCancelled {
		c.logger.Warn().Str("appointment_id", id).Str("status", string(appt.Status)).Msg("Cancel returned unexpected status")
	}
	c.appointmentChanged(ctx, appt)
	return appt, nil
}

// appointmentChanged applies the mutation protocol for an appointment the
// backend just returned. The mutation already succeeded, so cache failures
// are logged rather than returned.
func (c *Client) appointmentChanged(ctx context.Context, appt booking.Appointment) {
	if appt.ID != "" {
		if err := cache.Put(ctx, c.cache, AppointmentKey(appt.ID), appt); err != nil {
			c.logger.Warn().Err(err).Str("appointment_id", appt.ID).Msg("Failed to write appointment")
		}
	}
	if err := c.cache.Invalidate(ctx, AppointmentsKey()); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to invalidate appointment list")
	}
	// Booking, moving or cancelling changes availability
	if err := c.cache.InvalidateResource(ctx, ResourceSlots); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to invalidate slots")
	}
}

// UpdateProfile applies a partial profile update.
func (c *Client) UpdateProfile(ctx context.Context, req booking.UpdateProfileRequest) (booking.User, error) {
	user, err := c.api.UpdateProfile(ctx, req)
	if err != nil {
		return booking.User{}, err
	}
	c.putUser(ctx, user)
	return user, nil
}

// Login authenticates and caches the returned user.
func (c *Client) Login(ctx context.Context, email, password string) (booking.User, error) {
	res, err := c.api.Login(ctx, email, password)
	if err != nil {
		return booking.User{}, err
	}
	c.startAccount(ctx, res.User)
	return res.User, nil
}

// Register creates an account and caches the returned user.
func (c *Client) Register(ctx context.Context, name, email, password string) (booking.User, error) {
	res, err := c.api.Register(ctx, name, email, password)
	if err != nil {
		return booking.User{}, err
	}
	c.startAccount(ctx, res.User)
	return res.User, nil
}

// startAccount replaces whatever another account left in the cache.
func (c *Client) startAccount(ctx context.Context, user booking.User) {
	if err := c.cache.Clear(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear cache for new account")
	}
	c.putUser(ctx, user)
}

func (c *Client) putUser(ctx context.Context, user booking.User) {
	if err := cache.Put(ctx, c.cache, UserKey(), user); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write user")
	}
}

// Logout drops the session and every cached resource.
func (c *Client) Logout(ctx context.Context) error {
	var errs []error
	if err := c.api.Logout(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.cache.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("logout: %w", errors.Join(errs...))
	}
	return nil
}

// Health checks the backend without caching.
func (c *Client) Health(ctx context.Context) error {
	return c.api.Health(ctx)
}
