// Package booking defines the resources exchanged with the booking backend.
package booking

import (
	"errors"
	"fmt"
	"time"
)

// AppointmentStatus is the lifecycle state of an appointment as reported by the backend.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies its slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition reports whether the backend allows moving from s to next.
// Transitions are monotonic: pending may be confirmed or cancelled,
// confirmed may be completed or cancelled, everything else is final.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// Appointment is a booked slot for a service.
type Appointment struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	ServiceID string            `json:"serviceId"`
	Date      string            `json:"date"`
	Time      string            `json:"time"`
	Status    AppointmentStatus `json:"status"`
	Notes     string            `json:"notes,omitempty"`
	CreatedAt string            `json:"createdAt"`
	UpdatedAt string            `json:"updatedAt"`
}

// Service is an entry of the service catalog.
type Service struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Duration    int     `json:"duration"` // minutes
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

// Validate checks the catalog invariants.
func (s Service) Validate() error {
	if s.Duration <= 0 {
		return fmt.Errorf("service %s: duration must be positive (got %d)", s.ID, s.Duration)
	}
	if s.Price < 0 {
		return fmt.Errorf("service %s: price must not be negative (got %.2f)", s.ID, s.Price)
	}
	return nil
}

// TimeSlot is a bookable time of day for a (date, service) pair.
type TimeSlot struct {
	Time          string `json:"time"`
	Available     bool   `json:"available"`
	AppointmentID string `json:"appointmentId,omitempty"`
}

// FindSlot returns the slot with the given time label.
func FindSlot(slots []TimeSlot, clock string) (TimeSlot, bool) {
	for _, s := range slots {
		if s.Time == clock {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// User is an account holder.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// CreateAppointmentRequest is the payload of POST /appointments.
type CreateAppointmentRequest struct {
	ServiceID string `json:"serviceId"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Notes     string `json:"notes,omitempty"`
}

// Validate checks the request before it is sent.
func (r CreateAppointmentRequest) Validate() error {
	if _, err := ParseDate(r.Date); err != nil {
		return err
	}
	if err := ValidateClock(r.Time); err != nil {
		return err
	}
	return nil
}

// UpdateAppointmentRequest is the partial payload of PUT /appointments/{id}.
// Nil fields are left unchanged by the backend.
type UpdateAppointmentRequest struct {
	ServiceID *string `json:"serviceId,omitempty"`
	Date      *string `json:"date,omitempty"`
	Time      *string `json:"time,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// UpdateProfileRequest is the partial payload of PUT /auth/profile.
type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// LoginRequest is the payload of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the payload of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// ClockLayout is the time-of-day format used on the wire.
const ClockLayout = "15:04"

// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

// ErrInvalidClock is returned for times of day that are not HH:MM.
var ErrInvalidClock = errors.New("invalid time of day")

// ParseDate parses a wire date in the local time zone.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
	}
	return d, nil
}

// FormatDate renders t as a wire date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ValidateClock checks that s is a HH:MM time of day.
func ValidateClock(s string) error {
	if _, err := time.Parse(ClockLayout, s); err != nil {
		return fmt.Errorf("%w %q", ErrInvalidClock, s)
	}
	return nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
