package wizard

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Sternrassler/smart-booking-client/pkg/booking"
)

// Step is the wizard screen.
type Step int

const (
	StepSelectingDate Step = iota
	StepSelectingTime
	StepEnteringDetails
	StepConfirmed
)

func (s Step) String() string {
	switch s {
	case StepSelectingDate:
		return "selecting_date"
	case StepSelectingTime:
		return "selecting_time"
	case StepEnteringDetails:
		return "entering_details"
	case StepConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Draft is the in-progress booking. It is never shared with the cache except
// as the payload of the final submit.
type Draft struct {
	ServiceID string
	Date      string // YYYY-MM-DD
	Time      string // HH:MM
	Name      string
	Email     string
	Message   string
}

// Confirmation snapshots what was submitted together with the backend's answer.
type Confirmation struct {
	Date        string
	Time        string
	Name        string
	Email       string
	Message     string
	Appointment booking.Appointment
}

// State is the complete wizard state.
type State struct {
	Step  Step
	Draft Draft

	// Slots holds availability for Draft.Date once loaded.
	Slots        []booking.TimeSlot
	SlotsLoading bool
	Submitting   bool

	// Err is the error overlay. It never changes Step.
	Err error

	// Confirmation is set only in StepConfirmed.
	Confirmation *Confirmation

	// Seq identifies the current async interest. Results carrying another
	// Seq belong to an abandoned interest and are dropped.
	Seq uint64
}

// Initial returns the start state: date selection with today preselected.
func Initial(cal Calendar) State {
	return State{
		Step:  StepSelectingDate,
		Draft: Draft{Date: booking.FormatDate(cal.Today)},
	}
}

// Errors attached to the overlay by rejected events.
var (
	ErrDateUnavailable   = errors.New("date cannot be booked")
	ErrSlotUnavailable   = errors.New("time slot is not available")
	ErrInvalidDetails    = errors.New("invalid contact details")
	ErrInvalidTransition = errors.New("action not possible in this step")
	ErrSubmitInProgress  = errors.New("booking is already being submitted")
)

// Calendar is the client-side date pre-filter. The backend remains the
// authority on availability.
type Calendar struct {
	Today            time.Time
	DisabledWeekdays []time.Weekday
}

// DefaultCalendar disables weekends.
func DefaultCalendar(now time.Time) Calendar {
	return Calendar{
		Today:            now,
		DisabledWeekdays: []time.Weekday{time.Saturday, time.Sunday},
	}
}

// Check returns nil when date may be selected: it parses, is not before
// today, and is not a disabled weekday.
func (c Calendar) Check(date string) error {
	d, err := booking.ParseDate(date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDateUnavailable, err)
	}
	// Wire dates sort lexically
	if date < booking.FormatDate(c.Today) {
		return fmt.Errorf("%w: %s is in the past", ErrDateUnavailable, date)
	}
	if slices.Contains(c.DisabledWeekdays, d.Weekday()) {
		return fmt.Errorf("%w: %s is a %s", ErrDateUnavailable, date, d.Weekday())
	}
	return nil
}
