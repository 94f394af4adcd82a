package wizard

import "github.com/Sternrassler/smart-booking-client/pkg/booking"

// Event is an input to Transition: a user action or an async result.
type Event interface {
	name() string
}

// SelectDate picks a calendar date.
type SelectDate struct{ Date string }

// SelectService scopes slot availability to a service ("" for any).
type SelectService struct{ ServiceID string }

// SlotsLoaded delivers the result of a FetchSlots effect.
type SlotsLoaded struct {
	Seq   uint64
	Slots []booking.TimeSlot
}

// SlotsFailed reports a failed FetchSlots effect.
type SlotsFailed struct {
	Seq uint64
	Err error
}

// SelectTime picks a slot by its time label.
type SelectTime struct{ Time string }

// UpdateDetails replaces the contact fields.
type UpdateDetails struct {
	Name    string
	Email   string
	Message string
}

// Submit requests the booking.
type Submit struct{}

// SubmitSucceeded delivers the backend's appointment for a CreateAppointment effect.
type SubmitSucceeded struct {
	Seq         uint64
	Appointment booking.Appointment
}

// SubmitFailed reports a failed CreateAppointment effect.
type SubmitFailed struct {
	Seq uint64
	Err error
}

// Back returns to the previous step.
type Back struct{}

// BookAnother starts over after a confirmation.
type BookAnother struct{}

func (SelectDate) name() string      { return "select_date" }
func (SelectService) name() string   { return "select_service" }
func (SlotsLoaded) name() string     { return "slots_loaded" }
func (SlotsFailed) name() string     { return "slots_failed" }
func (SelectTime) name() string      { return "select_time" }
func (UpdateDetails) name() string   { return "update_details" }
func (Submit) name() string          { return "submit" }
func (SubmitSucceeded) name() string { return "submit_succeeded" }
func (SubmitFailed) name() string    { return "submit_failed" }
func (Back) name() string            { return "back" }
func (BookAnother) name() string     { return "book_another" }

// Effect is work Transition asks the caller to perform. The outcome is fed
// back as an event carrying the same Seq.
type Effect interface {
	effect()
}

// FetchSlots loads availability for a date. Answer with SlotsLoaded or SlotsFailed.
type FetchSlots struct {
	Seq       uint64
	Date      string
	ServiceID string
}

// CreateAppointment books the draft. Answer with SubmitSucceeded or SubmitFailed.
type CreateAppointment struct {
	Seq     uint64
	Request booking.CreateAppointmentRequest
}

func (FetchSlots) effect()        {}
func (CreateAppointment) effect() {}
