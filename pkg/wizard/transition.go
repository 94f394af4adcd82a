// Package wizard implements the booking wizard as a pure state machine.
//
// The wizard walks through four steps:
//
//	SelectingDate -> SelectingTime -> EnteringDetails -> Confirmed
//
// Transition computes the next state for an event and returns at most one
// Effect. Effects are the only side effects: FetchSlots when the time step is
// entered, CreateAppointment when the details are submitted. Their results
// come back as events carrying the Seq they were issued with; results for an
// abandoned interest are ignored.
//
// A rejected event never changes the step or the draft; it only attaches an
// error to State.Err.
//
// Controller runs the machine against a Backend and delivers effect results.
package wizard

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/Sternrassler/smart-booking-client/pkg/booking"
)

// Transition applies ev to s. It is pure: it performs no I/O and does not
// modify s.
func Transition(s State, ev Event, cal Calendar) (State, Effect) {
	switch ev := ev.(type) {
	case SelectDate:
		return selectDate(s, ev, cal)
	case SelectService:
		return selectService(s, ev)
	case SlotsLoaded:
		if !s.awaitingSlots(ev.Seq) {
			return s, nil
		}
		s.Slots = ev.Slots
		s.SlotsLoading = false
		s.Err = nil
		return s, nil
	case SlotsFailed:
		if !s.awaitingSlots(ev.Seq) {
			return s, nil
		}
		s.SlotsLoading = false
		s.Err = ev.Err
		return s, nil
	case SelectTime:
		return selectTime(s, ev)
	case UpdateDetails:
		if s.Step != StepEnteringDetails {
			return reject(s, ev)
		}
		if s.Submitting {
			return withErr(s, ErrSubmitInProgress)
		}
		s.Draft.Name = ev.Name
		s.Draft.Email = ev.Email
		s.Draft.Message = ev.Message
		s.Err = nil
		return s, nil
	case Submit:
		return submit(s)
	case SubmitSucceeded:
		if !s.awaitingSubmit(ev.Seq) {
			return s, nil
		}
		s.Step = StepConfirmed
		s.Submitting = false
		s.Err = nil
		s.Confirmation = &Confirmation{
			Date:        s.Draft.Date,
			Time:        s.Draft.Time,
			Name:        s.Draft.Name,
			Email:       s.Draft.Email,
			Message:     s.Draft.Message,
			Appointment: ev.Appointment,
		}
		return s, nil
	case SubmitFailed:
		if !s.awaitingSubmit(ev.Seq) {
			return s, nil
		}
		// Draft is kept so the user can simply submit again
		s.Submitting = false
		s.Err = ev.Err
		return s, nil
	case Back:
		return back(s)
	case BookAnother:
		if s.Step != StepConfirmed {
			return reject(s, ev)
		}
		next := Initial(cal)
		next.Draft.ServiceID = s.Draft.ServiceID
		next.Seq = s.Seq + 1
		return next, nil
	default:
		return withErr(s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev))
	}
}

func selectDate(s State, ev SelectDate, cal Calendar) (State, Effect) {
	if s.Step == StepConfirmed {
		return reject(s, ev)
	}
	if s.Submitting {
		return withErr(s, ErrSubmitInProgress)
	}
	if err := cal.Check(ev.Date); err != nil {
		return withErr(s, err)
	}
	// The calendar stays visible on later steps; a new date always leads
	// back to time selection for that date.
	s.Draft.Date = ev.Date
	s.Draft.Time = ""
	s.Slots = nil
	return enterSelectingTime(s)
}

func selectService(s State, ev SelectService) (State, Effect) {
	switch s.Step {
	case StepSelectingDate:
		s.Draft.ServiceID = ev.ServiceID
		s.Err = nil
		return s, nil
	case StepSelectingTime:
		s.Draft.ServiceID = ev.ServiceID
		s.Slots = nil
		return enterSelectingTime(s)
	default:
		return reject(s, ev)
	}
}

func selectTime(s State, ev SelectTime) (State, Effect) {
	if s.Step != StepSelectingTime {
		return reject(s, ev)
	}
	slot, ok := booking.FindSlot(s.Slots, ev.Time)
	if !ok || !slot.Available {
		return withErr(s, fmt.Errorf("%w: %s on %s", ErrSlotUnavailable, ev.Time, s.Draft.Date))
	}
	s.Draft.Time = slot.Time
	s.Step = StepEnteringDetails
	s.Err = nil
	return s, nil
}

func submit(s State) (State, Effect) {
	if s.Step != StepEnteringDetails {
		return reject(s, Submit{})
	}
	if s.Submitting {
		return withErr(s, ErrSubmitInProgress)
	}
	if err := validateDetails(s.Draft); err != nil {
		return withErr(s, err)
	}

	s.Submitting = true
	s.Err = nil
	s.Seq++
	return s, CreateAppointment{
		Seq: s.Seq,
		Request: booking.CreateAppointmentRequest{
			ServiceID: s.Draft.ServiceID,
			Date:      s.Draft.Date,
			Time:      s.Draft.Time,
			Notes:     s.Draft.Message,
		},
	}
}

func back(s State) (State, Effect) {
	if s.Submitting {
		return withErr(s, ErrSubmitInProgress)
	}
	switch s.Step {
	case StepEnteringDetails:
		// Date, time and contact fields are all retained
		return enterSelectingTime(s)
	case StepSelectingTime:
		s.Step = StepSelectingDate
		s.Draft.Time = ""
		s.SlotsLoading = false
		s.Err = nil
		// Abandon any slot fetch still in flight
		s.Seq++
		return s, nil
	default:
		return reject(s, Back{})
	}
}

// enterSelectingTime moves to the time step and issues the slot fetch.
// Slots already shown stay visible until the fetch answers.
func enterSelectingTime(s State) (State, Effect) {
	s.Step = StepSelectingTime
	s.SlotsLoading = true
	s.Err = nil
	s.Seq++
	return s, FetchSlots{Seq: s.Seq, Date: s.Draft.Date, ServiceID: s.Draft.ServiceID}
}

func validateDetails(d Draft) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDetails)
	}
	email := strings.TrimSpace(d.Email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidDetails)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email %q is not valid", ErrInvalidDetails, email)
	}
	return nil
}

func (s State) awaitingSlots(seq uint64) bool {
	return s.Step == StepSelectingTime && s.SlotsLoading && s.Seq == seq
}

func (s State) awaitingSubmit(seq uint64) bool {
	return s.Step == StepEnteringDetails && s.Submitting && s.Seq == seq
}

func reject(s State, ev Event) (State, Effect) {
	return withErr(s, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.name(), s.Step))
}

func withErr(s State, err error) (State, Effect) {
	s.Err = err
	return s, nil
}
