package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/smart-booking-client/pkg/booking"
	"github.com/Sternrassler/smart-booking-client/pkg/client"
	"github.com/Sternrassler/smart-booking-client/pkg/logging"
	"github.com/Sternrassler/smart-booking-client/pkg/wizard"
)

// cmdBook walks the booking wizard over stdin. Each step prompts for one
// input, dispatches it and renders the resulting state.
func cmdBook(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "book", "")
	serviceID := fs.String("service", a.cfg.ServiceID, "service to book")
	date := fs.String("date", "", "start with this date selected")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	w := wizard.NewController(a.res, wizard.Options{
		RevalidateSlot: a.cfg.RevalidateSlot,
		Logger:         logging.NewLogger("wizard"),
	})
	dispatch := func(ev wizard.Event) wizard.State {
		w.Dispatch(ctx, ev)
		// Effects finish before the next prompt so each screen shows settled state
		w.Wait()
		return w.State()
	}

	s := w.State()
	if *serviceID != "" {
		s = dispatch(wizard.SelectService{ServiceID: *serviceID})
	}
	if *date != "" {
		s = dispatch(wizard.SelectDate{Date: *date})
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		render(a.out, s)

		var (
			ev   wizard.Event
			done bool
			err  error
		)
		switch s.Step {
		case wizard.StepSelectingDate:
			ev, err = a.askDate(s)
		case wizard.StepSelectingTime:
			ev, err = a.askTime(s)
		case wizard.StepEnteringDetails:
			ev, err = a.askDetails(ctx, w, s)
		case wizard.StepConfirmed:
			ev, done, err = a.askAgain()
		}
		if errors.Is(err, io.EOF) {
			if s.Step == wizard.StepConfirmed {
				return nil
			}
			return errors.New("booking aborted")
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		s = dispatch(ev)
	}
}

func render(w io.Writer, s wizard.State) {
	if s.Err != nil {
		fmt.Fprintf(w, "! %s\n", client.UserMessage(s.Err, ""))
	}
	switch s.Step {
	case wizard.StepSelectingTime:
		if s.SlotsLoading {
			return
		}
		if s.Slots == nil {
			fmt.Fprintf(w, "No availability loaded for %s.\n", s.Draft.Date)
			return
		}
		printSlots(w, s.Draft.Date, s.Slots)
	case wizard.StepEnteringDetails:
		fmt.Fprintf(w, "Booking %s at %s.\n", s.Draft.Date, s.Draft.Time)
	case wizard.StepConfirmed:
		c := s.Confirmation
		fmt.Fprintf(w, "Booked! %s at %s for %s <%s>.\n", c.Date, c.Time, c.Name, c.Email)
		fmt.Fprintf(w, "Reference: %s (%s)\n", c.Appointment.ID, c.Appointment.Status)
	}
}

func (a *app) askDate(s wizard.State) (wizard.Event, error) {
	line, err := a.prompt(fmt.Sprintf("Date [%s]: ", s.Draft.Date))
	if err != nil {
		return nil, err
	}
	if line == "" {
		line = s.Draft.Date
	}
	return wizard.SelectDate{Date: line}, nil
}

// askTime accepts a time, another date, "b" to go back or "r" to reload.
func (a *app) askTime(s wizard.State) (wizard.Event, error) {
	line, err := a.prompt("Time (HH:MM), another date, b=back, r=reload: ")
	if err != nil {
		return nil, err
	}
	switch {
	case line == "b":
		return wizard.Back{}, nil
	case line == "r" || line == "":
		return wizard.SelectDate{Date: s.Draft.Date}, nil
	}
	if _, err := booking.ParseDate(line); err == nil {
		return wizard.SelectDate{Date: line}, nil
	}
	return wizard.SelectTime{Time: line}, nil
}

// askDetails collects the contact fields, keeping the current value on an
// empty answer, then asks whether to submit.
func (a *app) askDetails(ctx context.Context, w *wizard.Controller, s wizard.State) (wizard.Event, error) {
	d := s.Draft
	fields := []struct {
		label string
		v     *string
	}{
		{"Name", &d.Name},
		{"Email", &d.Email},
		{"Message", &d.Message},
	}
	for _, f := range fields {
		line, err := a.prompt(fmt.Sprintf("%s [%s]: ", f.label, *f.v))
		if err != nil {
			return nil, err
		}
		if line != "" {
			*f.v = line
		}
	}
	w.Dispatch(ctx, wizard.UpdateDetails{Name: d.Name, Email: d.Email, Message: d.Message})

	line, err := a.prompt("Submit booking? [Y/n/b]: ")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(line) {
	case "", "y", "yes":
		return wizard.Submit{}, nil
	case "b":
		return wizard.Back{}, nil
	default:
		// Re-enter the details with what was typed so far
		return wizard.UpdateDetails{Name: d.Name, Email: d.Email, Message: d.Message}, nil
	}
}

func (a *app) askAgain() (wizard.Event, bool, error) {
	line, err := a.prompt("Book another? [y/N]: ")
	if err != nil {
		return nil, false, err
	}
	if strings.EqualFold(line, "y") {
		return wizard.BookAnother{}, false, nil
	}
	return nil, true, nil
}
