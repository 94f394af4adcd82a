package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/smart-booking-client/pkg/booking"
	"github.com/Sternrassler/smart-booking-client/pkg/wizard"
)

// newFlagSet returns a subcommand flag set whose errors go to a.out.
func newFlagSet(a *app, name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: booking %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func parse(fs *flag.FlagSet, args []string, nargs int) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != nargs {
		fs.Usage()
		return errUsage
	}
	return nil
}

func cmdHealth(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlagSet(a, "health", ""), args, 0); err != nil {
		return err
	}
	if err := a.res.Health(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is healthy\n", a.cfg.APIURL)
	return nil
}

func cmdServices(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlagSet(a, "services", ""), args, 0); err != nil {
		return err
	}
	services, err := a.res.Services(ctx)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		fmt.Fprintln(a.out, "No services offered.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tDURATION\tPRICE")
	for _, s := range services {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d min\t%.2f\n", s.ID, s.Name, s.Category, s.Duration, s.Price)
	}
	return tw.Flush()
}

func cmdSlots(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "slots", "DATE")
	serviceID := fs.String("service", a.cfg.ServiceID, "limit availability to a service")
	days := fs.Int("days", 1, "number of consecutive days to show")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	start, err := booking.ParseDate(fs.Arg(0))
	if err != nil {
		return err
	}
	if *days < 1 {
		return fmt.Errorf("-days must be at least 1")
	}

	dates := make([]string, *days)
	for i := range dates {
		dates[i] = booking.FormatDate(start.AddDate(0, 0, i))
	}

	byDate, err := a.res.PrefetchSlots(ctx, dates, *serviceID)
	for _, date := range dates {
		slots, ok := byDate[date]
		if !ok {
			continue
		}
		printSlots(a.out, date, slots)
	}
	return err
}

func printSlots(w io.Writer, date string, slots []booking.TimeSlot) {
	fmt.Fprintf(w, "%s:", date)
	free := 0
	for _, s := range slots {
		if s.Available {
			fmt.Fprintf(w, " %s", s.Time)
			free++
		}
	}
	if free == 0 {
		fmt.Fprint(w, " fully booked")
	}
	fmt.Fprintln(w)
}

func cmdAppointments(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "appointments", "")
	all := fs.Bool("all", false, "include cancelled and completed appointments")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	appts, err := a.res.Appointments(ctx)
	if err != nil {
		return err
	}

	shown := make([]booking.Appointment, 0, len(appts))
	for _, appt := range appts {
		if *all || appt.Status.Active() {
			shown = append(shown, appt)
		}
	}
	sort.Slice(shown, func(i, j int) bool {
		if shown[i].Date != shown[j].Date {
			return shown[i].Date < shown[j].Date
		}
		return shown[i].Time < shown[j].Time
	})
	if len(shown) == 0 {
		fmt.Fprintln(a.out, "No appointments.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tSERVICE\tSTATUS")
	for _, appt := range shown {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", appt.ID, appt.Date, appt.Time, appt.ServiceID, appt.Status)
	}
	return tw.Flush()
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "show", "ID")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	appt, err := a.res.Appointment(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	printAppointment(a.out, appt)
	return nil
}

func printAppointment(w io.Writer, appt booking.Appointment) {
	fmt.Fprintf(w, "Appointment %s\n", appt.ID)
	fmt.Fprintf(w, "  Date:    %s %s\n", appt.Date, appt.Time)
	fmt.Fprintf(w, "  Service: %s\n", appt.ServiceID)
	fmt.Fprintf(w, "  Status:  %s\n", appt.Status)
	if appt.Notes != "" {
		fmt.Fprintf(w, "  Notes:   %s\n", appt.Notes)
	}
}

func cmdCancel(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "cancel", "ID")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	appt, err := a.res.CancelAppointment(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Appointment %s on %s at %s is now %s.\n", appt.ID, appt.Date, appt.Time, appt.Status)
	return nil
}

func cmdReschedule(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "reschedule", "ID")
	date := fs.String("date", "", "new date (YYYY-MM-DD)")
	clock := fs.String("time", "", "new time (HH:MM)")
	notes := fs.String("notes", "", "replace the notes")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	var req booking.UpdateAppointmentRequest
	if *date != "" {
		if err := wizard.DefaultCalendar(time.Now()).Check(*date); err != nil {
			return err
		}
		req.Date = date
	}
	if *clock != "" {
		if err := booking.ValidateClock(*clock); err != nil {
			return err
		}
		req.Time = clock
	}
	if *notes != "" {
		req.Notes = notes
	}
	if req == (booking.UpdateAppointmentRequest{}) {
		return errors.New("nothing to change: pass -date, -time or -notes")
	}

	appt, err := a.res.UpdateAppointment(ctx, fs.Arg(0), req)
	if err != nil {
		return err
	}
	printAppointment(a.out, appt)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login", "")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when empty)")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if err := a.fill(email, "Email: "); err != nil {
		return err
	}
	if err := a.fill(password, "Password: "); err != nil {
		return err
	}

	user, err := a.res.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s <%s>.\n", user.Name, user.Email)
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "register", "")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when empty)")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	for _, f := range []struct {
		v     *string
		label string
	}{{name, "Name: "}, {email, "Email: "}, {password, "Password: "}} {
		if err := a.fill(f.v, f.label); err != nil {
			return err
		}
	}

	user, err := a.res.Register(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s. You are now logged in.\n", user.Name)
	return nil
}

// fill prompts for *v when it is empty.
func (a *app) fill(v *string, label string) error {
	if *v != "" {
		return nil
	}
	line, err := a.prompt(label)
	if err != nil {
		return err
	}
	if line == "" {
		return fmt.Errorf("%s is required", strings.ToLower(strings.TrimSuffix(label, ": ")))
	}
	*v = line
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlagSet(a, "logout", ""), args, 0); err != nil {
		return err
	}
	if a.sess.Token() == "" {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	if err := a.res.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "profile", "")
	name := fs.String("name", "", "set your name")
	email := fs.String("email", "", "set your email")
	phone := fs.String("phone", "", "set your phone number")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	var req booking.UpdateProfileRequest
	if *name != "" {
		req.Name = name
	}
	if *email != "" {
		req.Email = email
	}
	if *phone != "" {
		req.Phone = phone
	}

	var (
		user booking.User
		err  error
	)
	if req == (booking.UpdateProfileRequest{}) {
		user, err = a.res.Profile(ctx)
	} else {
		user, err = a.res.UpdateProfile(ctx, req)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Name:  %s\nEmail: %s\n", user.Name, user.Email)
	if user.Phone != "" {
		fmt.Fprintf(a.out, "Phone: %s\n", user.Phone)
	}
	return nil
}
