package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/smart-booking-client/pkg/booking"
)

// Backend performs the wizard's effects. *resources.Client implements it.
type Backend interface {
	AvailableSlots(ctx context.Context, date, serviceID string) ([]booking.TimeSlot, error)
	CreateAppointment(ctx context.Context, req booking.CreateAppointmentRequest) (booking.Appointment, error)
}

// SlotRefresher re-reads availability bypassing the cache.
type SlotRefresher interface {
	RefreshSlots(ctx context.Context, date, serviceID string) ([]booking.TimeSlot, error)
}

// Options configures a Controller.
type Options struct {
	// Calendar returns the date pre-filter (default: DefaultCalendar(time.Now()))
	Calendar func() Calendar

	// RevalidateSlot re-reads availability right before booking and fails the
	// submit if the chosen slot was taken meanwhile. Requires a Backend that
	// implements SlotRefresher.
	RevalidateSlot bool

	Logger zerolog.Logger
}

// Controller owns a wizard State, applies events to it one at a time and
// runs the resulting effects in the background.
type Controller struct {
	backend Backend
	opts    Options

	mu      sync.Mutex
	state   State
	version uint64

	// subMu also serializes notifications; notified is the last version delivered
	subMu    sync.Mutex
	subs     map[int]func(State)
	nextSub  int
	notified uint64

	wg sync.WaitGroup
}

// NewController creates a controller in the initial state.
func NewController(backend Backend, opts Options) *Controller {
	if opts.Calendar == nil {
		opts.Calendar = func() Calendar { return DefaultCalendar(time.Now()) }
	}
	return &Controller{
		backend: backend,
		opts:    opts,
		state:   Initial(opts.Calendar()),
		subs:    make(map[int]func(State)),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dispatch applies ev and starts its effect, if any. It returns the state
// right after the transition; effect results arrive later as further events.
// ctx bounds the effect's backend call.
func (c *Controller) Dispatch(ctx context.Context, ev Event) State {
	c.mu.Lock()
	prev := c.state
	next, eff := Transition(prev, ev, c.opts.Calendar())
	c.state = next
	c.version++
	version := c.version
	c.mu.Unlock()

	result := "ok"
	if next.Err != nil {
		result = "error"
	}
	WizardEvents.WithLabelValues(ev.name(), result).Inc()
	if prev.Step != next.Step {
		WizardTransitions.WithLabelValues(prev.Step.String(), next.Step.String()).Inc()
	}

	c.opts.Logger.Debug().
		Str("event", ev.name()).
		Str("from", prev.Step.String()).
		Str("to", next.Step.String()).
		Uint64("seq", next.Seq).
		AnErr("overlay", next.Err).
		Msg("Wizard event")

	if eff != nil {
		c.run(ctx, eff)
	}
	c.notify(version, next)
	return next
}

func (c *Controller) run(ctx context.Context, eff Effect) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		switch eff := eff.(type) {
		case FetchSlots:
			slots, err := c.backend.AvailableSlots(ctx, eff.Date, eff.ServiceID)
			if err != nil {
				c.Dispatch(ctx, SlotsFailed{Seq: eff.Seq, Err: err})
				return
			}
			c.Dispatch(ctx, SlotsLoaded{Seq: eff.Seq, Slots: slots})
		case CreateAppointment:
			if err := c.revalidate(ctx, eff.Request); err != nil {
				c.Dispatch(ctx, SubmitFailed{Seq: eff.Seq, Err: err})
				return
			}
			appt, err := c.backend.CreateAppointment(ctx, eff.Request)
			if err != nil {
				c.Dispatch(ctx, SubmitFailed{Seq: eff.Seq, Err: err})
				return
			}
			c.Dispatch(ctx, SubmitSucceeded{Seq: eff.Seq, Appointment: appt})
		}
	}()
}

// revalidate confirms the chosen slot is still free when RevalidateSlot is on.
func (c *Controller) revalidate(ctx context.Context, req booking.CreateAppointmentRequest) error {
	if !c.opts.RevalidateSlot {
		return nil
	}
	refresher, ok := c.backend.(SlotRefresher)
	if !ok {
		c.opts.Logger.Warn().Msg("Slot revalidation requested but backend cannot refresh slots")
		return nil
	}
	slots, err := refresher.RefreshSlots(ctx, req.Date, req.ServiceID)
	if err != nil {
		return err
	}
	if slot, ok := booking.FindSlot(slots, req.Time); !ok || !slot.Available {
		return fmt.Errorf("%w: %s on %s was taken meanwhile", ErrSlotUnavailable, req.Time, req.Date)
	}
	return nil
}

// Wait blocks until all started effects have delivered their results.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Subscribe calls fn with new states in order. A state superseded before it
// could be delivered is skipped. fn must not call Dispatch or unsubscribe
// synchronously.
// The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller) notify(version uint64, s State) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if version <= c.notified {
		return
	}
	c.notified = version
	for _, fn := range c.subs {
		fn(s)
	}
}
