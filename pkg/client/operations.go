package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/smart-booking-client/pkg/booking"
)

// Backend paths.
const (
	PathAppointments   = "/appointments"
	PathAvailableSlots = "/appointments/available-slots"
	PathServices       = "/services"
	PathLogin          = "/auth/login"
	PathRegister       = "/auth/register"
	PathProfile        = "/auth/profile"
	PathHealth         = "/health"
)

// PathAppointment returns the path of a single appointment.
func PathAppointment(id string) string {
	return PathAppointments + "/" + url.PathEscape(id)
}

// PathService returns the path of a single service.
func PathService(id string) string {
	return PathServices + "/" + url.PathEscape(id)
}

// ListAppointments returns the current user's appointments.
func (c *Client) ListAppointments(ctx context.Context) ([]booking.Appointment, error) {
	var out []booking.Appointment
	if err := c.Do(ctx, "list_appointments", http.MethodGet, PathAppointments, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAppointment returns one appointment.
func (c *Client) GetAppointment(ctx context.Context, id string) (booking.Appointment, error) {
	var out booking.Appointment
	err := c.Do(ctx, "get_appointment", http.MethodGet, PathAppointment(id), nil, nil, &out)
	return out, err
}

// CreateAppointment books a slot.
func (c *Client) CreateAppointment(ctx context.Context, req booking.CreateAppointmentRequest) (booking.Appointment, error) {
	if err := req.Validate(); err != nil {
		return booking.Appointment{}, &APIError{Kind: KindValidation, Operation: "create_appointment", Message: err.Error(), Err: err}
	}
	var out booking.Appointment
	err := c.Do(ctx, "create_appointment", http.MethodPost, PathAppointments, nil, req, &out)
	return out, err
}

// UpdateAppointment applies a partial update.
func (c *Client) UpdateAppointment(ctx context.Context, id string, req booking.UpdateAppointmentRequest) (booking.Appointment, error) {
	var out booking.Appointment
	err := c.Do(ctx, "update_appointment", http.MethodPut, PathAppointment(id), nil, req, &out)
	return out, err
}

// CancelAppointment asks the backend to cancel an appointment and returns
// its authoritative new state.
func (c *Client) CancelAppointment(ctx context.Context, id string) (booking.Appointment, error) {
	var out booking.Appointment
	err := c.Do(ctx, "cancel_appointment", http.MethodPatch, PathAppointment(id)+"/cancel", nil, nil, &out)
	return out, err
}

// AvailableSlots returns the slots for a date, optionally scoped to a service.
func (c *Client) AvailableSlots(ctx context.Context, date, serviceID string) ([]booking.TimeSlot, error) {
	query := url.Values{"date": []string{date}}
	if serviceID != "" {
		query.Set("serviceId", serviceID)
	}
	var out []booking.TimeSlot
	if err := c.Do(ctx, "available_slots", http.MethodGet, PathAvailableSlots, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListServices returns the service catalog.
func (c *Client) ListServices(ctx context.Context) ([]booking.Service, error) {
	var out []booking.Service
	if err := c.Do(ctx, "list_services", http.MethodGet, PathServices, nil, nil, &out); err != nil {
		return nil, err
	}
	for _, s := range out {
		if err := s.Validate(); err != nil {
			c.logger.Warn().Err(err).Msg("Backend returned invalid service")
		}
	}
	return out, nil
}

// GetService returns one catalog entry.
func (c *Client) GetService(ctx context.Context, id string) (booking.Service, error) {
	var out booking.Service
	err := c.Do(ctx, "get_service", http.MethodGet, PathService(id), nil, nil, &out)
	return out, err
}

// GetProfile returns the authenticated user.
func (c *Client) GetProfile(ctx context.Context) (booking.User, error) {
	var out booking.User
	err := c.Do(ctx, "get_profile", http.MethodGet, PathProfile, nil, nil, &out)
	return out, err
}

// UpdateProfile applies a partial profile update.
func (c *Client) UpdateProfile(ctx context.Context, req booking.UpdateProfileRequest) (booking.User, error) {
	var out booking.User
	err := c.Do(ctx, "update_profile", http.MethodPut, PathProfile, nil, req, &out)
	return out, err
}

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) (booking.AuthResult, error) {
	var out booking.AuthResult
	if err := c.Do(ctx, "login", http.MethodPost, PathLogin, nil, booking.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return booking.AuthResult{}, err
	}
	if err := c.session.Set(ctx, out.Token); err != nil {
		return booking.AuthResult{}, fmt.Errorf("login: %w", err)
	}
	return out, nil
}

// Register creates an account and stores the issued token in the session.
func (c *Client) Register(ctx context.Context, name, email, password string) (booking.AuthResult, error) {
	var out booking.AuthResult
	req := booking.RegisterRequest{Name: name, Email: email, Password: password}
	if err := c.Do(ctx, "register", http.MethodPost, PathRegister, nil, req, &out); err != nil {
		return booking.AuthResult{}, err
	}
	if err := c.session.Set(ctx, out.Token); err != nil {
		return booking.AuthResult{}, fmt.Errorf("register: %w", err)
	}
	return out, nil
}

// Logout drops the session token. It makes no backend call.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Clear(ctx, "logout")
}

// Health checks the backend. Any 2xx is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Do(ctx, "health", http.MethodGet, PathHealth, nil, nil, nil)
}
