package resources

import (
	"net/url"
	"time"

	"github.com/Sternrassler/smart-booking-client/pkg/cache"
)

// Resource classes.
const (
	ResourceAppointments = "appointments"
	ResourceAppointment  = "appointment"
	ResourceServices     = "services"
	ResourceService      = "service"
	ResourceUser         = "user"
	ResourceSlots        = "available-slots"
)

// DefaultPolicies returns the freshness table of the booking UI.
// Entity keys have no stale time and revalidate on every read.
func DefaultPolicies() map[string]cache.Policy {
	return map[string]cache.Policy{
		ResourceAppointments: {StaleTime: 5 * time.Minute},
		ResourceAppointment:  {},
		ResourceServices:     {StaleTime: 30 * time.Minute},
		ResourceService:      {},
		ResourceUser:         {StaleTime: 10 * time.Minute},
		ResourceSlots:        {StaleTime: 2 * time.Minute},
	}
}

// AppointmentsKey addresses the current user's appointment list.
func AppointmentsKey() cache.Key {
	return cache.Key{Resource: ResourceAppointments}
}

// AppointmentKey addresses one appointment.
func AppointmentKey(id string) cache.Key {
	return cache.Key{Resource: ResourceAppointment, ID: id}
}

// SlotsKey addresses availability for a date, optionally scoped to a service.
func SlotsKey(date, serviceID string) cache.Key {
	params := url.Values{"date": []string{date}}
	if serviceID != "" {
		params.Set("serviceId", serviceID)
	}
	return cache.Key{Resource: ResourceSlots, Params: params}
}

// ServicesKey addresses the service catalog.
func ServicesKey() cache.Key {
	return cache.Key{Resource: ResourceServices}
}

// ServiceKey addresses one catalog entry.
func ServiceKey(id string) cache.Key {
	return cache.Key{Resource: ResourceService, ID: id}
}

// UserKey addresses the authenticated user.
func UserKey() cache.Key {
	return cache.Key{Resource: ResourceUser}
}
