package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Namespace prefixes every key string.
const Namespace = "booking"

// Key identifies one cached resource.
// Collection keys leave ID empty; entity keys set it. Params distinguish
// filtered views of the same resource, e.g. slots per date and service.
type Key struct {
	// Resource is the resource class (e.g. "appointments", "available-slots")
	Resource string

	// ID is the entity identifier ("" for collections)
	ID string

	// Params are filter parameters (e.g. {"date": "2024-06-10"})
	Params url.Values
}

// String generates a deterministic key string. IDs and param values are
// query-escaped so a value can never spell out another segment.
// Format: booking:resource:id=ID:param1=val1:param2=val2
//
// Example:
//
//	booking:available-slots:date=2024-06-10:serviceId=3
func (k Key) String() string {
	parts := []string{Namespace, k.Resource}

	if k.ID != "" {
		parts = append(parts, "id="+url.QueryEscape(k.ID))
	}

	// Add params (sorted for determinism, empty values dropped)
	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			if k.Params.Get(name) != "" {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, url.QueryEscape(name)+"="+url.QueryEscape(k.Params.Get(name)))
		}
	}

	return strings.Join(parts, ":")
}

// Collection reports whether k addresses a collection rather than one entity.
func (k Key) Collection() bool {
	return k.ID == ""
}

// ResourcePrefix returns the prefix shared by every key of a resource class.
func ResourcePrefix(resource string) string {
	return Namespace + ":" + resource
}

// belongsTo reports whether key is a key of resource.
func belongsTo(key, resource string) bool {
	prefix := ResourcePrefix(resource)
	return key == prefix || strings.HasPrefix(key, prefix+":")
}
