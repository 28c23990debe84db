package booking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rechargetravels/service-booking/pkg/domain"
)

// Payload holds the domain-specific booking fields. The engine treats it as
// opaque apart from the required keys below.
type Payload map[string]any

var requiredPayloadKeys = map[Domain][]string{
	DomainTour:           {"tourName", "startDate", "adults"},
	DomainGroupTransport: {"pickupLocation", "dropoffLocation", "travelDate", "passengers"},
	DomainTrain:          {"routeId", "departureStation", "arrivalStation", "travelDate", "passengers", "ticketClass"},
	DomainVehicleRental:  {"vehicleId", "pickupDate", "returnDate"},
}

// RequiredPayloadKeys returns the keys a payload must carry for the domain.
func RequiredPayloadKeys(d Domain) []string {
	return append([]string(nil), requiredPayloadKeys[d]...)
}

// ValidateFor checks that every required key for the domain is present and non-empty.
func (p Payload) ValidateFor(d Domain) error {
	var missing []string
	for _, key := range requiredPayloadKeys[d] {
		if isBlank(p[key]) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.NewValidationError(fmt.Sprintf("%s payload missing: %s", d, strings.Join(missing, ", ")))
	}
	return nil
}

// Clone returns a shallow copy.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}
