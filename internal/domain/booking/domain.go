package booking

import "fmt"

// Domain identifies the product line a booking belongs to. Every domain shares
// the same booking shape; only the payload differs.
type Domain string

const (
	DomainTour           Domain = "tour"
	DomainGroupTransport Domain = "group-transport"
	DomainTrain          Domain = "train"
	DomainVehicleRental  Domain = "vehicle-rental"
)

var domainPrefixes = map[Domain]string{
	DomainTour:           "TOUR",
	DomainGroupTransport: "GRP",
	DomainTrain:          "TRN",
	DomainVehicleRental:  "VR",
}

// AllDomains lists the supported domains in display order.
func AllDomains() []Domain {
	return []Domain{DomainTour, DomainGroupTransport, DomainTrain, DomainVehicleRental}
}

// IsValid returns true if the domain is supported.
func (d Domain) IsValid() bool {
	_, ok := domainPrefixes[d]
	return ok
}

// Prefix returns the reference prefix for the domain.
func (d Domain) Prefix() string { return domainPrefixes[d] }

func (d Domain) String() string { return string(d) }

// ParseDomain converts a string to a Domain, returning an error if unknown.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid booking domain: %s", s)
	}
	return d, nil
}
