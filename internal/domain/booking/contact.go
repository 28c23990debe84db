package booking

import (
	"net/mail"
	"strings"

	"github.com/rechargetravels/service-booking/pkg/domain"
)

// Contact is the customer's contact details as submitted with the booking.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Normalize trims whitespace and lowercases the e-mail address.
func (c Contact) Normalize() Contact {
	return Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// Validate checks that the contact can be reached.
func (c Contact) Validate() error {
	if c.Name == "" {
		return domain.NewValidationError("contact name is required")
	}
	if c.Email == "" {
		return domain.NewValidationError("contact email is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return domain.NewValidationError("contact email is invalid")
	}
	if c.Phone == "" {
		return domain.NewValidationError("contact phone is required")
	}
	return nil
}

// Matches reports whether email identifies this contact.
func (c Contact) Matches(email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), c.Email)
}
