package types

import (
	"fmt"
	"strings"
)

// Address is the delivery destination stored as jsonb on a material order.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Validate ensures the required address components are present.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.State) == "" {
		return fmt.Errorf("address: missing state")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}

// String renders the address as a single shipping line.
func (a Address) String() string {
	parts := []string{a.Line1}
	if a.Line2 != nil && strings.TrimSpace(*a.Line2) != "" {
		parts = append(parts, *a.Line2)
	}
	country := a.Country
	if strings.TrimSpace(country) == "" {
		country = "US"
	}
	parts = append(parts, fmt.Sprintf("%s, %s %s", a.City, a.State, a.PostalCode), country)
	return strings.Join(parts, ", ")
}
