package types

import (
	"fmt"
	"strings"
)

// Address is the shipping/billing snapshot stored as jsonb on orders.
type Address struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
}

// Normalize trims fields and applies the US country default.
func (a Address) Normalize() Address {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if a.Country == "" {
		a.Country = "US"
	}
	if a.Line2 != nil {
		line2 := strings.TrimSpace(*a.Line2)
		if line2 == "" {
			a.Line2 = nil
		} else {
			a.Line2 = &line2
		}
	}
	return a
}

// Validate checks the required fields.
func (a Address) Validate() error {
	switch {
	case a.Line1 == "":
		return fmt.Errorf("address: missing line1")
	case a.City == "":
		return fmt.Errorf("address: missing city")
	case a.State == "":
		return fmt.Errorf("address: missing state")
	case a.PostalCode == "":
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}
