package types

import "strings"

// ShippingAddress is the recipient block collected at checkout. It is stored as
// jsonb on the order row.
type ShippingAddress struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// MissingFields lists the required fulfillment fields that are blank.
func (a *ShippingAddress) MissingFields() []string {
	if a == nil {
		return []string{"line1", "city", "postal_code", "country"}
	}
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"line1", a.Line1},
		{"city", a.City},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// IsShippable reports whether every required fulfillment field is present.
func (a *ShippingAddress) IsShippable() bool {
	return len(a.MissingFields()) == 0
}
