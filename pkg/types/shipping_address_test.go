package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShippingAddressMissingFields(t *testing.T) {
	full := &ShippingAddress{Line1: "1 Main St", City: "Austin", PostalCode: "78701", Country: "US"}
	assert.True(t, full.IsShippable())
	assert.Empty(t, full.MissingFields())

	noPostal := &ShippingAddress{Line1: "1 Main St", City: "Austin", Country: "US"}
	assert.False(t, noPostal.IsShippable())
	assert.Equal(t, []string{"postal_code"}, noPostal.MissingFields())

	blank := &ShippingAddress{Line1: "  ", City: "Austin", PostalCode: "78701", Country: "US"}
	assert.Equal(t, []string{"line1"}, blank.MissingFields())

	var absent *ShippingAddress
	assert.False(t, absent.IsShippable())
	assert.Len(t, absent.MissingFields(), 4)
}
