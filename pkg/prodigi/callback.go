package prodigi

import (
	"encoding/json"
	"strings"
	"time"
)

// Callback is the body Prodigi posts to the configured callback URL. Prodigi
// wraps the order in a CloudEvents envelope; older integrations post the
// order at the top level, so both shapes are accepted.
type Callback struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type,omitempty"`
	SpecVersion string `json:"specversion,omitempty"`
	Data        *struct {
		Order *Order `json:"order"`
	} `json:"data,omitempty"`
	Order *Order `json:"order,omitempty"`
}

// ParseCallback decodes a callback body.
func ParseCallback(body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, err
	}
	return &cb, nil
}

// OrderPayload returns the order carried by the callback, if any.
func (c *Callback) OrderPayload() *Order {
	if c == nil {
		return nil
	}
	if c.Data != nil && c.Data.Order != nil {
		return c.Data.Order
	}
	return c.Order
}

// RawStatus picks the most specific status string: the latest shipment
// status when present, then the order stage.
func (o *Order) RawStatus() string {
	if o == nil {
		return ""
	}
	if shipment := o.LatestShipment(); shipment != nil && strings.TrimSpace(shipment.Status) != "" {
		return strings.TrimSpace(shipment.Status)
	}
	return strings.TrimSpace(o.Status.Stage)
}

// LatestShipment returns the last shipment that carries tracking details,
// falling back to the last shipment listed.
func (o *Order) LatestShipment() *Shipment {
	if o == nil || len(o.Shipments) == 0 {
		return nil
	}
	for i := len(o.Shipments) - 1; i >= 0; i-- {
		s := &o.Shipments[i]
		if s.Tracking.Number != "" || s.Tracking.URL != "" {
			return s
		}
	}
	return &o.Shipments[len(o.Shipments)-1]
}

// DispatchedAt parses the shipment dispatch date. Prodigi sends RFC 3339
// timestamps; a bare date is accepted too.
func (s *Shipment) DispatchedAt() *time.Time {
	if s == nil {
		return nil
	}
	raw := strings.TrimSpace(s.DispatchDate)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
