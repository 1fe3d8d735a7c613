package fulfillment

import (
	"fmt"
	"sort"
	"strings"
)

// RejectedError means the provider refused the order for a business reason
// (bad address, unsupported SKU, ...). Resubmitting unchanged will fail again.
type RejectedError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *RejectedError) Error() string {
	if e.Reason != "" {
		return "fulfillment rejected: " + e.Reason
	}
	return fmt.Sprintf("fulfillment rejected: %v", e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// UnavailableError means the provider could not be reached or failed on its side.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("fulfillment unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func failureSummary(failures map[string][]string) string {
	if len(failures) == 0 {
		return ""
	}
	parts := make([]string, 0, len(failures))
	for field, codes := range failures {
		parts = append(parts, field+"="+strings.Join(codes, "|"))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
