package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Unique constraints on the orders table.
const (
	ConstraintOrdersPaymentSessionID   = "orders_payment_session_id_key"
	ConstraintOrdersFulfillmentOrderID = "orders_fulfillment_order_id_key"
)

const uniqueViolationCode = "23505"

// SQLite reports the violated column instead of the constraint name.
var constraintColumns = map[string]string{
	ConstraintOrdersPaymentSessionID:   "orders.payment_session_id",
	ConstraintOrdersFulfillmentOrderID: "orders.fulfillment_order_id",
}

// IsUniqueViolation reports whether err is a unique violation. A non-empty
// constraintName must match the violated constraint.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolationCode {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) != uniqueViolationCode {
			return false
		}
		return constraintName == "" || pqErr.Constraint == constraintName
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraintName == "" {
		return true
	}
	if strings.Contains(msg, constraintName) {
		return true
	}
	column, ok := constraintColumns[constraintName]
	return ok && strings.Contains(msg, column)
}
