package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// orderConstraintFields maps orders table constraints to the order field a
// violation is about.
var orderConstraintFields = map[string]string{
	"orders_pkey":                     "id",
	"orders_payment_session_id_key":   "payment_session_id",
	"orders_fulfillment_order_id_key": "fulfillment_order_id",
	"orders_status_check":             "status",
	"orders_currency_lowercase":       "currency",
}

// PostgresDetail holds the server-side fields of a Postgres error.
type PostgresDetail struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump is the log-friendly view of an error chain.
type ErrorDump struct {
	TopMessage string          `json:"top_message"`
	Code       Code            `json:"code,omitempty"`
	Retryable  bool            `json:"retryable"`
	Chain      []string        `json:"chain,omitempty"`
	Postgres   *PostgresDetail `json:"postgres,omitempty"`
	// OrderField names the order column a constraint violation refers to.
	OrderField string `json:"order_field,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	code := CodeOf(err)
	d := ErrorDump{
		TopMessage: err.Error(),
		Code:       code,
		Retryable:  MetadataFor(code).Retryable,
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	d.Postgres = postgresDetail(err)
	if d.Postgres != nil {
		d.OrderField = orderConstraintFields[d.Postgres.Constraint]
	}
	return d
}

// LogFields flattens the dump for structured logging. The code itself is
// left to the logger. Postgres fields are only present when the chain
// carries a driver error.
func (d ErrorDump) LogFields() map[string]any {
	fields := map[string]any{
		"error_chain": d.Chain,
		"retryable":   d.Retryable,
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_constraint"] = pg.Constraint
		fields["pg_table"] = pg.Table
		fields["pg_column"] = pg.Column
		fields["pg_detail"] = pg.Detail
		fields["pg_message"] = pg.Message
	}
	if d.OrderField != "" {
		fields["order_field"] = d.OrderField
	}
	return fields
}

func postgresDetail(err error) *PostgresDetail {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return &PostgresDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}

	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return &PostgresDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
