package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posterloft/posterloft-backend/pkg/enums"
	"github.com/posterloft/posterloft-backend/pkg/types"
)

// Order is a paid poster order, created once per payment session.
type Order struct {
	ID                        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PaymentSessionID          string                 `gorm:"column:payment_session_id;not null;uniqueIndex:orders_payment_session_id_key" json:"payment_session_id"`
	FulfillmentOrderID        *string                `gorm:"column:fulfillment_order_id;uniqueIndex:orders_fulfillment_order_id_key" json:"fulfillment_order_id,omitempty"`
	CustomerEmail             *string                `gorm:"column:customer_email" json:"customer_email,omitempty"`
	CustomerName              *string                `gorm:"column:customer_name" json:"customer_name,omitempty"`
	AccountID                 *string                `gorm:"column:account_id;index" json:"account_id,omitempty"`
	CatalogItemID             string                 `gorm:"column:catalog_item_id;not null" json:"catalog_item_id"`
	Size                      string                 `gorm:"column:size;not null" json:"size"`
	Paper                     string                 `gorm:"column:paper;not null" json:"paper"`
	LayoutMode                string                 `gorm:"column:layout_mode;not null" json:"layout_mode"`
	PrintAssetURL             string                 `gorm:"column:print_asset_url;not null" json:"print_asset_url"`
	Currency                  string                 `gorm:"column:currency;not null" json:"currency"`
	AmountTotal               decimal.Decimal        `gorm:"column:amount_total;type:numeric(14,3);not null" json:"amount_total"`
	Status                    enums.OrderStatus      `gorm:"column:status;type:text;not null" json:"status"`
	FulfillmentStatus         *string                `gorm:"column:fulfillment_status" json:"fulfillment_status,omitempty"`
	FulfillmentError          *string                `gorm:"column:fulfillment_error" json:"fulfillment_error,omitempty"`
	TrackingNumber            *string                `gorm:"column:tracking_number" json:"tracking_number,omitempty"`
	TrackingURL               *string                `gorm:"column:tracking_url" json:"tracking_url,omitempty"`
	ShippingAddress           *types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json" json:"shipping_address,omitempty"`
	ShippedAt                 *time.Time             `gorm:"column:shipped_at" json:"shipped_at,omitempty"`
	ShippedNotificationSentAt *time.Time             `gorm:"column:shipped_notification_sent_at" json:"shipped_notification_sent_at,omitempty"`
	CreatedAt                 time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// RecipientEmail returns the address notifications go to, or "" when unknown.
func (o *Order) RecipientEmail() string {
	if o == nil || o.CustomerEmail == nil {
		return ""
	}
	return *o.CustomerEmail
}
