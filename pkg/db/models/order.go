package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardstudio/detailflow-backend/pkg/enums"
)

// Order is the single shared mutable row of the purchase flow. It is touched
// from the create-order endpoint, the verify endpoint, and the Stripe webhook;
// every mutation path must patch only empty columns (see internal/orders).
type Order struct {
	OrderUUID       uuid.UUID         `gorm:"column:order_uuid;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         string            `gorm:"column:order_id;not null;uniqueIndex:idx_orders_order_id"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'created'"`
	ProductID       string            `gorm:"column:product_id;not null"`
	TierID          string            `gorm:"column:tier_id;not null"`
	AddonIDs        []string          `gorm:"column:addon_ids;type:jsonb;serializer:json"`
	CustomerEmail   string            `gorm:"column:customer_email"`
	StripeSessionID *string           `gorm:"column:stripe_session_id;index:idx_orders_stripe_session_id"`
	EmailSentAt     *time.Time        `gorm:"column:email_sent_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (Order) TableName() string {
	return "orders"
}
