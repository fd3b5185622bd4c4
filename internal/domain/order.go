package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusCooking        OrderStatus = "cooking"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCanceled       OrderStatus = "canceled"
)

// Terminal reports whether no further status change is expected.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCanceled
}

type OrderItem struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	SelectedOptions Selection       `json:"selected_options,omitempty"`
}

// Order is owned by the order backend; this service only reads it.
// ServerTimeRemainingMinutes is the kitchen's override and wins over any
// locally derived countdown when set and positive.
type Order struct {
	ID                          uuid.UUID       `json:"id"`
	Status                      OrderStatus     `json:"status"`
	CreatedAt                   time.Time       `json:"created_at"`
	EstimatedPreparationMinutes int             `json:"estimated_preparation_minutes"`
	ServerTimeRemainingMinutes  *float64        `json:"server_time_remaining_minutes,omitempty"`
	Items                       []OrderItem     `json:"items"`
	Subtotal                    decimal.Decimal `json:"subtotal"`
	Tax                         decimal.Decimal `json:"tax"`
	Total                       decimal.Decimal `json:"total"`
	UpdatedAt                   time.Time       `json:"updated_at"`
}
