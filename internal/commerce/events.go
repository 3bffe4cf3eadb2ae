// Package commerce defines the platform events the notification engine
// ships with, together with their recipient resolvers.
package commerce

import "time"

// Customer identifies the buyer attached to an order or account.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Order is the order snapshot carried by order events.
type Order struct {
	Number   string    `json:"number"`
	Status   string    `json:"status"`
	Total    float64   `json:"total"`
	Currency string    `json:"currency"`
	PlacedAt time.Time `json:"placed_at"`
}

// Payment is the payment snapshot carried by payment events.
type Payment struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Method   string  `json:"method"`
}

// OrderCreated is raised when a customer places an order.
type OrderCreated struct {
	StoreName string
	Customer  Customer
	Order     Order
}

// EventKey returns the registry type key.
func (OrderCreated) EventKey() string { return "order.created" }

// OrderStatusUpdated is raised when an order moves to a new status.
type OrderStatusUpdated struct {
	StoreName      string
	Customer       Customer
	Order          Order
	PreviousStatus string
}

// EventKey returns the registry type key.
func (OrderStatusUpdated) EventKey() string { return "order.status_updated" }

// UserRegistered is raised when a new account is created.
type UserRegistered struct {
	StoreName string
	Customer  Customer
}

// EventKey returns the registry type key.
func (UserRegistered) EventKey() string { return "user.registered" }

// PaymentReceived is raised when a payment settles against an order.
type PaymentReceived struct {
	StoreName string
	Customer  Customer
	Order     Order
	Payment   Payment
}

// EventKey returns the registry type key.
func (PaymentReceived) EventKey() string { return "payment.received" }
