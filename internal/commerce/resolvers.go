package commerce

import (
	"context"
	"fmt"

	"github.com/merchware/notify/internal/domain"
)

// orderCreatedResolver resolves recipients and template data for
// OrderCreated events.
type orderCreatedResolver struct{}

func (orderCreatedResolver) Resolve(_ context.Context, event domain.Event) ([]domain.Recipient, error) {
	e, ok := event.(OrderCreated)
	if !ok {
		return nil, fmt.Errorf("unexpected event type %T", event)
	}
	return []domain.Recipient{recipientFor(e.Customer)}, nil
}

func (orderCreatedResolver) NotificationData(_ context.Context, event domain.Event) (map[string]any, error) {
	e, ok := event.(OrderCreated)
	if !ok {
		return nil, fmt.Errorf("unexpected event type %T", event)
	}
	return map[string]any{
		"store_name":    e.StoreName,
		"customer_name": e.Customer.Name,
		"order":         orderData(e.Order),
	}, nil
}

// orderStatusResolver resolves recipients and template data for
// OrderStatusUpdated events.
type orderStatusResolver struct{}

func (orderStatusResolver) Resolve(_ context.Context, event domain.Event) ([]domain.Recipient, error) {
	e, ok := event.(OrderStatusUpdated)
	if !ok {
		return nil, fmt.Errorf("unexpected event type %T", event)
	}
	return []domain.Recipient{recipientFor(e.Customer)}, nil
}

func (orderStatusResolver) NotificationData(_ context.Context, event domain.Event) (map[string]any, error) {
	e, ok := event.(OrderStatusUpdated)
	if !ok {
		return nil, fmt.Errorf("unexpected event type %T", event)
	}
	return map[string]any{
		"store_name":      e.StoreName,
		"customer_name":   e.Customer.Name,
		"previous_status": e.PreviousStatus,
		"order":           orderData(e.Order),
	}, nil
}

// userRegisteredResolver resolves recipients and template data for
// UserRegistered events.
type userRegisteredResolver struct{}

func (userRegisteredResolver) Resolve(_ context.Context, event domain.Event) ([]domain.Recipient, error) {
	e, ok := event.(UserRegistered)
	if !ok {
		return nil, fmt.Errorf("unexpected event type %T", event)
	}
	return []domain.Recipient{recipientFor(e.Customer)}, nil
}

func (userRegisteredResolver) NotificationData(_ context.Context, event domain.Event) (map[string]any, error) {
	e, ok := event.(UserRegistered)
	if !ok {
		return nil, fmt.Errorf("unexpected event type %T", event)
	}
	return map[string]any{
		"store_name":    e.StoreName,
		"customer_name": e.Customer.Name,
		"user": map[string]any{
			"name":  e.Customer.Name,
			"email": e.Customer.Email,
		},
	}, nil
}

// paymentReceivedResolver resolves recipients and template data for
// PaymentReceived events.
type paymentReceivedResolver struct{}

func (paymentReceivedResolver) Resolve(_ context.Context, event domain.Event) ([]domain.Recipient, error) {
	e, ok := event.(PaymentReceived)
	if !ok {
		return nil, fmt.Errorf("unexpected event type %T", event)
	}
	return []domain.Recipient{recipientFor(e.Customer)}, nil
}

func (paymentReceivedResolver) NotificationData(_ context.Context, event domain.Event) (map[string]any, error) {
	e, ok := event.(PaymentReceived)
	if !ok {
		return nil, fmt.Errorf("unexpected event type %T", event)
	}
	return map[string]any{
		"store_name":    e.StoreName,
		"customer_name": e.Customer.Name,
		"order":         orderData(e.Order),
		"payment": map[string]any{
			"amount":   e.Payment.Amount,
			"currency": e.Payment.Currency,
			"method":   e.Payment.Method,
		},
	}, nil
}

func recipientFor(c Customer) domain.Recipient {
	return domain.NewCustomerRecipient(c.Name, c.Email, c.Phone, nil)
}

func orderData(o Order) map[string]any {
	return map[string]any{
		"number":   o.Number,
		"status":   o.Status,
		"total":    o.Total,
		"currency": o.Currency,
	}
}
