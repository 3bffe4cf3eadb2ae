package commerce

import (
	"fmt"

	"github.com/merchware/notify/internal/domain"
	"github.com/merchware/notify/internal/notifications"
)

// RegisterEvents registers the platform's notifiable events. Called once
// at startup before the dispatcher accepts events.
func RegisterEvents(registry *notifications.EventRegistry) error {
	registrations := []struct {
		key      string
		label    string
		viewName string
		opts     []notifications.RegisterOption
	}{
		{
			key:      OrderCreated{}.EventKey(),
			label:    "Order Created",
			viewName: "order-created",
			opts: []notifications.RegisterOption{
				notifications.WithResolver(orderCreatedResolver{}),
				notifications.WithDescription("A customer placed a new order"),
				notifications.WithPackage("orders"),
			},
		},
		{
			key:      OrderStatusUpdated{}.EventKey(),
			label:    "Order Status Updated",
			viewName: "order-status-updated",
			opts: []notifications.RegisterOption{
				notifications.WithResolver(orderStatusResolver{}),
				notifications.WithDescription("An order moved to a new status"),
				notifications.WithPackage("orders"),
				notifications.WithDefaultChannels(domain.ChannelTypeEmail, domain.ChannelTypeSMS),
			},
		},
		{
			key:      UserRegistered{}.EventKey(),
			label:    "User Registered",
			viewName: "user-welcome",
			opts: []notifications.RegisterOption{
				notifications.WithResolver(userRegisteredResolver{}),
				notifications.WithDescription("A new customer account was created"),
				notifications.WithPackage("accounts"),
			},
		},
		{
			key:      PaymentReceived{}.EventKey(),
			label:    "Payment Received",
			viewName: "payment-received",
			opts: []notifications.RegisterOption{
				notifications.WithResolver(paymentReceivedResolver{}),
				notifications.WithDescription("A payment settled against an order"),
				notifications.WithPackage("payments"),
			},
		},
	}

	for _, reg := range registrations {
		if err := registry.Register(reg.key, reg.label, reg.viewName, reg.opts...); err != nil {
			return fmt.Errorf("register %s: %w", reg.key, err)
		}
	}
	return nil
}
