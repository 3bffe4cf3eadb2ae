package notifications

import (
	"strings"

	"github.com/merchware/notify/internal/domain"
)

// builtinTemplates are the package default views, keyed by
// {recipient_type}/{view_name}. Tenant templates stored under the same
// key take priority at resolve time.
var builtinTemplates = map[string]domain.NotificationTemplate{
	"customer/generic": {
		Name:        "Notification",
		TemplateKey: "generic",
		Subject:     "Notification from {{store_name}}",
		Slots: map[string]string{
			"greeting": "Hello {{customer_name}},",
			"content":  "{{message}}",
			"footer":   "Thank you,\n{{store_name}}",
		},
		AvailableVariables: []string{"store_name", "customer_name", "message"},
		IsSystem:           true,
	},
	"admin/generic": {
		Name:        "Admin Notification",
		TemplateKey: "generic",
		Subject:     "[{{store_name}}] Notification",
		Slots: map[string]string{
			"content": "{{message}}",
		},
		AvailableVariables: []string{"store_name", "message"},
		IsSystem:           true,
	},
	"customer/order-created": {
		Name:        "Order Confirmation",
		TemplateKey: "order.created",
		Subject:     "Your order {{order.number}} has been placed",
		Slots: map[string]string{
			"greeting": "Hi {{customer_name}},",
			"content":  "Thank you for your order {{order.number}} of {{order.total}} {{order.currency}}. We will let you know when it ships.",
			"footer":   "Thank you for shopping with {{store_name}}.",
		},
		AvailableVariables: []string{"customer_name", "store_name", "order.number", "order.total", "order.currency"},
		IsSystem:           true,
	},
	"admin/order-created": {
		Name:        "New Order",
		TemplateKey: "order.created",
		Subject:     "[{{store_name}}] New order {{order.number}}",
		Slots: map[string]string{
			"content": "Order {{order.number}} for {{order.total}} {{order.currency}} was placed by {{customer_name}}.",
		},
		AvailableVariables: []string{"customer_name", "store_name", "order.number", "order.total", "order.currency"},
		IsSystem:           true,
	},
	"customer/order-status-updated": {
		Name:        "Order Status Update",
		TemplateKey: "order.status_updated",
		Subject:     "Order {{order.number}} is now {{order.status}}",
		Slots: map[string]string{
			"greeting": "Hi {{customer_name}},",
			"content":  "Your order {{order.number}} status changed to {{order.status}}.",
		},
		AvailableVariables: []string{"customer_name", "order.number", "order.status"},
		IsSystem:           true,
	},
	"admin/order-status-updated": {
		Name:        "Order Status Update",
		TemplateKey: "order.status_updated",
		Subject:     "[{{store_name}}] Order {{order.number}} is now {{order.status}}",
		Slots: map[string]string{
			"content": "Order {{order.number}} status changed to {{order.status}}.",
		},
		AvailableVariables: []string{"store_name", "order.number", "order.status"},
		IsSystem:           true,
	},
	"customer/user-welcome": {
		Name:        "Welcome",
		TemplateKey: "user.registered",
		Subject:     "Welcome to {{store_name}}, {{customer_name}}",
		Slots: map[string]string{
			"greeting": "Hi {{customer_name}},",
			"content":  "Your account has been created. You can sign in with {{user.email}}.",
		},
		AvailableVariables: []string{"customer_name", "store_name", "user.email"},
		IsSystem:           true,
	},
	"admin/user-welcome": {
		Name:        "New Account",
		TemplateKey: "user.registered",
		Subject:     "[{{store_name}}] New account: {{user.email}}",
		Slots: map[string]string{
			"content": "A new account was registered for {{user.email}}.",
		},
		AvailableVariables: []string{"store_name", "user.email"},
		IsSystem:           true,
	},
	"customer/payment-received": {
		Name:        "Payment Received",
		TemplateKey: "payment.received",
		Subject:     "Payment received for order {{order.number}}",
		Slots: map[string]string{
			"greeting": "Hi {{customer_name}},",
			"content":  "We received your payment of {{payment.amount}} {{payment.currency}} via {{payment.method}}.",
		},
		AvailableVariables: []string{"customer_name", "order.number", "payment.amount", "payment.currency", "payment.method"},
		IsSystem:           true,
	},
	"admin/payment-received": {
		Name:        "Payment Received",
		TemplateKey: "payment.received",
		Subject:     "[{{store_name}}] Payment for order {{order.number}}",
		Slots: map[string]string{
			"content": "Payment of {{payment.amount}} {{payment.currency}} received via {{payment.method}} for order {{order.number}}.",
		},
		AvailableVariables: []string{"store_name", "order.number", "payment.amount", "payment.currency", "payment.method"},
		IsSystem:           true,
	},
}

// sampleData holds preview fixtures keyed by the first dash-delimited
// segment of a view name ("order-created" -> "order").
var sampleData = map[string]map[string]any{
	"order": {
		"store_name":    "Acme Store",
		"customer_name": "Jane Smith",
		"order": map[string]any{
			"number":   "ORD-1042",
			"status":   "processing",
			"total":    149.90,
			"currency": "USD",
		},
	},
	"user": {
		"store_name":    "Acme Store",
		"customer_name": "Jane Smith",
		"user": map[string]any{
			"email": "jane@example.com",
			"name":  "Jane Smith",
		},
	},
	"payment": {
		"store_name":    "Acme Store",
		"customer_name": "Jane Smith",
		"order": map[string]any{
			"number": "ORD-1042",
		},
		"payment": map[string]any{
			"amount":   149.90,
			"currency": "USD",
			"method":   "credit_card",
		},
	},
	"generic": {
		"store_name":    "Acme Store",
		"customer_name": "Jane Smith",
		"message":       "This is a sample notification.",
	},
}

// SampleData returns a copy of the preview fixture for a view name,
// selected by its first dash-delimited segment.
func SampleData(viewName string) map[string]any {
	segment := viewName
	if idx := strings.Index(viewName, "-"); idx > 0 {
		segment = viewName[:idx]
	}

	source, ok := sampleData[segment]
	if !ok {
		source = sampleData["generic"]
	}

	out := make(map[string]any, len(source))
	for k, v := range source {
		out[k] = v
	}
	return out
}
