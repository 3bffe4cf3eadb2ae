package notifications

import (
	"context"

	"github.com/merchware/notify/internal/domain"
)

// RecipientResolver extracts customer recipients and template data from
// a raised event. One resolver is registered per event type.
type RecipientResolver interface {
	// Resolve returns the customer recipients for the event. An empty
	// slice means no customers are notified (admin recipients may still be).
	Resolve(ctx context.Context, event domain.Event) ([]domain.Recipient, error)

	// NotificationData returns the flat-ish data merged into templates.
	// The dispatcher calls it once per event and reuses the result across
	// all configurations.
	NotificationData(ctx context.Context, event domain.Event) (map[string]any, error)
}
