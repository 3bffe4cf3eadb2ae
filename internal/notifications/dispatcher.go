package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/merchware/notify/internal/domain"
	"github.com/merchware/notify/internal/pkg/ctxlog"
)

// Dispatcher fans a raised domain event out into delivery tasks.
//
// Handle runs synchronously inline with the event source and performs no
// blocking I/O beyond configuration reads; rendering and channel sends
// happen later in the queue worker. Dispatch failures never propagate to
// the caller: every precondition miss terminates silently with a warning.
type Dispatcher struct {
	events      *EventRegistry
	channels    *ChannelRegistry
	repo        Repository
	maxAttempts int
}

// NewDispatcher creates a dispatcher over the given registries and store.
func NewDispatcher(events *EventRegistry, channels *ChannelRegistry, repo Repository, maxAttempts int) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = DefaultWorkerConfig().MaxAttempts
	}
	return &Dispatcher{
		events:      events,
		channels:    channels,
		repo:        repo,
		maxAttempts: maxAttempts,
	}
}

// Handle observes a raised domain event and enqueues one delivery task
// per (enabled configuration, deliverable recipient) pair.
func (d *Dispatcher) Handle(ctx context.Context, event domain.Event) {
	log := ctxlog.FromContext(ctx)

	meta, ok := d.events.LookupEvent(event)
	if !ok {
		log.Warn("event not registered, skipping dispatch", "event_key", event.EventKey())
		recordEventDispatched(event.EventKey(), "unregistered")
		return
	}
	if !meta.Notifiable {
		recordEventDispatched(meta.Key, "not_notifiable")
		return
	}

	configs, err := d.repo.ListEnabledConfigurations(ctx, meta.Key)
	if err != nil {
		log.Warn("failed to load notification configurations", "event_key", meta.Key, "error", err)
		recordEventDispatched(meta.Key, "config_error")
		return
	}
	if len(configs) == 0 {
		log.Warn("no enabled configurations for event", "event_key", meta.Key)
		recordEventDispatched(meta.Key, "no_configs")
		return
	}

	customers, data := d.resolve(ctx, meta, event)

	items := make([]*QueueItem, 0, len(configs))
	for _, cfg := range configs {
		items = append(items, d.buildTasks(ctx, meta, cfg, customers, data)...)
	}

	if len(items) == 0 {
		log.Warn("no deliverable recipients for event", "event_key", meta.Key)
		recordEventDispatched(meta.Key, "no_recipients")
		return
	}

	if err := d.repo.EnqueueBatch(ctx, items); err != nil {
		log.Error("failed to enqueue delivery tasks", "event_key", meta.Key, "count", len(items), "error", err)
		recordEventDispatched(meta.Key, "enqueue_error")
		return
	}

	recordEventDispatched(meta.Key, "fanned_out")
	recordTasksEnqueued(meta.Key, len(items))

	log.Info("event fanned out",
		"event_key", meta.Key,
		"configurations", len(configs),
		"tasks", len(items),
	)
}

// resolve invokes the registered resolver once; both the recipient list
// and the notification data are reused across all configurations.
func (d *Dispatcher) resolve(ctx context.Context, meta EventMetadata, event domain.Event) ([]domain.Recipient, map[string]any) {
	log := ctxlog.FromContext(ctx)

	if meta.Resolver == nil {
		return nil, map[string]any{}
	}

	customers, err := meta.Resolver.Resolve(ctx, event)
	if err != nil {
		log.Warn("recipient resolver failed", "event_key", meta.Key, "error", err)
		customers = nil
	}

	data, err := meta.Resolver.NotificationData(ctx, event)
	if err != nil {
		log.Warn("notification data extraction failed", "event_key", meta.Key, "error", err)
		data = map[string]any{}
	}
	if data == nil {
		data = map[string]any{}
	}

	return customers, data
}

// buildTasks builds the delivery tasks for one configuration: customer
// recipients when notify_customer is set, plus one synthetic admin
// recipient per configured address.
func (d *Dispatcher) buildTasks(ctx context.Context, meta EventMetadata, cfg domain.NotificationConfiguration, customers []domain.Recipient, data map[string]any) []*QueueItem {
	log := ctxlog.FromContext(ctx)

	channel, ok := d.channels.Get(cfg.Channel)
	if !ok {
		// Not fatal to the event: other configurations still fan out.
		log.Warn("configuration references unregistered channel",
			"event_key", cfg.EventKey,
			"channel", cfg.Channel,
		)
		return nil
	}

	recipients := make([]domain.Recipient, 0, len(customers)+len(cfg.AdminRecipients))
	if cfg.NotifyCustomer {
		recipients = append(recipients, customers...)
	}
	for _, addr := range cfg.AdminRecipients {
		recipients = append(recipients, domain.NewAdminRecipient(addr, cfg.Channel))
	}

	templateKey := meta.Key
	if cfg.TemplateKey != nil && *cfg.TemplateKey != "" {
		templateKey = *cfg.TemplateKey
	}

	items := make([]*QueueItem, 0, len(recipients))
	for _, recipient := range recipients {
		address := recipient.AddressFor(cfg.Channel)
		if address == "" {
			log.Warn("recipient has no address for channel",
				"event_key", cfg.EventKey,
				"channel", cfg.Channel,
				"recipient", recipient.Name,
			)
			continue
		}
		if !channel.Validate(address) {
			log.Warn("recipient address failed channel validation",
				"event_key", cfg.EventKey,
				"channel", cfg.Channel,
				"address", address,
			)
			continue
		}

		items = append(items, &QueueItem{
			ID:            uuid.NewString(),
			EventKey:      cfg.EventKey,
			Channel:       cfg.Channel,
			Recipient:     recipient,
			ConfigID:      cfg.ID,
			TemplateKey:   templateKey,
			ViewName:      meta.ViewName,
			Data:          data,
			Status:        QueueStatusPending,
			MaxAttempts:   d.maxAttempts,
			NextAttemptAt: time.Now(),
		})
	}

	return items
}
