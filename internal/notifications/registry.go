// Package notifications implements the registry-driven notification
// dispatch engine: event and channel registries, the dispatcher that fans
// raised domain events out into delivery tasks, the queue worker that
// executes them, and the template renderer.
package notifications

import (
	"fmt"
	"sort"
	"sync"

	"github.com/merchware/notify/internal/domain"
)

// EventMetadata describes a registered notifiable event type.
type EventMetadata struct {
	Key             string               `json:"key"`
	Label           string               `json:"label"`
	Description     string               `json:"description,omitempty"`
	Package         string               `json:"package,omitempty"`
	ViewName        string               `json:"view_name"`
	DefaultChannels []domain.ChannelType `json:"default_channels"`
	Notifiable      bool                 `json:"notifiable"`

	Resolver RecipientResolver `json:"-"`
}

// RegisterOption customizes an event registration.
type RegisterOption func(*EventMetadata)

// WithResolver sets the recipient resolver for the event type.
func WithResolver(r RecipientResolver) RegisterOption {
	return func(m *EventMetadata) { m.Resolver = r }
}

// WithDescription sets a human-readable description.
func WithDescription(d string) RegisterOption {
	return func(m *EventMetadata) { m.Description = d }
}

// WithPackage sets the originating package name.
func WithPackage(p string) RegisterOption {
	return func(m *EventMetadata) { m.Package = p }
}

// WithDefaultChannels overrides the default channel set (email).
func WithDefaultChannels(channels ...domain.ChannelType) RegisterOption {
	return func(m *EventMetadata) { m.DefaultChannels = channels }
}

// NotNotifiable registers the event for bookkeeping only; the dispatcher
// ignores it.
func NotNotifiable() RegisterOption {
	return func(m *EventMetadata) { m.Notifiable = false }
}

// EventRegistry holds event-type metadata. It is built once at process
// start and is append-only for the process lifetime.
type EventRegistry struct {
	mu    sync.RWMutex
	byKey map[string]EventMetadata
}

// NewEventRegistry creates an empty event registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{byKey: make(map[string]EventMetadata)}
}

// Register adds an event type to the registry. Registering a duplicate
// key is an error; there is no removal operation at runtime.
func (r *EventRegistry) Register(key, label, viewName string, opts ...RegisterOption) error {
	if key == "" {
		return fmt.Errorf("%w: empty event key", ErrInvalidRegistration)
	}
	if viewName == "" {
		return fmt.Errorf("%w: empty view name for %q", ErrInvalidRegistration, key)
	}

	meta := EventMetadata{
		Key:             key,
		Label:           label,
		ViewName:        viewName,
		DefaultChannels: []domain.ChannelType{domain.ChannelTypeEmail},
		Notifiable:      true,
	}
	for _, opt := range opts {
		opt(&meta)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[key]; exists {
		return fmt.Errorf("%w: %q", ErrEventAlreadyRegistered, key)
	}
	r.byKey[key] = meta
	return nil
}

// LookupKey returns metadata for a type key.
func (r *EventRegistry) LookupKey(key string) (EventMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.byKey[key]
	return meta, ok
}

// LookupEvent returns metadata for a raised event.
func (r *EventRegistry) LookupEvent(event domain.Event) (EventMetadata, bool) {
	return r.LookupKey(event.EventKey())
}

// IsRegistered reports whether a type key is registered.
func (r *EventRegistry) IsRegistered(key string) bool {
	_, ok := r.LookupKey(key)
	return ok
}

// List returns metadata for all registered events, sorted by key.
// When notifiableOnly is true, events registered as not notifiable are
// excluded.
func (r *EventRegistry) List(notifiableOnly bool) []EventMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]EventMetadata, 0, len(r.byKey))
	for _, meta := range r.byKey {
		if notifiableOnly && !meta.Notifiable {
			continue
		}
		events = append(events, meta)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })
	return events
}
