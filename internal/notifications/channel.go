package notifications

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/merchware/notify/internal/domain"
)

// Message is a rendered notification ready for delivery to one address.
type Message struct {
	To       string
	Subject  string
	Body     string
	EventKey string
}

// DeliveryResult carries channel-provided response metadata for a
// successful send (provider message id, accepted timestamp, ...).
type DeliveryResult struct {
	Metadata map[string]any
}

// Channel is a pluggable delivery mechanism. Implementations are
// stateless and safe for concurrent use.
type Channel interface {
	// Type returns the channel identifier.
	Type() domain.ChannelType

	// Name returns the human-readable channel name.
	Name() string

	// IsConfigured reports whether the channel has the configuration it
	// needs to actually deliver (transport, credentials, from-address).
	IsConfigured() bool

	// RecipientLabel names the kind of address the channel delivers to.
	RecipientLabel() string

	// Validate reports whether the address is well-formed for this channel.
	Validate(address string) bool

	// Send delivers a rendered message. A send should be bounded by a
	// channel-specific timeout; failures are retried by the queue worker.
	Send(ctx context.Context, msg Message) (*DeliveryResult, error)
}

// ChannelSummary describes a configured channel for API consumers.
type ChannelSummary struct {
	Type           domain.ChannelType `json:"type"`
	Name           string             `json:"name"`
	RecipientLabel string             `json:"recipient_label"`
}

// ChannelRegistry holds channel bindings. Like the event registry it is
// built once at process start and is append-only.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[domain.ChannelType]Channel
}

// NewChannelRegistry creates an empty channel registry.
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{channels: make(map[domain.ChannelType]Channel)}
}

// Register binds a channel implementation. Registering a duplicate
// channel type is an error.
func (r *ChannelRegistry) Register(ch Channel) error {
	if ch == nil || ch.Type() == "" {
		return fmt.Errorf("%w: nil channel or empty type", ErrInvalidRegistration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[ch.Type()]; exists {
		return fmt.Errorf("%w: %q", ErrChannelAlreadyRegistered, ch.Type())
	}
	r.channels[ch.Type()] = ch
	return nil
}

// Get returns the channel bound to the given type.
func (r *ChannelRegistry) Get(channelType domain.ChannelType) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[channelType]
	return ch, ok
}

// ListConfigured returns summaries of channels reporting IsConfigured,
// sorted by type.
func (r *ChannelRegistry) ListConfigured() []ChannelSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]ChannelSummary, 0, len(r.channels))
	for _, ch := range r.channels {
		if !ch.IsConfigured() {
			continue
		}
		summaries = append(summaries, ChannelSummary{
			Type:           ch.Type(),
			Name:           ch.Name(),
			RecipientLabel: ch.RecipientLabel(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Type < summaries[j].Type })
	return summaries
}
