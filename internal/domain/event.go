// Package domain contains core types shared across modules.
package domain

// Event is a domain occurrence that may trigger notifications.
// Implementations are plain value types; EventKey returns the stable
// type key the event is registered under (e.g. "order.created").
type Event interface {
	EventKey() string
}

// ChannelType identifies a notification delivery mechanism.
type ChannelType string

// Built-in channel types. New channels register their own identifier.
const (
	ChannelTypeEmail ChannelType = "email"
	ChannelTypeSMS   ChannelType = "sms"
)
