// Package sms provides the SMS notification channel.
//
// No SMS provider is integrated yet: the channel validates phone numbers
// and participates in configuration, but reports unconfigured and every
// send fails cleanly. Delivery tasks routed here end as failed log rows,
// never as a crash.
package sms

import (
	"context"
	"errors"
	"regexp"

	"github.com/merchware/notify/internal/domain"
	"github.com/merchware/notify/internal/notifications"
)

// ErrProviderNotIntegrated is returned by every send attempt.
var ErrProviderNotIntegrated = errors.New("sms provider not integrated")

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// Channel is the SMS delivery stub.
type Channel struct{}

// NewChannel creates the SMS channel stub.
func NewChannel() *Channel {
	return &Channel{}
}

// Type returns the channel type.
func (c *Channel) Type() domain.ChannelType {
	return domain.ChannelTypeSMS
}

// Name returns the human-readable channel name.
func (c *Channel) Name() string {
	return "SMS"
}

// IsConfigured always reports false until a provider is integrated.
func (c *Channel) IsConfigured() bool {
	return false
}

// RecipientLabel names the address kind this channel delivers to.
func (c *Channel) RecipientLabel() string {
	return "phone number"
}

// Validate reports whether the address looks like a phone number.
func (c *Channel) Validate(address string) bool {
	return phonePattern.MatchString(address)
}

// Send always fails with a deterministic error.
func (c *Channel) Send(_ context.Context, _ notifications.Message) (*notifications.DeliveryResult, error) {
	return nil, ErrProviderNotIntegrated
}
