package notifications

import "errors"

// Registration errors. These are fatal at startup and never recovered.
var (
	ErrEventAlreadyRegistered   = errors.New("event type key already registered")
	ErrChannelAlreadyRegistered = errors.New("channel already registered")
	ErrInvalidRegistration      = errors.New("invalid registration")
)

// Repository errors.
var (
	ErrConfigurationNotFound = errors.New("notification configuration not found")
	ErrTemplateNotFound      = errors.New("notification template not found")
	ErrLogNotFound           = errors.New("notification log not found")
)

// Service errors.
var (
	ErrEventNotRegistered   = errors.New("event type is not registered")
	ErrChannelNotRegistered = errors.New("channel is not registered")
	ErrSystemTemplate       = errors.New("system templates cannot be deleted")
)
