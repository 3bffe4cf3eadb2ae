package domain

import "time"

// NotificationConfiguration is an operator-managed policy controlling
// whether and to whom an event notifies on a channel. Unique per
// (event_key, channel).
type NotificationConfiguration struct {
	ID              string         `json:"id"`
	EventKey        string         `json:"event_key"`
	EventName       string         `json:"event_name"`
	Channel         ChannelType    `json:"channel"`
	IsEnabled       bool           `json:"is_enabled"`
	NotifyCustomer  bool           `json:"notify_customer"`
	AdminRecipients []string       `json:"admin_recipients"`
	TemplateKey     *string        `json:"template_key"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NotificationTemplate is a persisted subject + content-slot template
// with {{variable}} substitution. System templates cannot be deleted.
type NotificationTemplate struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	TemplateKey        string            `json:"template_key"`
	Subject            string            `json:"subject"`
	Slots              map[string]string `json:"slots"`
	AvailableVariables []string          `json:"available_variables"`
	IsSystem           bool              `json:"is_system"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// LogStatus represents the delivery status of a notification log entry.
type LogStatus string

// Log statuses.
const (
	LogStatusPending LogStatus = "pending"
	LogStatusSent    LogStatus = "sent"
	LogStatusFailed  LogStatus = "failed"
)

// NotificationLog is the audit record of one delivery attempt lineage.
// A row is created as pending when the delivery task first executes and
// is updated in place on retries; rows are never deleted.
type NotificationLog struct {
	ID            string         `json:"id"`
	EventKey      string         `json:"event_key"`
	Channel       ChannelType    `json:"channel"`
	Recipient     string         `json:"recipient"`
	RecipientName string         `json:"recipient_name,omitempty"`
	Status        LogStatus      `json:"status"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Attempt       int            `json:"attempt"`
	EventData     map[string]any `json:"event_data,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
