package notifications

import (
	"time"

	"github.com/merchware/notify/internal/domain"
)

// QueueStatus represents the status of a queued delivery task.
type QueueStatus string

// Queue statuses.
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// QueueItem is one asynchronous delivery task: deliver one event's
// notification to one recipient via one channel. The ID doubles as the
// delivery correlation id assigned at enqueue time; LogID references the
// single audit row for this task's lineage once it exists.
type QueueItem struct {
	ID            string
	EventKey      string
	Channel       domain.ChannelType
	Recipient     domain.Recipient
	ConfigID      string
	TemplateKey   string
	ViewName      string
	Data          map[string]any
	LogID         string
	Status        QueueStatus
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SentAt        *time.Time
}

// QueueStats contains queue size counts by status.
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
}
