package notifications

import (
	"context"
	"time"

	"github.com/merchware/notify/internal/domain"
)

// LogFilter narrows notification log listings.
type LogFilter struct {
	EventKey string
	Channel  domain.ChannelType
	Status   domain.LogStatus
	Limit    int
}

// Repository defines the interface for notifications data access.
type Repository interface {
	// Configurations. Reads must reflect the latest committed write; the
	// dispatcher reads through on every matching event.
	UpsertConfiguration(ctx context.Context, cfg *domain.NotificationConfiguration) error
	GetConfiguration(ctx context.Context, id string) (*domain.NotificationConfiguration, error)
	GetConfigurationByEventChannel(ctx context.Context, eventKey string, channel domain.ChannelType) (*domain.NotificationConfiguration, error)
	ListConfigurations(ctx context.Context) ([]domain.NotificationConfiguration, error)
	ListEnabledConfigurations(ctx context.Context, eventKey string) ([]domain.NotificationConfiguration, error)
	UpdateConfiguration(ctx context.Context, cfg *domain.NotificationConfiguration) error
	ToggleConfiguration(ctx context.Context, id string) (*domain.NotificationConfiguration, error)

	// Templates.
	CreateTemplate(ctx context.Context, tmpl *domain.NotificationTemplate) error
	GetTemplateByKey(ctx context.Context, key string) (*domain.NotificationTemplate, error)
	ListTemplates(ctx context.Context) ([]domain.NotificationTemplate, error)
	UpdateTemplate(ctx context.Context, tmpl *domain.NotificationTemplate) error
	DeleteTemplate(ctx context.Context, id string) error

	// Logs. Rows are created pending and updated in place; the attempt
	// guard ensures a stale task instance never overwrites a newer write.
	CreateLog(ctx context.Context, log *domain.NotificationLog) error
	UpdateLogStatus(ctx context.Context, id string, attempt int, status domain.LogStatus, errMsg string, sentAt *time.Time, metadata map[string]any) error
	ListLogs(ctx context.Context, filter LogFilter) ([]domain.NotificationLog, error)

	// Delivery queue.
	EnqueueBatch(ctx context.Context, items []*QueueItem) error
	FetchPending(ctx context.Context, limit int) ([]*QueueItem, error)
	AttachLog(ctx context.Context, itemID, logID string) error
	MarkAsSent(ctx context.Context, itemID string) error
	MarkAsFailed(ctx context.Context, itemID string, cause error) error
	MarkForRetry(ctx context.Context, itemID string, cause error, nextAttemptAt time.Time) error
	RecoverStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
	DeleteOldSentItems(ctx context.Context, olderThan time.Duration) (int64, error)
	GetQueueStats(ctx context.Context) (*QueueStats, error)
}
