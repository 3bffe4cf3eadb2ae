// Package postgres provides the PostgreSQL implementation of the
// notifications repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/merchware/notify/internal/domain"
	"github.com/merchware/notify/internal/notifications"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertConfiguration creates or updates the configuration for an
// (event_key, channel) pair.
func (r *Repository) UpsertConfiguration(ctx context.Context, cfg *domain.NotificationConfiguration) error {
	recipients, err := json.Marshal(cfg.AdminRecipients)
	if err != nil {
		return fmt.Errorf("marshal admin recipients: %w", err)
	}
	metadata, err := marshalMap(cfg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO notification_configurations
			(event_key, event_name, channel, is_enabled, notify_customer, admin_recipients, template_key, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_key, channel) DO UPDATE SET
			event_name = EXCLUDED.event_name,
			is_enabled = EXCLUDED.is_enabled,
			notify_customer = EXCLUDED.notify_customer,
			admin_recipients = EXCLUDED.admin_recipients,
			template_key = EXCLUDED.template_key,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		cfg.EventKey,
		cfg.EventName,
		cfg.Channel,
		cfg.IsEnabled,
		cfg.NotifyCustomer,
		recipients,
		cfg.TemplateKey,
		metadata,
	).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
}

const configurationColumns = `
	id, event_key, event_name, channel, is_enabled, notify_customer,
	admin_recipients, template_key, metadata, created_at, updated_at
`

// GetConfiguration retrieves a configuration by id.
func (r *Repository) GetConfiguration(ctx context.Context, id string) (*domain.NotificationConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM notification_configurations WHERE id = $1`
	cfg, err := scanConfiguration(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrConfigurationNotFound
		}
		return nil, fmt.Errorf("get configuration: %w", err)
	}
	return cfg, nil
}

// GetConfigurationByEventChannel retrieves the configuration for an
// (event_key, channel) pair.
func (r *Repository) GetConfigurationByEventChannel(ctx context.Context, eventKey string, channel domain.ChannelType) (*domain.NotificationConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM notification_configurations WHERE event_key = $1 AND channel = $2`
	cfg, err := scanConfiguration(r.db.QueryRow(ctx, query, eventKey, channel))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrConfigurationNotFound
		}
		return nil, fmt.Errorf("get configuration by event and channel: %w", err)
	}
	return cfg, nil
}

// ListConfigurations retrieves all configurations.
func (r *Repository) ListConfigurations(ctx context.Context) ([]domain.NotificationConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM notification_configurations ORDER BY event_key, channel`
	return r.queryConfigurations(ctx, query)
}

// ListEnabledConfigurations retrieves enabled configurations for an event.
// Reads go straight to the store so the dispatcher always observes the
// latest committed operator edit.
func (r *Repository) ListEnabledConfigurations(ctx context.Context, eventKey string) ([]domain.NotificationConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM notification_configurations WHERE event_key = $1 AND is_enabled = true ORDER BY channel`
	return r.queryConfigurations(ctx, query, eventKey)
}

func (r *Repository) queryConfigurations(ctx context.Context, query string, args ...any) ([]domain.NotificationConfiguration, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	defer rows.Close()

	configs := make([]domain.NotificationConfiguration, 0)
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan configuration: %w", err)
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

// UpdateConfiguration updates an existing configuration.
func (r *Repository) UpdateConfiguration(ctx context.Context, cfg *domain.NotificationConfiguration) error {
	recipients, err := json.Marshal(cfg.AdminRecipients)
	if err != nil {
		return fmt.Errorf("marshal admin recipients: %w", err)
	}
	metadata, err := marshalMap(cfg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		UPDATE notification_configurations
		SET is_enabled = $2, notify_customer = $3, admin_recipients = $4,
			template_key = $5, metadata = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.QueryRow(ctx, query,
		cfg.ID,
		cfg.IsEnabled,
		cfg.NotifyCustomer,
		recipients,
		cfg.TemplateKey,
		metadata,
	).Scan(&cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notifications.ErrConfigurationNotFound
		}
		return fmt.Errorf("update configuration: %w", err)
	}
	return nil
}

// ToggleConfiguration flips the enabled flag and returns the updated row.
func (r *Repository) ToggleConfiguration(ctx context.Context, id string) (*domain.NotificationConfiguration, error) {
	query := `
		UPDATE notification_configurations
		SET is_enabled = NOT is_enabled, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + configurationColumns
	cfg, err := scanConfiguration(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrConfigurationNotFound
		}
		return nil, fmt.Errorf("toggle configuration: %w", err)
	}
	return cfg, nil
}

func scanConfiguration(row pgx.Row) (*domain.NotificationConfiguration, error) {
	var cfg domain.NotificationConfiguration
	var recipients, metadata []byte

	err := row.Scan(
		&cfg.ID,
		&cfg.EventKey,
		&cfg.EventName,
		&cfg.Channel,
		&cfg.IsEnabled,
		&cfg.NotifyCustomer,
		&recipients,
		&cfg.TemplateKey,
		&metadata,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(recipients, &cfg.AdminRecipients); err != nil {
		return nil, fmt.Errorf("unmarshal admin recipients: %w", err)
	}
	if err := unmarshalMap(metadata, &cfg.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &cfg, nil
}

// CreateTemplate creates a new template.
func (r *Repository) CreateTemplate(ctx context.Context, tmpl *domain.NotificationTemplate) error {
	slots, err := json.Marshal(tmpl.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	vars, err := json.Marshal(tmpl.AvailableVariables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		INSERT INTO notification_templates (name, template_key, subject, slots, available_variables, is_system)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		tmpl.Name,
		tmpl.TemplateKey,
		tmpl.Subject,
		slots,
		vars,
		tmpl.IsSystem,
	).Scan(&tmpl.ID, &tmpl.CreatedAt, &tmpl.UpdatedAt)
}

const templateColumns = `
	id, name, template_key, subject, slots, available_variables, is_system, created_at, updated_at
`

// GetTemplateByKey retrieves a template by its key.
func (r *Repository) GetTemplateByKey(ctx context.Context, key string) (*domain.NotificationTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE template_key = $1`
	tmpl, err := scanTemplate(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tmpl, nil
}

// ListTemplates retrieves all templates.
func (r *Repository) ListTemplates(ctx context.Context) ([]domain.NotificationTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates ORDER BY template_key`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]domain.NotificationTemplate, 0)
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *tmpl)
	}
	return templates, rows.Err()
}

// UpdateTemplate updates an existing template.
func (r *Repository) UpdateTemplate(ctx context.Context, tmpl *domain.NotificationTemplate) error {
	slots, err := json.Marshal(tmpl.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	vars, err := json.Marshal(tmpl.AvailableVariables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		UPDATE notification_templates
		SET name = $2, subject = $3, slots = $4, available_variables = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.QueryRow(ctx, query, tmpl.ID, tmpl.Name, tmpl.Subject, slots, vars).Scan(&tmpl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notifications.ErrTemplateNotFound
		}
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// DeleteTemplate deletes a template by id. System-template protection is
// enforced in the service layer.
func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM notification_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrTemplateNotFound
	}
	return nil
}

func scanTemplate(row pgx.Row) (*domain.NotificationTemplate, error) {
	var tmpl domain.NotificationTemplate
	var slots, vars []byte

	err := row.Scan(
		&tmpl.ID,
		&tmpl.Name,
		&tmpl.TemplateKey,
		&tmpl.Subject,
		&slots,
		&vars,
		&tmpl.IsSystem,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(slots, &tmpl.Slots); err != nil {
		return nil, fmt.Errorf("unmarshal slots: %w", err)
	}
	if err := json.Unmarshal(vars, &tmpl.AvailableVariables); err != nil {
		return nil, fmt.Errorf("unmarshal variables: %w", err)
	}
	return &tmpl, nil
}

// CreateLog creates a pending notification log row.
func (r *Repository) CreateLog(ctx context.Context, log *domain.NotificationLog) error {
	eventData, err := marshalMap(log.EventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	metadata, err := marshalMap(log.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO notification_logs
			(event_key, channel, recipient, recipient_name, status, attempt, event_data, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		log.EventKey,
		log.Channel,
		log.Recipient,
		log.RecipientName,
		log.Status,
		log.Attempt,
		eventData,
		metadata,
	).Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
}

// UpdateLogStatus updates a log row for a delivery attempt. The attempt
// guard makes the update a no-op when a newer attempt already wrote, so
// a stale task instance cannot clobber the outcome.
func (r *Repository) UpdateLogStatus(ctx context.Context, id string, attempt int, status domain.LogStatus, errMsg string, sentAt *time.Time, metadata map[string]any) error {
	var meta []byte
	if metadata != nil {
		var err error
		meta, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	query := `
		UPDATE notification_logs
		SET status = $3,
			attempt = $2,
			error_message = NULLIF($4, ''),
			sent_at = COALESCE($5, sent_at),
			metadata = COALESCE($6, metadata),
			updated_at = NOW()
		WHERE id = $1 AND attempt <= $2
	`
	result, err := r.db.Exec(ctx, query, id, attempt, status, errMsg, sentAt, meta)
	if err != nil {
		return fmt.Errorf("update log status: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Either the row is gone or a later attempt already wrote.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM notification_logs WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check log exists: %w", err)
		}
		if !exists {
			return notifications.ErrLogNotFound
		}
	}
	return nil
}

// ListLogs retrieves log rows matching the filter, newest first.
func (r *Repository) ListLogs(ctx context.Context, filter notifications.LogFilter) ([]domain.NotificationLog, error) {
	query := `
		SELECT id, event_key, channel, recipient, recipient_name, status,
			COALESCE(error_message, ''), attempt, event_data, metadata, sent_at, created_at, updated_at
		FROM notification_logs
		WHERE ($1 = '' OR event_key = $1)
		  AND ($2 = '' OR channel = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`
	rows, err := r.db.Query(ctx, query, filter.EventKey, string(filter.Channel), string(filter.Status), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.NotificationLog, 0)
	for rows.Next() {
		var log domain.NotificationLog
		var eventData, metadata []byte
		err := rows.Scan(
			&log.ID,
			&log.EventKey,
			&log.Channel,
			&log.Recipient,
			&log.RecipientName,
			&log.Status,
			&log.ErrorMessage,
			&log.Attempt,
			&eventData,
			&metadata,
			&log.SentAt,
			&log.CreatedAt,
			&log.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if err := unmarshalMap(eventData, &log.EventData); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		if err := unmarshalMap(metadata, &log.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// EnqueueBatch inserts delivery tasks in one transaction.
func (r *Repository) EnqueueBatch(ctx context.Context, items []*notifications.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO notification_queue
			(id, event_key, channel, recipient, config_id, template_key, view_name, payload, status, attempts, max_attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, item := range items {
		recipient, err := json.Marshal(item.Recipient)
		if err != nil {
			return fmt.Errorf("marshal recipient: %w", err)
		}
		payload, err := marshalMap(item.Data)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		_, err = tx.Exec(ctx, query,
			item.ID,
			item.EventKey,
			item.Channel,
			recipient,
			item.ConfigID,
			item.TemplateKey,
			item.ViewName,
			payload,
			item.Status,
			item.Attempts,
			item.MaxAttempts,
			item.NextAttemptAt,
		)
		if err != nil {
			return fmt.Errorf("enqueue task %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FetchPending claims up to limit due tasks, marking them processing.
// SKIP LOCKED keeps concurrent workers from claiming the same rows.
func (r *Repository) FetchPending(ctx context.Context, limit int) ([]*notifications.QueueItem, error) {
	query := `
		UPDATE notification_queue
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_key, channel, recipient, config_id, template_key, view_name, payload,
			COALESCE(log_id::text, ''), status, attempts, max_attempts, next_attempt_at,
			COALESCE(last_error, ''), created_at, updated_at, sent_at
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending tasks: %w", err)
	}
	defer rows.Close()

	items := make([]*notifications.QueueItem, 0)
	for rows.Next() {
		var item notifications.QueueItem
		var recipient, payload []byte
		err := rows.Scan(
			&item.ID,
			&item.EventKey,
			&item.Channel,
			&recipient,
			&item.ConfigID,
			&item.TemplateKey,
			&item.ViewName,
			&payload,
			&item.LogID,
			&item.Status,
			&item.Attempts,
			&item.MaxAttempts,
			&item.NextAttemptAt,
			&item.LastError,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal(recipient, &item.Recipient); err != nil {
			return nil, fmt.Errorf("unmarshal recipient: %w", err)
		}
		if err := unmarshalMap(payload, &item.Data); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// AttachLog binds the audit row created on first execution to the task.
func (r *Repository) AttachLog(ctx context.Context, itemID, logID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notification_queue SET log_id = $2, updated_at = NOW() WHERE id = $1`,
		itemID, logID,
	)
	if err != nil {
		return fmt.Errorf("attach log: %w", err)
	}
	return nil
}

// MarkAsSent marks a task as successfully delivered.
func (r *Repository) MarkAsSent(ctx context.Context, itemID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'sent', attempts = attempts + 1, sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, itemID)
	if err != nil {
		return fmt.Errorf("mark as sent: %w", err)
	}
	return nil
}

// MarkAsFailed marks a task as permanently failed.
func (r *Repository) MarkAsFailed(ctx context.Context, itemID string, cause error) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'failed', attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1
	`, itemID, cause.Error())
	if err != nil {
		return fmt.Errorf("mark as failed: %w", err)
	}
	return nil
}

// MarkForRetry returns a task to pending with a future attempt time.
func (r *Repository) MarkForRetry(ctx context.Context, itemID string, cause error, nextAttemptAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'pending', attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = NOW()
		WHERE id = $1
	`, itemID, cause.Error(), nextAttemptAt)
	if err != nil {
		return fmt.Errorf("mark for retry: %w", err)
	}
	return nil
}

// RecoverStuckProcessing returns tasks stuck in processing (a crashed
// worker) to pending and reports how many were recovered.
func (r *Repository) RecoverStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < NOW() - $1::interval
	`, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("recover stuck tasks: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteOldSentItems removes delivered tasks older than the retention
// window. Notification logs are kept; only queue rows are pruned.
func (r *Repository) DeleteOldSentItems(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM notification_queue
		WHERE status = 'sent' AND sent_at < NOW() - $1::interval
	`, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("delete old sent tasks: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetQueueStats returns queue size counts by status.
func (r *Repository) GetQueueStats(ctx context.Context) (*notifications.QueueStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM notification_queue
	`
	var stats notifications.QueueStats
	err := r.db.QueryRow(ctx, query).Scan(&stats.Pending, &stats.Processing, &stats.Sent, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	return &stats, nil
}

// marshalMap marshals a possibly-nil map into JSON, defaulting to {}.
func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// unmarshalMap unmarshals JSON into a map, tolerating NULL columns.
func unmarshalMap(data []byte, out *map[string]any) error {
	if len(data) == 0 {
		*out = nil
		return nil
	}
	return json.Unmarshal(data, out)
}
