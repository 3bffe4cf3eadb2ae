package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/merchware/notify/internal/domain"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	NumWorkers   int

	// Maintenance sweep: tasks stuck in processing longer than StuckAfter
	// return to pending; sent tasks older than SentRetention are pruned.
	MaintenanceInterval time.Duration
	StuckAfter          time.Duration
	SentRetention       time.Duration
}

// DefaultWorkerConfig returns the default worker configuration:
// three attempts with a fixed 60-second backoff between them.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:           100,
		PollInterval:        5 * time.Second,
		MaxAttempts:         3,
		RetryBackoff:        60 * time.Second,
		NumWorkers:          5,
		MaintenanceInterval: time.Minute,
		StuckAfter:          5 * time.Minute,
		SentRetention:       7 * 24 * time.Hour,
	}
}

// Worker executes delivery tasks from the queue: it resolves the
// template, renders, calls the channel and records the outcome in the
// notification log. Tasks for different recipients run concurrently
// with no ordering guarantee.
type Worker struct {
	config   WorkerConfig
	repo     Repository
	channels *ChannelRegistry
	renderer *Renderer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a new delivery worker.
func NewWorker(config WorkerConfig, repo Repository, channels *ChannelRegistry, renderer *Renderer) *Worker {
	return &Worker{
		config:   config,
		repo:     repo,
		channels: channels,
		renderer: renderer,
		stopCh:   make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting delivery worker",
		"workers", w.config.NumWorkers,
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
		"max_attempts", w.config.MaxAttempts,
		"retry_backoff", w.config.RetryBackoff,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}

	if w.config.MaintenanceInterval > 0 {
		w.wg.Add(1)
		go w.runMaintenance(ctx)
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	slog.Info("delivery worker stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processBatch(ctx, workerID)
		}
	}
}

// runMaintenance periodically recovers tasks orphaned by a crashed
// worker and prunes delivered queue rows. Notification logs are never
// touched.
func (w *Worker) runMaintenance(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if recovered, err := w.repo.RecoverStuckProcessing(ctx, w.config.StuckAfter); err != nil {
				slog.Error("failed to recover stuck tasks", "error", err)
			} else if recovered > 0 {
				slog.Warn("recovered stuck delivery tasks", "count", recovered)
			}

			if pruned, err := w.repo.DeleteOldSentItems(ctx, w.config.SentRetention); err != nil {
				slog.Error("failed to prune delivered tasks", "error", err)
			} else if pruned > 0 {
				slog.Debug("pruned delivered tasks", "count", pruned)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, workerID int) {
	items, err := w.repo.FetchPending(ctx, w.config.BatchSize)
	if err != nil {
		slog.Error("failed to fetch pending tasks", "worker", workerID, "error", err)
		return
	}

	if len(items) == 0 {
		return
	}

	slog.Debug("processing delivery tasks", "worker", workerID, "count", len(items))
	recordQueueFetched(len(items))

	for _, item := range items {
		w.processItem(ctx, item)
	}
}

// processItem executes one delivery attempt for a task. The attempt
// number is Attempts+1; log updates carry it so a stale predecessor of a
// retried task can never overwrite a newer write.
func (w *Worker) processItem(ctx context.Context, item *QueueItem) {
	start := time.Now()
	attempt := item.Attempts + 1

	if err := w.ensureLog(ctx, item); err != nil {
		slog.Error("failed to create notification log", "item_id", item.ID, "error", err)
		w.handleSendError(ctx, item, attempt, err)
		return
	}

	channel, ok := w.channels.Get(item.Channel)
	if !ok {
		w.failPermanently(ctx, item, attempt, errors.New("channel not registered"))
		return
	}
	if !channel.IsConfigured() {
		w.failPermanently(ctx, item, attempt, errors.New("channel not configured"))
		return
	}

	rendered := w.render(ctx, item)

	result, err := channel.Send(ctx, Message{
		To:       item.Recipient.AddressFor(item.Channel),
		Subject:  rendered.Subject,
		Body:     rendered.Body,
		EventKey: item.EventKey,
	})
	duration := time.Since(start)

	if err != nil {
		w.handleSendError(ctx, item, attempt, err)
		return
	}

	var resultMeta map[string]any
	if result != nil {
		resultMeta = result.Metadata
	}

	sentAt := time.Now()
	if err := w.repo.UpdateLogStatus(ctx, item.LogID, attempt, domain.LogStatusSent, "", &sentAt, resultMeta); err != nil {
		slog.Error("failed to mark log as sent", "log_id", item.LogID, "error", err)
	}
	if err := w.repo.MarkAsSent(ctx, item.ID); err != nil {
		slog.Error("failed to mark task as sent", "item_id", item.ID, "error", err)
	}

	recordDeliveryAttempt(string(item.Channel), "success")
	recordDeliveryDuration(string(item.Channel), duration)

	slog.Debug("notification delivered",
		"item_id", item.ID,
		"channel", item.Channel,
		"attempt", attempt,
		"duration", duration,
	)
}

// ensureLog creates the pending audit row on the task's first execution
// and binds it to the task; retries reuse the same row via LogID.
func (w *Worker) ensureLog(ctx context.Context, item *QueueItem) error {
	if item.LogID != "" {
		return nil
	}

	log := &domain.NotificationLog{
		EventKey:      item.EventKey,
		Channel:       item.Channel,
		Recipient:     item.Recipient.AddressFor(item.Channel),
		RecipientName: item.Recipient.Name,
		Status:        domain.LogStatusPending,
		EventData:     item.Data,
	}
	if err := w.repo.CreateLog(ctx, log); err != nil {
		return err
	}

	item.LogID = log.ID
	return w.repo.AttachLog(ctx, item.ID, log.ID)
}

func (w *Worker) render(ctx context.Context, item *QueueItem) Rendered {
	var stored *domain.NotificationTemplate
	tmpl, err := w.repo.GetTemplateByKey(ctx, item.TemplateKey)
	if err == nil {
		stored = tmpl
	} else if !errors.Is(err, ErrTemplateNotFound) {
		slog.Warn("template lookup failed, using built-in view",
			"template_key", item.TemplateKey,
			"error", err,
		)
	}

	resolved := w.renderer.Resolve(stored, RecipientTypeFor(item.Recipient), item.ViewName)
	return w.renderer.Render(resolved, item.Data)
}

// handleSendError records the failed attempt on the log row and either
// schedules a retry or marks the task permanently failed.
func (w *Worker) handleSendError(ctx context.Context, item *QueueItem, attempt int, cause error) {
	slog.Warn("delivery attempt failed",
		"item_id", item.ID,
		"channel", item.Channel,
		"attempt", attempt,
		"max_attempts", item.MaxAttempts,
		"error", cause,
	)

	if item.LogID != "" {
		if err := w.repo.UpdateLogStatus(ctx, item.LogID, attempt, domain.LogStatusFailed, cause.Error(), nil, nil); err != nil {
			slog.Error("failed to record attempt failure", "log_id", item.LogID, "error", err)
		}
	}

	if attempt >= item.MaxAttempts {
		if err := w.repo.MarkAsFailed(ctx, item.ID, cause); err != nil {
			slog.Error("failed to mark task as failed", "item_id", item.ID, "error", err)
		}
		recordDeliveryAttempt(string(item.Channel), "failed")
		return
	}

	nextAttempt := time.Now().Add(w.config.RetryBackoff)
	if err := w.repo.MarkForRetry(ctx, item.ID, cause, nextAttempt); err != nil {
		slog.Error("failed to schedule retry", "item_id", item.ID, "error", err)
	}
	recordDeliveryAttempt(string(item.Channel), "retry")

	slog.Info("delivery scheduled for retry",
		"item_id", item.ID,
		"attempt", attempt,
		"next_attempt", nextAttempt,
	)
}

// failPermanently skips the retry budget for conditions that cannot
// improve by waiting (unregistered or unconfigured channel).
func (w *Worker) failPermanently(ctx context.Context, item *QueueItem, attempt int, cause error) {
	slog.Warn("delivery not possible",
		"item_id", item.ID,
		"channel", item.Channel,
		"error", cause,
	)

	if item.LogID != "" {
		if err := w.repo.UpdateLogStatus(ctx, item.LogID, attempt, domain.LogStatusFailed, cause.Error(), nil, nil); err != nil {
			slog.Error("failed to record failure", "log_id", item.LogID, "error", err)
		}
	}
	if err := w.repo.MarkAsFailed(ctx, item.ID, cause); err != nil {
		slog.Error("failed to mark task as failed", "item_id", item.ID, "error", err)
	}
	recordDeliveryAttempt(string(item.Channel), "failed")
}
