package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/merchware/notify/internal/domain"
)

// mockRepository is an in-memory Repository for testing.
type mockRepository struct {
	mu sync.Mutex

	configs   map[string]*domain.NotificationConfiguration // by id
	templates map[string]*domain.NotificationTemplate      // by template key
	logs      map[string]*domain.NotificationLog           // by id
	queue     map[string]*QueueItem                        // by id

	nextID int

	listConfigsErr error
	enqueueErr     error
	createLogErr   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		configs:   make(map[string]*domain.NotificationConfiguration),
		templates: make(map[string]*domain.NotificationTemplate),
		logs:      make(map[string]*domain.NotificationLog),
		queue:     make(map[string]*QueueItem),
	}
}

func (m *mockRepository) genID() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *mockRepository) UpsertConfiguration(_ context.Context, cfg *domain.NotificationConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.configs {
		if existing.EventKey == cfg.EventKey && existing.Channel == cfg.Channel {
			cfg.ID = existing.ID
			cfg.CreatedAt = existing.CreatedAt
			cfg.UpdatedAt = time.Now()
			m.configs[cfg.ID] = cfg
			return nil
		}
	}

	cfg.ID = m.genID()
	cfg.CreatedAt = time.Now()
	cfg.UpdatedAt = cfg.CreatedAt
	m.configs[cfg.ID] = cfg
	return nil
}

func (m *mockRepository) GetConfiguration(_ context.Context, id string) (*domain.NotificationConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[id]
	if !ok {
		return nil, ErrConfigurationNotFound
	}
	copied := *cfg
	return &copied, nil
}

func (m *mockRepository) GetConfigurationByEventChannel(_ context.Context, eventKey string, channel domain.ChannelType) (*domain.NotificationConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cfg := range m.configs {
		if cfg.EventKey == eventKey && cfg.Channel == channel {
			copied := *cfg
			return &copied, nil
		}
	}
	return nil, ErrConfigurationNotFound
}

func (m *mockRepository) ListConfigurations(_ context.Context) ([]domain.NotificationConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.NotificationConfiguration, 0, len(m.configs))
	for _, cfg := range m.configs {
		out = append(out, *cfg)
	}
	return out, nil
}

func (m *mockRepository) ListEnabledConfigurations(_ context.Context, eventKey string) ([]domain.NotificationConfiguration, error) {
	if m.listConfigsErr != nil {
		return nil, m.listConfigsErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.NotificationConfiguration, 0)
	for _, cfg := range m.configs {
		if cfg.EventKey == eventKey && cfg.IsEnabled {
			out = append(out, *cfg)
		}
	}
	return out, nil
}

func (m *mockRepository) UpdateConfiguration(_ context.Context, cfg *domain.NotificationConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.configs[cfg.ID]; !ok {
		return ErrConfigurationNotFound
	}
	cfg.UpdatedAt = time.Now()
	m.configs[cfg.ID] = cfg
	return nil
}

func (m *mockRepository) ToggleConfiguration(_ context.Context, id string) (*domain.NotificationConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[id]
	if !ok {
		return nil, ErrConfigurationNotFound
	}
	cfg.IsEnabled = !cfg.IsEnabled
	cfg.UpdatedAt = time.Now()
	copied := *cfg
	return &copied, nil
}

func (m *mockRepository) CreateTemplate(_ context.Context, tmpl *domain.NotificationTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tmpl.ID = m.genID()
	tmpl.CreatedAt = time.Now()
	tmpl.UpdatedAt = tmpl.CreatedAt
	m.templates[tmpl.TemplateKey] = tmpl
	return nil
}

func (m *mockRepository) GetTemplateByKey(_ context.Context, key string) (*domain.NotificationTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tmpl, ok := m.templates[key]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	copied := *tmpl
	return &copied, nil
}

func (m *mockRepository) ListTemplates(_ context.Context) ([]domain.NotificationTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.NotificationTemplate, 0, len(m.templates))
	for _, tmpl := range m.templates {
		out = append(out, *tmpl)
	}
	return out, nil
}

func (m *mockRepository) UpdateTemplate(_ context.Context, tmpl *domain.NotificationTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[tmpl.TemplateKey]; !ok {
		return ErrTemplateNotFound
	}
	tmpl.UpdatedAt = time.Now()
	m.templates[tmpl.TemplateKey] = tmpl
	return nil
}

func (m *mockRepository) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, tmpl := range m.templates {
		if tmpl.ID == id {
			delete(m.templates, key)
			return nil
		}
	}
	return ErrTemplateNotFound
}

func (m *mockRepository) CreateLog(_ context.Context, log *domain.NotificationLog) error {
	if m.createLogErr != nil {
		return m.createLogErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log.ID = m.genID()
	log.CreatedAt = time.Now()
	log.UpdatedAt = log.CreatedAt
	m.logs[log.ID] = log
	return nil
}

func (m *mockRepository) UpdateLogStatus(_ context.Context, id string, attempt int, status domain.LogStatus, errMsg string, sentAt *time.Time, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log, ok := m.logs[id]
	if !ok {
		return ErrLogNotFound
	}
	if log.Attempt > attempt {
		return nil
	}
	log.Attempt = attempt
	log.Status = status
	log.ErrorMessage = errMsg
	if sentAt != nil {
		log.SentAt = sentAt
	}
	if metadata != nil {
		log.Metadata = metadata
	}
	log.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepository) ListLogs(_ context.Context, filter LogFilter) ([]domain.NotificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.NotificationLog, 0)
	for _, log := range m.logs {
		if filter.EventKey != "" && log.EventKey != filter.EventKey {
			continue
		}
		if filter.Channel != "" && log.Channel != filter.Channel {
			continue
		}
		if filter.Status != "" && log.Status != filter.Status {
			continue
		}
		out = append(out, *log)
	}
	return out, nil
}

func (m *mockRepository) EnqueueBatch(_ context.Context, items []*QueueItem) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range items {
		copied := *item
		copied.CreatedAt = time.Now()
		copied.UpdatedAt = copied.CreatedAt
		m.queue[item.ID] = &copied
	}
	return nil
}

func (m *mockRepository) FetchPending(_ context.Context, limit int) ([]*QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*QueueItem, 0)
	now := time.Now()
	for _, item := range m.queue {
		if len(out) >= limit {
			break
		}
		if item.Status == QueueStatusPending && !item.NextAttemptAt.After(now) {
			item.Status = QueueStatusProcessing
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockRepository) AttachLog(_ context.Context, itemID, logID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.queue[itemID]; ok {
		item.LogID = logID
	}
	return nil
}

func (m *mockRepository) MarkAsSent(_ context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.queue[itemID]; ok {
		item.Status = QueueStatusSent
		item.Attempts++
		now := time.Now()
		item.SentAt = &now
	}
	return nil
}

func (m *mockRepository) MarkAsFailed(_ context.Context, itemID string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.queue[itemID]; ok {
		item.Status = QueueStatusFailed
		item.Attempts++
		item.LastError = cause.Error()
	}
	return nil
}

func (m *mockRepository) MarkForRetry(_ context.Context, itemID string, cause error, nextAttemptAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.queue[itemID]; ok {
		item.Status = QueueStatusPending
		item.Attempts++
		item.LastError = cause.Error()
		item.NextAttemptAt = nextAttemptAt
	}
	return nil
}

func (m *mockRepository) RecoverStuckProcessing(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var recovered int64
	for _, item := range m.queue {
		if item.Status == QueueStatusProcessing && item.UpdatedAt.Before(cutoff) {
			item.Status = QueueStatusPending
			recovered++
		}
	}
	return recovered, nil
}

func (m *mockRepository) DeleteOldSentItems(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var deleted int64
	for id, item := range m.queue {
		if item.Status == QueueStatusSent && item.SentAt != nil && item.SentAt.Before(cutoff) {
			delete(m.queue, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockRepository) GetQueueStats(_ context.Context) (*QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &QueueStats{}
	for _, item := range m.queue {
		switch item.Status {
		case QueueStatusPending:
			stats.Pending++
		case QueueStatusProcessing:
			stats.Processing++
		case QueueStatusSent:
			stats.Sent++
		case QueueStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (m *mockRepository) queuedItems() []*QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*QueueItem, 0, len(m.queue))
	for _, item := range m.queue {
		copied := *item
		out = append(out, &copied)
	}
	return out
}

// fakeChannel is a scriptable Channel for testing.
type fakeChannel struct {
	mu sync.Mutex

	channelType domain.ChannelType
	configured  bool
	validateFn  func(string) bool
	sendFn      func(Message) (*DeliveryResult, error)

	sent []Message
}

func newFakeChannel(channelType domain.ChannelType) *fakeChannel {
	return &fakeChannel{
		channelType: channelType,
		configured:  true,
	}
}

func (c *fakeChannel) Type() domain.ChannelType { return c.channelType }
func (c *fakeChannel) Name() string             { return string(c.channelType) }
func (c *fakeChannel) IsConfigured() bool       { return c.configured }
func (c *fakeChannel) RecipientLabel() string   { return "address" }

func (c *fakeChannel) Validate(address string) bool {
	if c.validateFn != nil {
		return c.validateFn(address)
	}
	return address != ""
}

func (c *fakeChannel) Send(_ context.Context, msg Message) (*DeliveryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendFn != nil {
		result, err := c.sendFn(msg)
		if err != nil {
			return nil, err
		}
		c.sent = append(c.sent, msg)
		return result, nil
	}
	c.sent = append(c.sent, msg)
	return &DeliveryResult{}, nil
}

func (c *fakeChannel) sentMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

// fakeResolver returns fixed recipients and data.
type fakeResolver struct {
	recipients []domain.Recipient
	data       map[string]any
	resolveErr error
	dataErr    error
}

func (r *fakeResolver) Resolve(_ context.Context, _ domain.Event) ([]domain.Recipient, error) {
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	return r.recipients, nil
}

func (r *fakeResolver) NotificationData(_ context.Context, _ domain.Event) (map[string]any, error) {
	if r.dataErr != nil {
		return nil, r.dataErr
	}
	return r.data, nil
}

// testEvent is a bare event carrying only its type key.
type testEvent struct {
	key string
}

func (e testEvent) EventKey() string { return e.key }
