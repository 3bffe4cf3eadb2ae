package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/merchware/notify/internal/domain"
)

// ConfigurationInput contains operator-supplied configuration fields.
type ConfigurationInput struct {
	EventKey        string
	Channel         domain.ChannelType
	IsEnabled       bool
	NotifyCustomer  bool
	AdminRecipients []string
	TemplateKey     *string
	Metadata        map[string]any
}

// Service provides the operator-facing notifications business logic:
// configuration and template management, registry queries and log access.
type Service struct {
	repo     Repository
	events   *EventRegistry
	channels *ChannelRegistry
	renderer *Renderer
}

// NewService creates a notifications service.
func NewService(repo Repository, events *EventRegistry, channels *ChannelRegistry, renderer *Renderer) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		channels: channels,
		renderer: renderer,
	}
}

// SaveConfiguration creates or updates the configuration for an
// (event, channel) pair. Both the event and the channel must be
// registered; addresses in admin_recipients must validate against the
// channel.
func (s *Service) SaveConfiguration(ctx context.Context, input ConfigurationInput) (*domain.NotificationConfiguration, error) {
	meta, ok := s.events.LookupKey(input.EventKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEventNotRegistered, input.EventKey)
	}

	channel, ok := s.channels.Get(input.Channel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChannelNotRegistered, input.Channel)
	}

	for _, addr := range input.AdminRecipients {
		if !channel.Validate(addr) {
			return nil, fmt.Errorf("invalid %s for channel %s: %q", channel.RecipientLabel(), channel.Type(), addr)
		}
	}

	cfg := &domain.NotificationConfiguration{
		EventKey:        input.EventKey,
		EventName:       meta.Label,
		Channel:         input.Channel,
		IsEnabled:       input.IsEnabled,
		NotifyCustomer:  input.NotifyCustomer,
		AdminRecipients: input.AdminRecipients,
		TemplateKey:     input.TemplateKey,
		Metadata:        input.Metadata,
	}

	if err := s.repo.UpsertConfiguration(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save configuration: %w", err)
	}
	return cfg, nil
}

// ListConfigurations returns all configurations.
func (s *Service) ListConfigurations(ctx context.Context) ([]domain.NotificationConfiguration, error) {
	return s.repo.ListConfigurations(ctx)
}

// GetConfigurationByEventChannel returns the configuration for an
// (event, channel) pair.
func (s *Service) GetConfigurationByEventChannel(ctx context.Context, eventKey string, channel domain.ChannelType) (*domain.NotificationConfiguration, error) {
	return s.repo.GetConfigurationByEventChannel(ctx, eventKey, channel)
}

// UpdateConfiguration updates an existing configuration by id.
func (s *Service) UpdateConfiguration(ctx context.Context, id string, input ConfigurationInput) (*domain.NotificationConfiguration, error) {
	cfg, err := s.repo.GetConfiguration(ctx, id)
	if err != nil {
		return nil, err
	}

	channel, ok := s.channels.Get(cfg.Channel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChannelNotRegistered, cfg.Channel)
	}
	for _, addr := range input.AdminRecipients {
		if !channel.Validate(addr) {
			return nil, fmt.Errorf("invalid %s for channel %s: %q", channel.RecipientLabel(), channel.Type(), addr)
		}
	}

	cfg.IsEnabled = input.IsEnabled
	cfg.NotifyCustomer = input.NotifyCustomer
	cfg.AdminRecipients = input.AdminRecipients
	cfg.TemplateKey = input.TemplateKey
	cfg.Metadata = input.Metadata

	if err := s.repo.UpdateConfiguration(ctx, cfg); err != nil {
		return nil, fmt.Errorf("update configuration: %w", err)
	}
	return cfg, nil
}

// ToggleConfiguration flips the enabled flag of a configuration.
func (s *Service) ToggleConfiguration(ctx context.Context, id string) (*domain.NotificationConfiguration, error) {
	return s.repo.ToggleConfiguration(ctx, id)
}

// ListEvents returns metadata for all registered notifiable events.
func (s *Service) ListEvents() []EventMetadata {
	return s.events.List(true)
}

// ListChannels returns summaries of the configured channels.
func (s *Service) ListChannels() []ChannelSummary {
	return s.channels.ListConfigured()
}

// ListLogs returns notification log entries matching the filter.
func (s *Service) ListLogs(ctx context.Context, filter LogFilter) ([]domain.NotificationLog, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListLogs(ctx, filter)
}

// ListTemplates returns all stored templates.
func (s *Service) ListTemplates(ctx context.Context) ([]domain.NotificationTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// GetTemplate returns a stored template by key.
func (s *Service) GetTemplate(ctx context.Context, key string) (*domain.NotificationTemplate, error) {
	return s.repo.GetTemplateByKey(ctx, key)
}

// SaveTemplate creates or updates a stored template by key.
func (s *Service) SaveTemplate(ctx context.Context, tmpl *domain.NotificationTemplate) (*domain.NotificationTemplate, error) {
	existing, err := s.repo.GetTemplateByKey(ctx, tmpl.TemplateKey)
	switch {
	case err == nil:
		existing.Name = tmpl.Name
		existing.Subject = tmpl.Subject
		existing.Slots = tmpl.Slots
		existing.AvailableVariables = tmpl.AvailableVariables
		if err := s.repo.UpdateTemplate(ctx, existing); err != nil {
			return nil, fmt.Errorf("update template: %w", err)
		}
		return existing, nil
	case errors.Is(err, ErrTemplateNotFound):
		if err := s.repo.CreateTemplate(ctx, tmpl); err != nil {
			return nil, fmt.Errorf("create template: %w", err)
		}
		return tmpl, nil
	default:
		return nil, err
	}
}

// DeleteTemplate deletes a stored template. System templates are
// protected and cannot be deleted.
func (s *Service) DeleteTemplate(ctx context.Context, key string) error {
	tmpl, err := s.repo.GetTemplateByKey(ctx, key)
	if err != nil {
		return err
	}
	if tmpl.IsSystem {
		return ErrSystemTemplate
	}
	return s.repo.DeleteTemplate(ctx, tmpl.ID)
}

// PreviewTemplate renders a template against sample data merged with
// overrides. The template may be stored or supplied inline by the editor.
func (s *Service) PreviewTemplate(ctx context.Context, key string, overrides map[string]any) (*Rendered, error) {
	tmpl, err := s.repo.GetTemplateByKey(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
		meta, ok := s.events.LookupKey(key)
		if !ok {
			return nil, ErrTemplateNotFound
		}
		resolved := s.renderer.Resolve(nil, RecipientTypeCustomer, meta.ViewName)
		rendered := s.renderer.Preview(resolved, meta.ViewName, overrides)
		return &rendered, nil
	}

	viewName := key
	if meta, ok := s.events.LookupKey(key); ok {
		viewName = meta.ViewName
	}
	rendered := s.renderer.Preview(*tmpl, viewName, overrides)
	return &rendered, nil
}
