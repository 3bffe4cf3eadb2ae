package notifications

import (
	"context"
	"testing"

	"github.com/merchware/notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *mockRepository) {
	t.Helper()

	events := NewEventRegistry()
	require.NoError(t, events.Register("order.created", "Order Created", "order-created"))
	require.NoError(t, events.Register("user.registered", "User Registered", "user-welcome"))

	channels := NewChannelRegistry()
	email := newFakeChannel(domain.ChannelTypeEmail)
	email.validateFn = func(addr string) bool { return addr != "bad" }
	require.NoError(t, channels.Register(email))

	repo := newMockRepository()
	return NewService(repo, events, channels, NewRenderer()), repo
}

func TestService_SaveConfiguration(t *testing.T) {
	ctx := context.Background()

	t.Run("creates configuration with event label", func(t *testing.T) {
		s, _ := setupService(t)

		cfg, err := s.SaveConfiguration(ctx, ConfigurationInput{
			EventKey:        "order.created",
			Channel:         domain.ChannelTypeEmail,
			IsEnabled:       true,
			NotifyCustomer:  true,
			AdminRecipients: []string{"ops@x.com"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, cfg.ID)
		assert.Equal(t, "Order Created", cfg.EventName)
	})

	t.Run("upsert overwrites by event and channel", func(t *testing.T) {
		s, _ := setupService(t)

		first, err := s.SaveConfiguration(ctx, ConfigurationInput{
			EventKey: "order.created",
			Channel:  domain.ChannelTypeEmail,
		})
		require.NoError(t, err)

		second, err := s.SaveConfiguration(ctx, ConfigurationInput{
			EventKey:  "order.created",
			Channel:   domain.ChannelTypeEmail,
			IsEnabled: true,
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		configs, err := s.ListConfigurations(ctx)
		require.NoError(t, err)
		assert.Len(t, configs, 1)
	})

	t.Run("unregistered event rejected", func(t *testing.T) {
		s, _ := setupService(t)

		_, err := s.SaveConfiguration(ctx, ConfigurationInput{
			EventKey: "order.deleted",
			Channel:  domain.ChannelTypeEmail,
		})
		assert.ErrorIs(t, err, ErrEventNotRegistered)
	})

	t.Run("unregistered channel rejected", func(t *testing.T) {
		s, _ := setupService(t)

		_, err := s.SaveConfiguration(ctx, ConfigurationInput{
			EventKey: "order.created",
			Channel:  domain.ChannelTypeSMS,
		})
		assert.ErrorIs(t, err, ErrChannelNotRegistered)
	})

	t.Run("invalid admin address rejected", func(t *testing.T) {
		s, _ := setupService(t)

		_, err := s.SaveConfiguration(ctx, ConfigurationInput{
			EventKey:        "order.created",
			Channel:         domain.ChannelTypeEmail,
			AdminRecipients: []string{"bad"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid")
	})
}

func TestService_ToggleConfiguration(t *testing.T) {
	ctx := context.Background()
	s, _ := setupService(t)

	cfg, err := s.SaveConfiguration(ctx, ConfigurationInput{
		EventKey:  "order.created",
		Channel:   domain.ChannelTypeEmail,
		IsEnabled: true,
	})
	require.NoError(t, err)

	toggled, err := s.ToggleConfiguration(ctx, cfg.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsEnabled)

	toggled, err = s.ToggleConfiguration(ctx, cfg.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsEnabled)

	_, err = s.ToggleConfiguration(ctx, "missing")
	assert.ErrorIs(t, err, ErrConfigurationNotFound)
}

func TestService_UpdateConfiguration(t *testing.T) {
	ctx := context.Background()
	s, _ := setupService(t)

	cfg, err := s.SaveConfiguration(ctx, ConfigurationInput{
		EventKey: "order.created",
		Channel:  domain.ChannelTypeEmail,
	})
	require.NoError(t, err)

	updated, err := s.UpdateConfiguration(ctx, cfg.ID, ConfigurationInput{
		IsEnabled:       true,
		NotifyCustomer:  true,
		AdminRecipients: []string{"ops@x.com"},
	})
	require.NoError(t, err)
	assert.True(t, updated.IsEnabled)
	assert.Equal(t, []string{"ops@x.com"}, updated.AdminRecipients)

	_, err = s.UpdateConfiguration(ctx, cfg.ID, ConfigurationInput{
		AdminRecipients: []string{"bad"},
	})
	require.Error(t, err)

	_, err = s.UpdateConfiguration(ctx, "missing", ConfigurationInput{})
	assert.ErrorIs(t, err, ErrConfigurationNotFound)
}

func TestService_ListEventsAndChannels(t *testing.T) {
	s, _ := setupService(t)

	events := s.ListEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "order.created", events[0].Key)

	channels := s.ListChannels()
	require.Len(t, channels, 1)
	assert.Equal(t, domain.ChannelTypeEmail, channels[0].Type)
}

func TestService_Templates(t *testing.T) {
	ctx := context.Background()

	t.Run("save creates then updates by key", func(t *testing.T) {
		s, _ := setupService(t)

		created, err := s.SaveTemplate(ctx, &domain.NotificationTemplate{
			Name:        "Order Confirmation",
			TemplateKey: "order.created",
			Subject:     "v1",
			Slots:       map[string]string{"content": "body"},
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		updated, err := s.SaveTemplate(ctx, &domain.NotificationTemplate{
			Name:        "Order Confirmation",
			TemplateKey: "order.created",
			Subject:     "v2",
			Slots:       map[string]string{"content": "body"},
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "v2", updated.Subject)
	})

	t.Run("delete removes tenant template", func(t *testing.T) {
		s, _ := setupService(t)

		_, err := s.SaveTemplate(ctx, &domain.NotificationTemplate{
			Name:        "T",
			TemplateKey: "custom",
			Subject:     "s",
		})
		require.NoError(t, err)

		require.NoError(t, s.DeleteTemplate(ctx, "custom"))

		_, err = s.GetTemplate(ctx, "custom")
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})

	t.Run("system template cannot be deleted", func(t *testing.T) {
		s, repo := setupService(t)

		require.NoError(t, repo.CreateTemplate(ctx, &domain.NotificationTemplate{
			Name:        "System",
			TemplateKey: "system.default",
			Subject:     "s",
			IsSystem:    true,
		}))

		err := s.DeleteTemplate(ctx, "system.default")
		assert.ErrorIs(t, err, ErrSystemTemplate)

		_, err = s.GetTemplate(ctx, "system.default")
		assert.NoError(t, err)
	})

	t.Run("delete missing template", func(t *testing.T) {
		s, _ := setupService(t)
		assert.ErrorIs(t, s.DeleteTemplate(ctx, "missing"), ErrTemplateNotFound)
	})
}

func TestService_PreviewTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("stored template", func(t *testing.T) {
		s, _ := setupService(t)

		_, err := s.SaveTemplate(ctx, &domain.NotificationTemplate{
			Name:        "Order Confirmation",
			TemplateKey: "order.created",
			Subject:     "Order {{order.number}} for {{customer_name}}",
		})
		require.NoError(t, err)

		rendered, err := s.PreviewTemplate(ctx, "order.created", nil)
		require.NoError(t, err)
		assert.Equal(t, "Order ORD-1042 for Jane Smith", rendered.Subject)
	})

	t.Run("registered event without stored template uses builtin", func(t *testing.T) {
		s, _ := setupService(t)

		rendered, err := s.PreviewTemplate(ctx, "order.created", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, rendered.Subject)
		assert.NotContains(t, rendered.Subject, "{{")
	})

	t.Run("overrides reach the renderer", func(t *testing.T) {
		s, _ := setupService(t)

		rendered, err := s.PreviewTemplate(ctx, "order.created", map[string]any{
			"customer_name": "Bob",
		})
		require.NoError(t, err)
		assert.Contains(t, rendered.Body, "Bob")
	})

	t.Run("unknown key", func(t *testing.T) {
		s, _ := setupService(t)
		_, err := s.PreviewTemplate(ctx, "nope", nil)
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})
}

func TestService_ListLogs_ClampsLimit(t *testing.T) {
	ctx := context.Background()
	s, repo := setupService(t)

	require.NoError(t, repo.CreateLog(ctx, &domain.NotificationLog{
		EventKey: "order.created",
		Channel:  domain.ChannelTypeEmail,
		Status:   domain.LogStatusSent,
	}))

	logs, err := s.ListLogs(ctx, LogFilter{Limit: -1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	logs, err = s.ListLogs(ctx, LogFilter{Status: domain.LogStatusFailed})
	require.NoError(t, err)
	assert.Empty(t, logs)
}
