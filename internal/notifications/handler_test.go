package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/merchware/notify/internal/domain"
	"github.com/merchware/notify/internal/pkg/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// denyManage grants view but not manage.
type denyManage struct{}

func (denyManage) Allows(_ context.Context, capability string) bool {
	return capability == CapabilityView
}

func setupHandler(t *testing.T, authz httputil.Authorizer) (*chi.Mux, *mockRepository) {
	t.Helper()

	events := NewEventRegistry()
	require.NoError(t, events.Register("order.created", "Order Created", "order-created"))

	channels := NewChannelRegistry()
	email := newFakeChannel(domain.ChannelTypeEmail)
	email.validateFn = func(addr string) bool { return addr != "bad" }
	require.NoError(t, channels.Register(email))

	repo := newMockRepository()
	service := NewService(repo, events, channels, NewRenderer())

	r := chi.NewRouter()
	NewHandler(service).RegisterRoutes(r, authz)
	return r, repo
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (string, json.RawMessage) {
	t.Helper()

	var envelope struct {
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Message, envelope.Data
}

func TestHandler_SaveConfiguration(t *testing.T) {
	t.Run("creates configuration", func(t *testing.T) {
		router, _ := setupHandler(t, httputil.AllowAll{})

		rec := doRequest(t, router, http.MethodPost, "/notifications/configurations", ConfigurationRequest{
			EventKey:        "order.created",
			Channel:         "email",
			IsEnabled:       true,
			NotifyCustomer:  true,
			AdminRecipients: []string{"ops@x.com"},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		message, data := decodeEnvelope(t, rec)
		assert.Equal(t, "configuration saved", message)

		var cfg domain.NotificationConfiguration
		require.NoError(t, json.Unmarshal(data, &cfg))
		assert.Equal(t, "Order Created", cfg.EventName)
		assert.True(t, cfg.IsEnabled)
	})

	t.Run("unregistered event returns 400", func(t *testing.T) {
		router, _ := setupHandler(t, httputil.AllowAll{})

		rec := doRequest(t, router, http.MethodPost, "/notifications/configurations", ConfigurationRequest{
			EventKey: "order.deleted",
			Channel:  "email",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		router, _ := setupHandler(t, httputil.AllowAll{})

		rec := doRequest(t, router, http.MethodPost, "/notifications/configurations", map[string]any{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		message, _ := decodeEnvelope(t, rec)
		assert.Equal(t, "validation error", message)
	})

	t.Run("invalid json returns 400", func(t *testing.T) {
		router, _ := setupHandler(t, httputil.AllowAll{})

		req := httptest.NewRequest(http.MethodPost, "/notifications/configurations", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("requires manage capability", func(t *testing.T) {
		router, _ := setupHandler(t, denyManage{})

		rec := doRequest(t, router, http.MethodPost, "/notifications/configurations", ConfigurationRequest{
			EventKey: "order.created",
			Channel:  "email",
		})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestHandler_ListConfigurations(t *testing.T) {
	router, repo := setupHandler(t, denyManage{})

	require.NoError(t, repo.UpsertConfiguration(context.Background(), &domain.NotificationConfiguration{
		EventKey: "order.created",
		Channel:  domain.ChannelTypeEmail,
	}))

	rec := doRequest(t, router, http.MethodGet, "/notifications/configurations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, data := decodeEnvelope(t, rec)
	var configs []domain.NotificationConfiguration
	require.NoError(t, json.Unmarshal(data, &configs))
	assert.Len(t, configs, 1)
}

func TestHandler_GetConfigurationByEventChannel(t *testing.T) {
	router, repo := setupHandler(t, httputil.AllowAll{})

	require.NoError(t, repo.UpsertConfiguration(context.Background(), &domain.NotificationConfiguration{
		EventKey: "order.created",
		Channel:  domain.ChannelTypeEmail,
	}))

	t.Run("found", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet,
			"/notifications/configurations/by-event-channel?event_key=order.created&channel=email", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing params", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/notifications/configurations/by-event-channel", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet,
			"/notifications/configurations/by-event-channel?event_key=order.created&channel=sms", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_ToggleConfiguration(t *testing.T) {
	router, repo := setupHandler(t, httputil.AllowAll{})

	cfg := &domain.NotificationConfiguration{
		EventKey:  "order.created",
		Channel:   domain.ChannelTypeEmail,
		IsEnabled: true,
	}
	require.NoError(t, repo.UpsertConfiguration(context.Background(), cfg))

	rec := doRequest(t, router, http.MethodPatch, "/notifications/configurations/"+cfg.ID+"/toggle-enable", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, data := decodeEnvelope(t, rec)
	var toggled domain.NotificationConfiguration
	require.NoError(t, json.Unmarshal(data, &toggled))
	assert.False(t, toggled.IsEnabled)

	rec = doRequest(t, router, http.MethodPatch, "/notifications/configurations/missing/toggle-enable", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ListEvents(t *testing.T) {
	router, _ := setupHandler(t, httputil.AllowAll{})

	rec := doRequest(t, router, http.MethodGet, "/notifications/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, data := decodeEnvelope(t, rec)
	var events []EventMetadata
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "order.created", events[0].Key)
}

func TestHandler_ListChannels(t *testing.T) {
	router, _ := setupHandler(t, httputil.AllowAll{})

	rec := doRequest(t, router, http.MethodGet, "/notifications/channels", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, data := decodeEnvelope(t, rec)
	var channels []ChannelSummary
	require.NoError(t, json.Unmarshal(data, &channels))
	assert.Len(t, channels, 1)
}

func TestHandler_Templates(t *testing.T) {
	router, repo := setupHandler(t, httputil.AllowAll{})

	t.Run("save and get", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPut, "/notifications/templates/order.created", TemplateRequest{
			Name:    "Order Confirmation",
			Subject: "Order {{order.number}}",
			Slots:   map[string]string{"content": "body"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(t, router, http.MethodGet, "/notifications/templates/order.created", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		_, data := decodeEnvelope(t, rec)
		var tmpl domain.NotificationTemplate
		require.NoError(t, json.Unmarshal(data, &tmpl))
		assert.Equal(t, "order.created", tmpl.TemplateKey)
	})

	t.Run("get missing returns 404", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/notifications/templates/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete system template returns 409", func(t *testing.T) {
		require.NoError(t, repo.CreateTemplate(context.Background(), &domain.NotificationTemplate{
			Name:        "System",
			TemplateKey: "system.default",
			Subject:     "s",
			IsSystem:    true,
		}))

		rec := doRequest(t, router, http.MethodDelete, "/notifications/templates/system.default", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("preview", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/notifications/templates/order.created/preview", PreviewRequest{
			SampleOverrides: map[string]any{"order": map[string]any{"number": "ORD-X"}},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		_, data := decodeEnvelope(t, rec)
		var rendered Rendered
		require.NoError(t, json.Unmarshal(data, &rendered))
		assert.Equal(t, "Order ORD-X", rendered.Subject)
	})
}

func TestHandler_ListLogs(t *testing.T) {
	router, repo := setupHandler(t, httputil.AllowAll{})

	require.NoError(t, repo.CreateLog(context.Background(), &domain.NotificationLog{
		EventKey: "order.created",
		Channel:  domain.ChannelTypeEmail,
		Status:   domain.LogStatusSent,
	}))
	require.NoError(t, repo.CreateLog(context.Background(), &domain.NotificationLog{
		EventKey: "user.registered",
		Channel:  domain.ChannelTypeEmail,
		Status:   domain.LogStatusFailed,
	}))

	rec := doRequest(t, router, http.MethodGet, "/notifications/logs?event_key=order.created", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, data := decodeEnvelope(t, rec)
	var logs []domain.NotificationLog
	require.NoError(t, json.Unmarshal(data, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "order.created", logs[0].EventKey)
}
