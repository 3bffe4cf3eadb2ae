package notifications

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/merchware/notify/internal/domain"
	"github.com/merchware/notify/internal/pkg/httputil"
)

// Capabilities gating the notification endpoints. The checks themselves
// are owned by the platform's authorization subsystem.
const (
	CapabilityView   = "view-notifications"
	CapabilityManage = "manage-notifications"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrConfigurationNotFound, Status: http.StatusNotFound, Message: "notification configuration not found"},
	{Error: ErrTemplateNotFound, Status: http.StatusNotFound, Message: "notification template not found"},
	{Error: ErrEventNotRegistered, Status: http.StatusBadRequest, Message: "event type is not registered"},
	{Error: ErrChannelNotRegistered, Status: http.StatusBadRequest, Message: "channel is not registered"},
	{Error: ErrSystemTemplate, Status: http.StatusConflict, Message: "system templates cannot be deleted"},
}

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers notification routes behind the capability gate.
func (h *Handler) RegisterRoutes(r chi.Router, authz httputil.Authorizer) {
	r.Route("/notifications", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httputil.RequireCapability(authz, CapabilityView))

			r.Get("/configurations", h.ListConfigurations)
			r.Get("/configurations/by-event-channel", h.GetConfigurationByEventChannel)
			r.Get("/events", h.ListEvents)
			r.Get("/channels", h.ListChannels)
			r.Get("/logs", h.ListLogs)
			r.Get("/templates", h.ListTemplates)
			r.Get("/templates/{key}", h.GetTemplate)
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.RequireCapability(authz, CapabilityManage))

			r.Post("/configurations", h.SaveConfiguration)
			r.Put("/configurations/{id}", h.UpdateConfiguration)
			r.Patch("/configurations/{id}/toggle-enable", h.ToggleConfiguration)
			r.Put("/templates/{key}", h.SaveTemplate)
			r.Delete("/templates/{key}", h.DeleteTemplate)
			r.Post("/templates/{key}/preview", h.PreviewTemplate)
		})
	})
}

// ConfigurationRequest represents request body for creating or updating
// a configuration.
type ConfigurationRequest struct {
	EventKey        string         `json:"event_key" validate:"required"`
	Channel         string         `json:"channel" validate:"required"`
	IsEnabled       bool           `json:"is_enabled"`
	NotifyCustomer  bool           `json:"notify_customer"`
	AdminRecipients []string       `json:"admin_recipients" validate:"dive,required"`
	TemplateKey     *string        `json:"template_key"`
	Metadata        map[string]any `json:"metadata"`
}

// TemplateRequest represents request body for saving a template.
type TemplateRequest struct {
	Name               string            `json:"name" validate:"required"`
	Subject            string            `json:"subject" validate:"required"`
	Slots              map[string]string `json:"slots" validate:"required"`
	AvailableVariables []string          `json:"available_variables"`
}

// PreviewRequest represents request body for a template preview.
type PreviewRequest struct {
	SampleOverrides map[string]any `json:"sample_overrides"`
}

// SaveConfiguration handles POST /notifications/configurations.
// Creates or updates the configuration for an (event, channel) pair.
func (h *Handler) SaveConfiguration(w http.ResponseWriter, r *http.Request) {
	var req ConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	cfg, err := h.service.SaveConfiguration(r.Context(), ConfigurationInput{
		EventKey:        req.EventKey,
		Channel:         domain.ChannelType(req.Channel),
		IsEnabled:       req.IsEnabled,
		NotifyCustomer:  req.NotifyCustomer,
		AdminRecipients: req.AdminRecipients,
		TemplateKey:     req.TemplateKey,
		Metadata:        req.Metadata,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, "configuration saved", cfg)
}

// ListConfigurations handles GET /notifications/configurations.
func (h *Handler) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.ListConfigurations(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "configurations retrieved", configs)
}

// GetConfigurationByEventChannel handles
// GET /notifications/configurations/by-event-channel?event_key=&channel=.
func (h *Handler) GetConfigurationByEventChannel(w http.ResponseWriter, r *http.Request) {
	eventKey := r.URL.Query().Get("event_key")
	channel := r.URL.Query().Get("channel")
	if eventKey == "" || channel == "" {
		httputil.Error(w, http.StatusBadRequest, "event_key and channel are required")
		return
	}

	cfg, err := h.service.GetConfigurationByEventChannel(r.Context(), eventKey, domain.ChannelType(channel))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "configuration retrieved", cfg)
}

// UpdateConfiguration handles PUT /notifications/configurations/{id}.
func (h *Handler) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	cfg, err := h.service.UpdateConfiguration(r.Context(), id, ConfigurationInput{
		IsEnabled:       req.IsEnabled,
		NotifyCustomer:  req.NotifyCustomer,
		AdminRecipients: req.AdminRecipients,
		TemplateKey:     req.TemplateKey,
		Metadata:        req.Metadata,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "configuration updated", cfg)
}

// ToggleConfiguration handles
// PATCH /notifications/configurations/{id}/toggle-enable.
func (h *Handler) ToggleConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cfg, err := h.service.ToggleConfiguration(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "configuration toggled", cfg)
}

// ListEvents handles GET /notifications/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, "events retrieved", h.service.ListEvents())
}

// ListChannels handles GET /notifications/channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, "channels retrieved", h.service.ListChannels())
}

// ListLogs handles GET /notifications/logs.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := LogFilter{
		EventKey: q.Get("event_key"),
		Channel:  domain.ChannelType(q.Get("channel")),
		Status:   domain.LogStatus(q.Get("status")),
	}

	logs, err := h.service.ListLogs(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "logs retrieved", logs)
}

// ListTemplates handles GET /notifications/templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "templates retrieved", templates)
}

// GetTemplate handles GET /notifications/templates/{key}.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	tmpl, err := h.service.GetTemplate(r.Context(), key)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "template retrieved", tmpl)
}

// SaveTemplate handles PUT /notifications/templates/{key}.
func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	tmpl, err := h.service.SaveTemplate(r.Context(), &domain.NotificationTemplate{
		Name:               req.Name,
		TemplateKey:        key,
		Subject:            req.Subject,
		Slots:              req.Slots,
		AvailableVariables: req.AvailableVariables,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "template saved", tmpl)
}

// DeleteTemplate handles DELETE /notifications/templates/{key}.
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := h.service.DeleteTemplate(r.Context(), key); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "template deleted", nil)
}

// PreviewTemplate handles POST /notifications/templates/{key}/preview.
func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	rendered, err := h.service.PreviewTemplate(r.Context(), key, req.SampleOverrides)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, "template preview rendered", rendered)
}
