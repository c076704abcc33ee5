package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"github.com/kursadbilgin/sms-dispatch/internal/observability"
	"github.com/kursadbilgin/sms-dispatch/internal/provider"
	"github.com/kursadbilgin/sms-dispatch/internal/queue"
	"github.com/kursadbilgin/sms-dispatch/internal/service"
)

type SMSService interface {
	SendBatch(ctx context.Context, req domain.DispatchRequest) (int, error)
	SendVerification(ctx context.Context, req service.VerificationRequest) error
	IsConfigured(tenantID string) bool
	UpdateConfiguration(ctx context.Context) error
}

// SettingsStore persists and applies provider configurations.
type SettingsStore interface {
	Save(ctx context.Context, cfg provider.Configuration) error
}

// TenantControls exposes per-tenant sending state to operators.
type TenantControls interface {
	SMSSendEnabled(ctx context.Context, tenantID string) (bool, error)
	SetDisabled(ctx context.Context, tenantID string, disabled bool) error
}

// SMSRoutes groups the collaborators behind the /v1/sms routes. Publisher and
// Tenants are optional; their routes are not registered when nil.
type SMSRoutes struct {
	Service   SMSService
	Settings  SettingsStore
	Publisher queue.Publisher
	Queue     string
	Tenants   TenantControls
}

type SMSHandler struct {
	routes SMSRoutes
}

func NewSMSHandler(routes SMSRoutes) (*SMSHandler, error) {
	if routes.Service == nil {
		return nil, fmt.Errorf("sms service is required")
	}
	if routes.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if strings.TrimSpace(routes.Queue) == "" {
		routes.Queue = queue.DefaultDispatchQueue
	}
	return &SMSHandler{routes: routes}, nil
}

func RegisterSMSRoutes(router fiber.Router, routes SMSRoutes) error {
	h, err := NewSMSHandler(routes)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1/sms")
	v1.Post("/send", h.Send)
	v1.Post("/test", h.Test)
	v1.Post("/settings/reload", h.ReloadSettings)
	v1.Put("/settings", h.PutSettings)
	v1.Get("/configured", h.Configured)
	if routes.Publisher != nil {
		v1.Post("/dispatch", h.Enqueue)
	}
	if routes.Tenants != nil {
		v1.Get("/tenants/:tenantId/state", h.TenantState)
		v1.Put("/tenants/:tenantId/state", h.PutTenantState)
	}

	return nil
}

type sendRequest struct {
	TenantID   string   `json:"tenantId"`
	CustomerID string   `json:"customerId"`
	Numbers    []string `json:"numbers"`
	Message    string   `json:"message"`
}

type enqueueRequest struct {
	sendRequest
	Trigger *queue.AlarmTrigger `json:"trigger,omitempty"`
}

type testRequest struct {
	ProviderConfiguration json.RawMessage `json:"providerConfiguration"`
	NumberTo              string          `json:"numberTo"`
	Message               string          `json:"message"`
}

type settingsRequest struct {
	ProviderConfiguration json.RawMessage `json:"providerConfiguration"`
}

type tenantStateRequest struct {
	Disabled *bool `json:"disabled"`
}

type sendResponse struct {
	Sent int `json:"sent"`
}

type enqueueResponse struct {
	MessageID     string `json:"messageId"`
	CorrelationID string `json:"correlationId,omitempty"`
	Queue         string `json:"queue"`
}

type configuredResponse struct {
	Configured bool `json:"configured"`
}

type tenantStateResponse struct {
	TenantID    string `json:"tenantId"`
	SendEnabled bool   `json:"sendEnabled"`
}

func (h *SMSHandler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	sent, err := h.routes.Service.SendBatch(requestContext(c), req.toDomain())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(sendResponse{Sent: sent})
}

// Enqueue hands a batch to the dispatch queue and returns before any send.
func (h *SMSHandler) Enqueue(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := req.toDomain().Validate(); err != nil {
		return err
	}

	msg := queue.DispatchMessage{
		MessageID:     uuid.NewString(),
		CorrelationID: requestCorrelationID(c),
		TenantID:      req.TenantID,
		CustomerID:    req.CustomerID,
		Numbers:       req.Numbers,
		Message:       req.Message,
		Trigger:       req.Trigger,
	}
	if err := h.routes.Publisher.Publish(requestContext(c), h.routes.Queue, msg); err != nil {
		return domain.NewDispatchError(domain.KindUnavailable, "dispatch queue unavailable: "+err.Error())
	}

	return c.Status(fiber.StatusAccepted).JSON(enqueueResponse{
		MessageID:     msg.MessageID,
		CorrelationID: msg.CorrelationID,
		Queue:         h.routes.Queue,
	})
}

func (h *SMSHandler) Test(c *fiber.Ctx) error {
	var req testRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	cfg, err := parseProviderConfiguration(req.ProviderConfiguration)
	if err != nil {
		return err
	}

	err = h.routes.Service.SendVerification(requestContext(c), service.VerificationRequest{
		Configuration: cfg,
		Address:       req.NumberTo,
		Message:       req.Message,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "sent"})
}

func (h *SMSHandler) ReloadSettings(c *fiber.Ctx) error {
	if err := h.routes.Service.UpdateConfiguration(requestContext(c)); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(configuredResponse{
		Configured: h.routes.Service.IsConfigured(domain.SystemTenantID),
	})
}

func (h *SMSHandler) PutSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	cfg, err := parseProviderConfiguration(req.ProviderConfiguration)
	if err != nil {
		return err
	}

	if err := h.routes.Settings.Save(requestContext(c), cfg); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(configuredResponse{
		Configured: h.routes.Service.IsConfigured(domain.SystemTenantID),
	})
}

func (h *SMSHandler) Configured(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(configuredResponse{
		Configured: h.routes.Service.IsConfigured(strings.TrimSpace(c.Query("tenantId"))),
	})
}

func (h *SMSHandler) TenantState(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("tenantId"))

	enabled, err := h.routes.Tenants.SMSSendEnabled(requestContext(c), tenantID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(tenantStateResponse{TenantID: tenantID, SendEnabled: enabled})
}

// PutTenantState toggles the per-tenant kill switch.
func (h *SMSHandler) PutTenantState(c *fiber.Ctx) error {
	var req tenantStateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Disabled == nil {
		return fmt.Errorf("%w: disabled is required", domain.ErrValidation)
	}

	tenantID := strings.TrimSpace(c.Params("tenantId"))
	ctx := requestContext(c)
	if err := h.routes.Tenants.SetDisabled(ctx, tenantID, *req.Disabled); err != nil {
		return err
	}

	enabled, err := h.routes.Tenants.SMSSendEnabled(ctx, tenantID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(tenantStateResponse{TenantID: tenantID, SendEnabled: enabled})
}

func (r sendRequest) toDomain() domain.DispatchRequest {
	return domain.DispatchRequest{
		TenantID:   r.TenantID,
		CustomerID: r.CustomerID,
		Addresses:  r.Numbers,
		Message:    r.Message,
	}
}

func parseProviderConfiguration(raw json.RawMessage) (provider.Configuration, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return provider.Configuration{}, fmt.Errorf("%w: providerConfiguration is required", domain.ErrValidation)
	}
	return provider.ParseConfiguration(raw)
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if correlationID := requestCorrelationID(c); correlationID != "" {
		ctx = observability.WithCorrelationID(ctx, correlationID)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
