package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"github.com/kursadbilgin/sms-dispatch/internal/observability"
	"github.com/kursadbilgin/sms-dispatch/internal/provider"
	"github.com/kursadbilgin/sms-dispatch/internal/repository"
	"go.uber.org/zap"
)

// Stopper is implemented by the timeout supervisor.
type Stopper interface {
	Stop()
}

// ConfigManager owns the active provider handle. It is the only writer of
// the slot; dispatch units only lease from it.
type ConfigManager struct {
	settings    repository.SettingsRepository
	factory     provider.Factory
	supervisor  Stopper
	settingsKey string
	slot        *provider.Slot
	logger      *zap.Logger
	metrics     *observability.Metrics

	mu       sync.Mutex
	shutdown bool
	applied  []byte
	rejected []byte
}

func NewConfigManager(
	settings repository.SettingsRepository,
	factory provider.Factory,
	supervisor Stopper,
	settingsKey string,
	logger *zap.Logger,
) (*ConfigManager, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("provider factory is required")
	}
	settingsKey = strings.TrimSpace(settingsKey)
	if settingsKey == "" {
		settingsKey = domain.SMSSettingsKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConfigManager{
		settings:    settings,
		factory:     factory,
		supervisor:  supervisor,
		settingsKey: settingsKey,
		slot:        &provider.Slot{},
		logger:      logger,
	}, nil
}

func (m *ConfigManager) SetMetrics(metrics *observability.Metrics) {
	if m == nil {
		return
	}
	m.metrics = metrics
}

// Slot exposes the active handle cell to the dispatch engine.
func (m *ConfigManager) Slot() *provider.Slot {
	return m.slot
}

// Reload reads the stored provider configuration and hot-swaps the active
// handle. Absent settings leave the slot untouched. On any failure the
// previous handle stays active; the error is logged and returned for the
// operator surface only.
func (m *ConfigManager) Reload(ctx context.Context) error {
	_, err := m.reload(ctx, false)
	return err
}

// Refresh is Reload that skips the swap when the stored document is the one
// already applied. It reports whether a new handle was installed.
func (m *ConfigManager) Refresh(ctx context.Context) (bool, error) {
	return m.reload(ctx, true)
}

func (m *ConfigManager) reload(ctx context.Context, onlyIfChanged bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return false, domain.NewDispatchError(domain.KindUnavailable, "")
	}

	settings, err := m.settings.FindByKey(ctx, domain.SystemTenantID, m.settingsKey)
	if errors.Is(err, domain.ErrNotFound) {
		if !onlyIfChanged {
			m.logger.Info("no sms provider settings stored, keeping current configuration",
				zap.Bool("configured", m.slot.Configured()),
			)
			m.metrics.IncConfigReload("absent")
		}
		return false, nil
	}
	if err != nil {
		return false, m.reloadFailed("failed to read sms settings", err)
	}

	if onlyIfChanged {
		if m.slot.Configured() && bytes.Equal(settings.JSONValue, m.applied) {
			return false, nil
		}
		// A document that already failed is retried only by an explicit Reload.
		if m.rejected != nil && bytes.Equal(settings.JSONValue, m.rejected) {
			return false, nil
		}
	}

	cfg, err := provider.ParseConfiguration(settings.JSONValue)
	if err != nil {
		m.rejected = append([]byte(nil), settings.JSONValue...)
		return false, m.reloadFailed("failed to parse sms provider configuration", err)
	}

	sender, err := m.factory.CreateSender(cfg)
	if err != nil {
		m.rejected = append([]byte(nil), settings.JSONValue...)
		return false, m.reloadFailed("failed to create sms sender", err)
	}

	next := provider.NewHandle(cfg.Type, sender)
	previous := m.slot.Swap(next)
	previous.Retire()
	m.applied = append([]byte(nil), settings.JSONValue...)
	m.rejected = nil

	m.metrics.IncConfigReload("applied")
	m.metrics.SetProviderConfigured(true)

	fields := []zap.Field{
		zap.String("providerType", cfg.Type.String()),
		zap.String("handleId", next.ID()),
	}
	if previous != nil {
		fields = append(fields, zap.String("retiredHandleId", previous.ID()))
	}
	m.logger.Info("sms provider configuration applied", fields...)
	return true, nil
}

func (m *ConfigManager) reloadFailed(msg string, err error) error {
	m.metrics.IncConfigReload("failed")
	m.logger.Error(msg,
		zap.Bool("keptPrevious", m.slot.Configured()),
		zap.Error(err),
	)
	return fmt.Errorf("%s: %w", msg, err)
}

// Save validates and stores cfg as the system provider configuration, then
// reloads it.
func (m *ConfigManager) Save(ctx context.Context, cfg provider.Configuration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode provider configuration: %w", err)
	}

	if err := m.settings.Save(ctx, &domain.AdminSettings{
		TenantID:  domain.SystemTenantID,
		Key:       m.settingsKey,
		JSONValue: raw,
	}); err != nil {
		return fmt.Errorf("failed to store sms settings: %w", err)
	}

	return m.Reload(ctx)
}

// IsConfigured reports whether an active handle is installed. The provider
// configuration is system-wide, so tenantID does not change the answer.
func (m *ConfigManager) IsConfigured(tenantID string) bool {
	return m.slot.Configured()
}

// Shutdown empties the slot, retires the active handle and stops the
// timeout supervisor. It is idempotent.
func (m *ConfigManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return
	}
	m.shutdown = true

	if previous := m.slot.Swap(nil); previous != nil {
		previous.Retire()
		m.logger.Info("sms provider handle released", zap.String("handleId", previous.ID()))
	}
	m.metrics.SetProviderConfigured(false)

	if m.supervisor != nil {
		m.supervisor.Stop()
	}
}
