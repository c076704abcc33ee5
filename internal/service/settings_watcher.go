package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultSettingsWatchInterval = 30 * time.Second

// Refresher re-applies the stored provider configuration when it changed.
type Refresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// SettingsWatcher periodically refreshes the provider configuration so a
// document saved through another instance reaches this one.
type SettingsWatcher struct {
	config   Refresher
	logger   *zap.Logger
	interval time.Duration
}

func NewSettingsWatcher(config Refresher, interval time.Duration, logger *zap.Logger) (*SettingsWatcher, error) {
	if config == nil {
		return nil, fmt.Errorf("settings refresher is required")
	}
	if interval <= 0 {
		interval = defaultSettingsWatchInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SettingsWatcher{
		config:   config,
		logger:   logger,
		interval: interval,
	}, nil
}

// Start blocks until ctx is cancelled.
func (w *SettingsWatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *SettingsWatcher) refresh(ctx context.Context) {
	changed, err := w.config.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// ConfigManager already logged the cause; keep the loop quiet.
		w.logger.Debug("settings refresh failed", zap.Error(err))
		return
	}
	if changed {
		w.logger.Info("sms provider configuration changed in storage, applied")
	}
}
