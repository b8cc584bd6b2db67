package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/config"
	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/request"
)

// ErrReloadInProgress is returned when a reload is requested while another
// one is still running.
var ErrReloadInProgress = errors.New("reload already in progress")

// Settings are the request-independent inputs of every computation.
type Settings struct {
	Options dashboard.Options
	Limits  request.Limits
}

// SettingsFromConfig extracts the sampling settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Options: dashboard.OptionsFromConfig(cfg),
		Limits: request.Limits{
			MinPoints: cfg.Grid.MinPoints,
			MaxPoints: cfg.Grid.MaxPoints,
		},
	}
}

// ReloadManager holds the live Settings and swaps them atomically when the
// configuration file is re-read. In-flight computations keep the Settings
// they started with.
type ReloadManager struct {
	configPath string
	load       func(path string) (*config.Config, error)
	logger     *zap.Logger

	current  atomic.Pointer[Settings]
	loadedAt atomic.Int64
	reloadMu sync.Mutex // prevents concurrent reloads
}

// NewReloadManager creates a ReloadManager seeded with initial.
func NewReloadManager(configPath string, initial Settings, logger *zap.Logger) *ReloadManager {
	rm := &ReloadManager{
		configPath: configPath,
		load:       config.Load,
		logger:     logger,
	}
	rm.current.Store(&initial)
	rm.loadedAt.Store(time.Now().UnixNano())
	return rm
}

// Settings returns the current settings.
func (rm *ReloadManager) Settings() Settings {
	return *rm.current.Load()
}

// LoadedAt returns when the current settings were loaded.
func (rm *ReloadManager) LoadedAt() time.Time {
	return time.Unix(0, rm.loadedAt.Load())
}

// ReloadResult describes a successful reload.
type ReloadResult struct {
	LoadedAt   time.Time `json:"loaded_at"`
	SpotPoints int       `json:"spot_points"`
	VolPoints  int       `json:"vol_points"`
	MaxPoints  int       `json:"max_points"`
}

// Reload re-reads and validates the configuration, then swaps the settings.
// On error the previous settings remain in effect.
func (rm *ReloadManager) Reload(ctx context.Context) (*ReloadResult, error) {
	if !rm.reloadMu.TryLock() {
		return nil, ErrReloadInProgress
	}
	defer rm.reloadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rm.logger.Info("reloading settings", zap.String("config", rm.configPath))

	cfg, err := rm.load(rm.configPath)
	if err != nil {
		return nil, err
	}

	next := SettingsFromConfig(cfg)
	rm.current.Store(&next)
	now := time.Now()
	rm.loadedAt.Store(now.UnixNano())

	rm.logger.Info("settings reloaded",
		zap.Int("spotPoints", next.Options.SpotPoints),
		zap.Int("volPoints", next.Options.VolPoints),
		zap.Int("maxPoints", next.Limits.MaxPoints),
	)

	return &ReloadResult{
		LoadedAt:   now,
		SpotPoints: next.Options.SpotPoints,
		VolPoints:  next.Options.VolPoints,
		MaxPoints:  next.Limits.MaxPoints,
	}, nil
}
