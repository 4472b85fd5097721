package progressmodule

import (
	"gorm.io/gorm"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/logger"
)

const ModuleID = "system.progress"

// Module holds the persistence configuration and builds per-folder stores
// and writers.
type Module struct {
	cfg      config.ProgressConfig
	eventBus events.EventBus
}

// NewModule creates the progress module.
func NewModule(cfg config.ProgressConfig, eventBus events.EventBus) *Module {
	return &Module{cfg: cfg, eventBus: eventBus}
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return "Progress Persistence" }
func (m *Module) Core() bool   { return true }

func (m *Module) Migrate(db *gorm.DB) error { return nil }

func (m *Module) Init() error {
	logger.Info("Progress module initialized (file=%s throttle=%s countdown=%s)",
		m.cfg.FileName, m.cfg.ThrottleWindow, m.cfg.ResumeCountdown)
	return nil
}

// Config returns the persistence configuration.
func (m *Module) Config() config.ProgressConfig {
	return m.cfg
}
