package catalogmodule

import (
	"gorm.io/gorm"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/logger"
)

const ModuleID = "system.catalog"

// Module holds the catalog builder configuration and hands out builders
// bound to whichever folder the user opens.
type Module struct {
	cfg      config.CatalogConfig
	eventBus events.EventBus
}

// NewModule creates the catalog module.
func NewModule(cfg config.CatalogConfig, eventBus events.EventBus) *Module {
	return &Module{cfg: cfg, eventBus: eventBus}
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return "Catalog Builder" }
func (m *Module) Core() bool   { return true }

func (m *Module) Migrate(db *gorm.DB) error { return nil }

func (m *Module) Init() error {
	logger.Info("Catalog module initialized (video=%d audio=%d subtitle=%d extensions)",
		len(m.cfg.VideoExtensions), len(m.cfg.AudioExtensions), len(m.cfg.SubtitleExtensions))
	return nil
}

// Config returns the catalog configuration for builder construction.
func (m *Module) Config() config.CatalogConfig {
	return m.cfg
}
