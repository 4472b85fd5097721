package sessionmodule

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/logger"
)

const (
	ModuleID   = "system.session"
	ModuleName = "Session Manager"
)

// Module is the playback session module.
type Module struct {
	manager  *Manager
	eventBus events.EventBus
}

// NewModule creates the session module.
func NewModule(cfg *config.Config, loaderFactory LoaderFactory, eventBus events.EventBus) *Module {
	return &Module{
		manager:  NewManager(cfg, loaderFactory, eventBus, logger.New("session")),
		eventBus: eventBus,
	}
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return ModuleName }
func (m *Module) Core() bool   { return true }

// Migrate is a no-op; session state is never stored in the database.
func (m *Module) Migrate(db *gorm.DB) error { return nil }

// Init initializes the session module.
func (m *Module) Init() error {
	logger.Info("Session module initialized")
	return nil
}

// Shutdown closes the open folder, flushing progress.
func (m *Module) Shutdown() {
	m.manager.Close()
}

// Manager exposes the folder lifecycle manager.
func (m *Module) Manager() *Manager { return m.manager }

// RegisterRoutes registers the session HTTP API.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	registerRoutes(router, NewAPIHandler(m.manager))
}
