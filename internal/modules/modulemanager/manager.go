// Package modulemanager wires the functional modules (catalog, session,
// progress, transcode) into the router and drives their initialization.
package modulemanager

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mantonx/playra/internal/logger"
)

// Module defines the interface that all modules must implement
type Module interface {
	ID() string                // Unique identifier for the module
	Name() string              // Display name for the module
	Core() bool                // Whether this is a core module (cannot be disabled)
	Migrate(db *gorm.DB) error // Run database migrations
	Init() error               // Initialize the module
}

// RouteRegistrar is an optional interface for modules that need to register routes
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// ModuleRegistry manages module registration and initialization
type ModuleRegistry struct {
	modules     []Module
	byID        map[string]Module
	mu          sync.RWMutex
	initialized bool
}

// NewRegistry creates an empty module registry. Each engine instance owns
// its own registry so sessions can coexist in tests.
func NewRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		byID: make(map[string]Module),
	}
}

// Register adds a module to the registry
func (r *ModuleRegistry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("Module %s (%s) registered after initialization", m.Name(), m.ID())
	}
	if _, dup := r.byID[m.ID()]; dup {
		logger.Warn("Module %s registered twice, replacing", m.ID())
	} else {
		r.modules = append(r.modules, m)
	}
	r.byID[m.ID()] = m
	logger.Info("Module registered: %s (%s)", m.Name(), m.ID())
}

// LoadAll initializes all registered modules in registration order.
func (r *ModuleRegistry) LoadAll(db *gorm.DB) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("Module system already initialized")
		return nil
	}

	logger.Info("Loading %d modules...", len(r.modules))

	for _, module := range r.modules {
		logger.Info("Initializing module: %s", module.Name())

		if err := module.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", module.Name(), err)
		}
		if err := module.Init(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", module.Name(), err)
		}

		logger.Info("Module loaded: %s", module.Name())
	}

	r.initialized = true
	return nil
}

// RegisterRoutes registers routes for all modules that expose them.
func (r *ModuleRegistry) RegisterRoutes(router *gin.Engine) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, module := range r.modules {
		if registrar, ok := module.(RouteRegistrar); ok {
			registrar.RegisterRoutes(router)
			logger.Debug("Routes registered for module: %s", module.ID())
		}
	}
}

// Get returns a registered module by ID.
func (r *ModuleRegistry) Get(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}
