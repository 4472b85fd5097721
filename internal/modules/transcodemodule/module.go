package transcodemodule

import (
	"context"

	"gorm.io/gorm"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/logger"
	"github.com/mantonx/playra/internal/modules/sessionmodule"
	"github.com/mantonx/playra/internal/storage"
)

const (
	ModuleID   = "system.transcode"
	ModuleName = "Codec Compatibility"
)

// Module is the codec compatibility module.
type Module struct {
	cfg      config.TranscodeConfig
	db       *gorm.DB
	eventBus events.EventBus
	probes   *ProbeCache
}

// NewModule creates the transcode module.
func NewModule(cfg config.TranscodeConfig, db *gorm.DB, eventBus events.EventBus) *Module {
	return &Module{
		cfg:      cfg,
		db:       db,
		eventBus: eventBus,
	}
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return ModuleName }
func (m *Module) Core() bool   { return true }

// Migrate creates the probe cache table.
func (m *Module) Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProbeRecord{})
}

// Init initializes the transcode module.
func (m *Module) Init() error {
	m.probes = NewProbeCache(m.db)
	logger.Info("Transcode module initialized (ffmpeg: %s)", m.cfg.FFmpegPath)
	return nil
}

// LoaderFactory returns a factory that builds a codec pipeline bound to a
// session folder's storage provider.
func (m *Module) LoaderFactory() sessionmodule.LoaderFactory {
	return func(provider storage.Provider) (sessionmodule.Loader, error) {
		factory := func(ctx context.Context) (Engine, error) {
			return NewFFmpegEngine(ctx, m.cfg, logger.New("transcode"))
		}
		return NewPipeline(provider, m.cfg, factory, m.probes, m.eventBus, logger.New("transcode")), nil
	}
}
